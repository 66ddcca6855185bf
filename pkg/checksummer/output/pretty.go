package output

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/checksummer/pkg/checksummer/types"
)

// PrettyFormatter formats output with colors and boxes for the terminal.
type PrettyFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PrettyFormatter) Format(w *bytes.Buffer, r *Result) error {
	w.WriteString(f.formatHeader(r))
	w.WriteString("\n")
	w.WriteString(f.formatTable(r))
	w.WriteString(f.formatFooter(r))

	if len(r.Warnings) > 0 {
		w.WriteString("\n")
		w.WriteString(f.formatWarnings(r.Warnings))
	}
	return nil
}

func (f *PrettyFormatter) formatHeader(r *Result) string {
	lines := []string{TitleStyle.Render(r.Title)}
	if r.Root != "" {
		lines = append(lines, label("Root", r.Root, valueStyle))
	}
	if s := r.Summary; s != nil {
		parts := []string{
			label("Tracked", humanize.Comma(s.Total), valueStyle),
			label("Size", types.FormatSize(s.TotalBytes), sizeStyle),
		}
		if s.Missing > 0 {
			parts = append(parts, missingStyle.Render(fmt.Sprintf("%d missing", s.Missing)))
		}
		if s.Mismatches > 0 {
			parts = append(parts, changedStyle.Render(fmt.Sprintf("%d changed", s.Mismatches)))
		}
		lines = append(lines, strings.Join(parts, "  "))
	}
	return headerBox.Render(strings.Join(lines, "\n"))
}

func (f *PrettyFormatter) formatTable(r *Result) string {
	if len(r.Rows) == 0 {
		return mutedStyle.Render("  No matching files") + "\n"
	}

	sizeWidth := 8
	for _, row := range r.Rows {
		if len(row.SizeHuman) > sizeWidth {
			sizeWidth = len(row.SizeHuman)
		}
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("  %s  %s  %s\n",
		columnStyle.Render(padLeft("SIZE", sizeWidth)),
		columnStyle.Render(padRight("MODIFIED", len(types.TimeLayout))),
		columnStyle.Render("PATH")))

	group := 0
	for _, row := range r.Rows {
		if row.Group != group && row.Group > 0 {
			if group > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(mutedStyle.Render(fmt.Sprintf("  group %d  %s", row.Group, row.Checksum)))
			sb.WriteString("\n")
			group = row.Group
		}

		sb.WriteString(fmt.Sprintf("  %s  %s  %s\n",
			sizeStyle.Render(padLeft(row.SizeHuman, sizeWidth)),
			mutedStyle.Render(padRight(row.ModTimeString(), len(types.TimeLayout))),
			pathCell(row)))
	}
	return sb.String()
}

func (f *PrettyFormatter) formatFooter(r *Result) string {
	shown := fmt.Sprintf("%d", len(r.Rows))
	if r.TotalRows > len(r.Rows) {
		shown = fmt.Sprintf("%d of %d", len(r.Rows), r.TotalRows)
	}
	parts := []string{
		label("Files", shown, valueStyle),
		label("Total", types.FormatSize(r.TotalSize()), sizeStyle),
		mutedStyle.Render("Use -o plain for unformatted output"),
	}
	return footerBox.Render(strings.Join(parts, "  "))
}

func (f *PrettyFormatter) formatWarnings(warnings []string) string {
	var sb strings.Builder
	sb.WriteString(missingStyle.Bold(true).Render("Warnings:"))
	sb.WriteString("\n")
	for _, warning := range warnings {
		sb.WriteString(missingStyle.Render("  " + warning))
		sb.WriteString("\n")
	}
	return sb.String()
}

func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

func init() {
	Register("pretty", func() Formatter {
		return &PrettyFormatter{}
	})
}

var _ Formatter = (*PrettyFormatter)(nil)
