package output

import (
	"bytes"
	"encoding/csv"
	"strings"
)

// TSVFormatter formats output as tab-separated values.
type TSVFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *TSVFormatter) Format(w *bytes.Buffer, r *Result) error {
	cols := columns(r)
	fields := make([]string, len(cols))

	for i, c := range cols {
		fields[i] = c.header
	}
	w.WriteString(strings.Join(fields, "\t"))
	w.WriteByte('\n')

	for _, row := range r.Rows {
		for i, c := range cols {
			fields[i] = c.value(row)
		}
		w.WriteString(strings.Join(fields, "\t"))
		w.WriteByte('\n')
	}
	return nil
}

func init() {
	Register("tsv", func() Formatter {
		return &TSVFormatter{}
	})
}

var _ Formatter = (*TSVFormatter)(nil)

// CSVFormatter formats output as RFC 4180 comma-separated values.
type CSVFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *CSVFormatter) Format(w *bytes.Buffer, r *Result) error {
	writer := csv.NewWriter(w)
	cols := columns(r)
	fields := make([]string, len(cols))

	for i, c := range cols {
		fields[i] = c.header
	}
	if err := writer.Write(fields); err != nil {
		return err
	}

	for _, row := range r.Rows {
		for i, c := range cols {
			fields[i] = c.value(row)
		}
		if err := writer.Write(fields); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func init() {
	Register("csv", func() Formatter {
		return &CSVFormatter{}
	})
}

var _ Formatter = (*CSVFormatter)(nil)

// MarkdownFormatter formats output as a GitHub-flavored Markdown table.
type MarkdownFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *MarkdownFormatter) Format(w *bytes.Buffer, r *Result) error {
	cols := columns(r)
	fields := make([]string, len(cols))

	for i, c := range cols {
		fields[i] = c.header
	}
	w.WriteString("| " + strings.Join(fields, " | ") + " |\n")
	for i := range fields {
		fields[i] = "---"
	}
	w.WriteString("|" + strings.Join(fields, "|") + "|\n")

	for _, row := range r.Rows {
		for i, c := range cols {
			fields[i] = escapeMarkdownPipe(c.value(row))
		}
		w.WriteString("| " + strings.Join(fields, " | ") + " |\n")
	}
	return nil
}

// escapeMarkdownPipe escapes pipe characters in a string for Markdown tables.
func escapeMarkdownPipe(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func init() {
	Register("markdown", func() Formatter {
		return &MarkdownFormatter{}
	})
}

var _ Formatter = (*MarkdownFormatter)(nil)
