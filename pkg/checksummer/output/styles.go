package output

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/jamesainslie/checksummer/pkg/checksummer/types"
)

// Palette entries are ANSI 256-color codes so they render the same in any
// terminal that lipgloss detects as color capable.
const (
	colorAccent  = lipgloss.Color("39")
	colorText    = lipgloss.Color("255")
	colorMuted   = lipgloss.Color("245")
	colorMissing = lipgloss.Color("214")
	colorChanged = lipgloss.Color("196")
)

// TitleStyle renders report titles and the menu's banner and section headers.
var TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)

var (
	headerBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorAccent).
			Padding(0, 1).
			MarginBottom(1)

	footerBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorMuted).
			Padding(0, 1).
			MarginTop(1)

	labelStyle  = lipgloss.NewStyle().Foreground(colorMuted)
	valueStyle  = lipgloss.NewStyle().Foreground(colorText)
	mutedStyle  = lipgloss.NewStyle().Foreground(colorMuted)
	columnStyle = mutedStyle.Bold(true)
	sizeStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)

	// missingStyle marks records whose file is gone; changedStyle marks
	// records whose content no longer matches the stored digest.
	missingStyle = lipgloss.NewStyle().Foreground(colorMissing)
	changedStyle = lipgloss.NewStyle().Foreground(colorChanged)
)

// pathCell renders a row's path, flagging missing and changed records.
func pathCell(row Row) string {
	switch {
	case row.Found == types.FoundMissing.String():
		return missingStyle.Render(row.Path + " (missing)")
	case row.Verified == types.VerifiedMismatches.String():
		return changedStyle.Render(row.Path + " (changed)")
	default:
		return valueStyle.Render(row.Path)
	}
}

func label(name, value string, style lipgloss.Style) string {
	return labelStyle.Render(name+":") + " " + style.Render(value)
}
