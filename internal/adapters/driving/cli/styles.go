package cli

import (
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	tuistyles "github.com/custodia-labs/dkansync/internal/adapters/driving/tui/styles"
)

// outputStyles contains pre-configured lipgloss styles.
type outputStyles struct {
	// Title style for headers.
	Title lipgloss.Style

	// Section style for [Section] headings.
	Section lipgloss.Style

	// Muted style for less important text.
	Muted lipgloss.Style

	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
}

var styles = newOutputStyles()

// newOutputStyles shares the palette of the run browser.
func newOutputStyles() outputStyles {
	theme := tuistyles.DefaultTheme()
	return outputStyles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(theme.Primary),
		Section: lipgloss.NewStyle().Bold(true),
		Muted:   lipgloss.NewStyle().Foreground(theme.Muted),
		Success: lipgloss.NewStyle().Foreground(theme.Success),
		Warning: lipgloss.NewStyle().Foreground(theme.Warning),
		Error:   lipgloss.NewStyle().Bold(true).Foreground(theme.Error),
	}
}

// title renders a heading underlined with '='.
func title(text string) string {
	return styles.Title.Render(text) + "\n" + strings.Repeat("=", utf8.RuneCountInString(text))
}

// status renders ok or failed in the matching colour.
func status(ok bool, text string) string {
	if ok {
		return styles.Success.Render(text)
	}
	return styles.Error.Render(text)
}
