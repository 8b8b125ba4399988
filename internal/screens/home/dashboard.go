package home

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/codecoach/internal/ui/theme"
)

// contentWidth returns the uniform inner width used for all sections so the
// boxes line up.
func contentWidth(frameWidth int) int {
	// Leave room for the frame border (2) and inner padding (4).
	w := frameWidth - 6
	if w > 60 {
		w = 60
	}
	if w < 20 {
		w = 20
	}
	return w
}

// renderStatsBar renders the problem and conversation counts.
func renderStatsBar(problems, conversations int, online bool, cw int) string {
	countStyle := lipgloss.NewStyle().Foreground(theme.Primary).Bold(true)
	convStyle := lipgloss.NewStyle().Foreground(theme.Secondary).Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(theme.TextDim)

	problemText := dimStyle.Render("? PROBLEMS")
	if online {
		problemText = countStyle.Render(fmt.Sprintf("%d PROBLEMS", problems))
	}

	stats := fmt.Sprintf("%s  %s",
		problemText,
		convStyle.Render(fmt.Sprintf("%d CONVERSATIONS", conversations)),
	)

	return lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(theme.Secondary).
		Width(cw - 2).
		Align(lipgloss.Center).
		Padding(0, 1).
		Render(stats)
}

// buttonWidth is the fixed width for menu buttons.
const buttonWidth = 22

// renderMenu renders each menu item as a fixed-width button, or as plain
// lines when the terminal is too short for bordered buttons.
func renderMenu(items []string, selected int, cw int, compact bool) string {
	selectedBtn := lipgloss.NewStyle().
		Width(buttonWidth).
		Align(lipgloss.Center).
		Bold(true).
		Foreground(theme.BgDark).
		Background(theme.Primary).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Primary).
		Padding(0, 1)

	normalBtn := lipgloss.NewStyle().
		Width(buttonWidth).
		Align(lipgloss.Center).
		Foreground(theme.Text).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Border).
		Padding(0, 1)

	var rows []string
	for i, label := range items {
		switch {
		case compact && i == selected:
			rows = append(rows, theme.Selected.Render(" ▸ "+label+" "))
		case compact:
			rows = append(rows, theme.Unselected.Render("   "+label))
		case i == selected:
			rows = append(rows, selectedBtn.Render("▸ "+label))
		default:
			rows = append(rows, normalBtn.Render(label))
		}
	}

	return lipgloss.NewStyle().
		Width(cw).
		Align(lipgloss.Center).
		Render(strings.Join(rows, "\n"))
}

// renderServerBanner warns that server-backed actions are unavailable.
func renderServerBanner(msg string, cw int) string {
	return lipgloss.NewStyle().
		Foreground(theme.Accent).
		Width(cw).
		Align(lipgloss.Center).
		Render("⚠ " + msg)
}

// renderFrame wraps content in a double-border frame, centered within the
// given dimensions.
func renderFrame(content string, width, height int) string {
	return lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(theme.Primary).
		Width(width - 2).
		Height(height - 2).
		Align(lipgloss.Center, lipgloss.Center).
		Render(content)
}
