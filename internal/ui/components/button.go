package components

import (
	"charm.land/lipgloss/v2"

	"github.com/abhisek/codecoach/internal/ui/theme"
)

// Button is a styled button component.
type Button struct {
	Label  string
	Active bool
}

// View renders the button.
func (b Button) View() string {
	label := " " + b.Label + " "
	if b.Active {
		return theme.ButtonActive.Render(label)
	}
	return theme.ButtonInactive.Render(label)
}

// Confirm is a yes/no prompt. No is selected initially.
type Confirm struct {
	Question string
	Yes      bool
}

// Toggle switches the selected answer.
func (c *Confirm) Toggle() {
	c.Yes = !c.Yes
}

// View renders the question above both buttons.
func (c Confirm) View(width int) string {
	buttons := lipgloss.JoinHorizontal(lipgloss.Center,
		Button{Label: "Yes", Active: c.Yes}.View(),
		"  ",
		Button{Label: "No", Active: !c.Yes}.View(),
	)
	body := lipgloss.JoinVertical(lipgloss.Center,
		theme.Body.Render(c.Question),
		"",
		buttons,
	)
	return lipgloss.PlaceHorizontal(width, lipgloss.Center, theme.Card.Render(body))
}
