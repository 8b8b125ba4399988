package welcome

import (
	"charm.land/lipgloss/v2"

	"github.com/abhisek/codecoach/internal/ui/theme"
)

const bannerArt = `
  ___ ___  ___  ___ ___ ___   _   ___ _  _
 / __/ _ \|   \| __/ __/ _ \ /_\ / __| || |
| (_| (_) | |) | _| (_| (_) / _ \ (__| __ |
 \___\___/|___/|___\___\___/_/ \_\___|_||_|`

const bannerCompact = "c o d e c o a c h"

// RenderBanner returns the codecoach banner styled in the primary color.
// Uses a compact fallback for terminals narrower than 48 columns.
func RenderBanner(width int) string {
	style := lipgloss.NewStyle().
		Foreground(theme.Primary).
		Bold(true)

	if width < 48 {
		return style.Render(bannerCompact)
	}
	return style.Render(bannerArt)
}
