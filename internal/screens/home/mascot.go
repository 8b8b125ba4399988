package home

import (
	"charm.land/lipgloss/v2"

	"github.com/abhisek/codecoach/internal/ui/theme"
)

// MascotVariant selects which mascot art to display.
type MascotVariant int

const (
	MascotIdle    MascotVariant = iota // Server reachable
	MascotOffline                      // Server unreachable or incompatible
)

const mascotIdle = `┌─────┐
│ ◉ ◉ │
│  ▽  │
│ { } │
└─────┘`

const mascotOffline = `┌─────┐
│ - - │ ?
│  ~  │
│ { } │
└─────┘`

// RenderMascot returns the mascot art for the given variant.
func RenderMascot(variant MascotVariant) string {
	art, fg := mascotIdle, theme.Primary
	if variant == MascotOffline {
		art, fg = mascotOffline, theme.TextDim
	}
	return lipgloss.NewStyle().Foreground(fg).Render(art)
}
