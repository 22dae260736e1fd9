package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/tOgg1/scriptdeck/internal/models"
)

type tuiPalette struct {
	Name      string
	Panel     string
	PanelAlt  string
	Text      string
	TextMuted string
	Border    string
	Accent    string
	Focus     string
	Success   string
	Warning   string
	Error     string
	Info      string
}

var paletteOrder = []string{"default", "light"}

var palettes = map[string]tuiPalette{
	"default": {
		Name:      "default",
		Panel:     "#121821",
		PanelAlt:  "#10161E",
		Text:      "#E6EDF3",
		TextMuted: "#8B9AAE",
		Border:    "#223043",
		Accent:    "#5B8DEF",
		Focus:     "#7AA2F7",
		Success:   "#3FB950",
		Warning:   "#D29922",
		Error:     "#F85149",
		Info:      "#58A6FF",
	},
	"light": {
		Name:      "light",
		Panel:     "#EEF1F5",
		PanelAlt:  "#F6F8FA",
		Text:      "#1F2328",
		TextMuted: "#59636E",
		Border:    "#C9D1D9",
		Accent:    "#0969DA",
		Focus:     "#8250DF",
		Success:   "#1A7F37",
		Warning:   "#9A6700",
		Error:     "#CF222E",
		Info:      "#0550AE",
	},
}

func resolvePalette(name string) tuiPalette {
	trimmed := strings.ToLower(strings.TrimSpace(name))
	if palette, ok := palettes[trimmed]; ok {
		return palette
	}
	return palettes["default"]
}

func cyclePalette(current string, delta int) tuiPalette {
	current = strings.ToLower(strings.TrimSpace(current))
	idx := 0
	for i, candidate := range paletteOrder {
		if candidate == current {
			idx = i
			break
		}
	}
	idx += delta
	for idx < 0 {
		idx += len(paletteOrder)
	}
	idx %= len(paletteOrder)
	return resolvePalette(paletteOrder[idx])
}

func (p tuiPalette) color(value string) lipgloss.Color {
	return lipgloss.Color(value)
}

func statusStyle(palette tuiPalette, script models.Script) lipgloss.Style {
	style := lipgloss.NewStyle()
	if script.LastStatus == nil {
		return style.Foreground(palette.color(palette.TextMuted))
	}
	switch *script.LastStatus {
	case models.StatusRunning:
		return style.Foreground(palette.color(palette.Info)).Bold(true)
	case models.StatusSuccess:
		return style.Foreground(palette.color(palette.Success))
	case models.StatusFailed:
		return style.Foreground(palette.color(palette.Error)).Bold(true)
	case models.StatusStopped:
		return style.Foreground(palette.color(palette.Warning))
	default:
		return style.Foreground(palette.color(palette.TextMuted))
	}
}

func statusGlyph(script models.Script) string {
	if script.LastStatus == nil {
		return "·"
	}
	switch *script.LastStatus {
	case models.StatusRunning:
		return "▶"
	case models.StatusSuccess:
		return "✓"
	case models.StatusFailed:
		return "✗"
	case models.StatusStopped:
		return "■"
	default:
		return "?"
	}
}
