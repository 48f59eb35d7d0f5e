// Package styles provides the dark and light themes for the nightshade UI.
// Every component takes its colors and styles from the active Theme so the
// whole screen switches together when the theme is toggled.
package styles

import (
	"image/color"

	"charm.land/lipgloss/v2"
)

// Theme names as they appear in config and on the command line.
const (
	NameDark  = "dark"
	NameLight = "light"
)

// Theme is a palette plus the styles derived from it.
type Theme struct {
	Name string
	Dark bool

	// Palette
	Primary    color.Color // Accent: title, spinner, focused border
	Secondary  color.Color
	UserBubble color.Color // Background of user messages
	Background color.Color // Screen background
	Paper      color.Color // Transcript and input panels
	Text       color.Color
	TextMuted  color.Color
	Error      color.Color

	// Header
	Title      lipgloss.Style
	ThemeLabel lipgloss.Style

	// Transcript
	Transcript lipgloss.Style
	UserMsg    lipgloss.Style
	ModelMsg   lipgloss.Style
	ErrorMsg   lipgloss.Style

	// Input
	InputFocused lipgloss.Style
	InputBlurred lipgloss.Style
	Spinner      lipgloss.Style

	// Footer
	Footer    lipgloss.Style
	FooterKey lipgloss.Style
}

// Dark returns the default theme.
func Dark() Theme {
	return build(NameDark, true, palette{
		primary:    "#10b981",
		secondary:  "#10b981",
		userBubble: "#203a39",
		background: "#000000",
		paper:      "#0f1515",
		text:       "#e5e7eb",
		textMuted:  "#6b7280",
		err:        "#f87171",
	})
}

// Light returns the light theme.
func Light() Theme {
	return build(NameLight, false, palette{
		primary:    "#2563eb",
		secondary:  "#059669",
		userBubble: "#eddcd2",
		background: "#f0efeb",
		paper:      "#ffffff",
		text:       "#1f2937",
		textMuted:  "#6b7280",
		err:        "#dc2626",
	})
}

// ByName returns the theme called name, falling back to Dark.
func ByName(name string) Theme {
	if name == NameLight {
		return Light()
	}
	return Dark()
}

// Toggle returns the other theme.
func (t Theme) Toggle() Theme {
	if t.Dark {
		return Light()
	}
	return Dark()
}

type palette struct {
	primary, secondary, userBubble, background, paper, text, textMuted, err string
}

func build(name string, dark bool, p palette) Theme {
	t := Theme{
		Name:       name,
		Dark:       dark,
		Primary:    lipgloss.Color(p.primary),
		Secondary:  lipgloss.Color(p.secondary),
		UserBubble: lipgloss.Color(p.userBubble),
		Background: lipgloss.Color(p.background),
		Paper:      lipgloss.Color(p.paper),
		Text:       lipgloss.Color(p.text),
		TextMuted:  lipgloss.Color(p.textMuted),
		Error:      lipgloss.Color(p.err),
	}

	t.Title = lipgloss.NewStyle().
		Foreground(t.Primary).
		Bold(true)

	t.ThemeLabel = lipgloss.NewStyle().
		Foreground(t.TextMuted)

	t.Transcript = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.TextMuted).
		Padding(0, 1)

	t.UserMsg = lipgloss.NewStyle().
		Foreground(t.Text).
		Background(t.UserBubble).
		Padding(0, 1)

	t.ModelMsg = lipgloss.NewStyle().
		Foreground(t.Text)

	t.ErrorMsg = lipgloss.NewStyle().
		Foreground(t.Error).
		Italic(true)

	t.InputFocused = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Primary)

	t.InputBlurred = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.TextMuted)

	t.Spinner = lipgloss.NewStyle().
		Foreground(t.Primary)

	t.Footer = lipgloss.NewStyle().
		Foreground(t.TextMuted).
		Italic(true)

	t.FooterKey = lipgloss.NewStyle().
		Foreground(t.Secondary).
		Bold(true)

	return t
}
