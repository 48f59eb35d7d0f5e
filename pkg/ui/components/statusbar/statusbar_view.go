package statusbar

import (
	"fmt"
	"strings"

	"nightshade/pkg/ui/styles"

	"github.com/charmbracelet/x/ansi"
)

// KeyHint is one entry of the key help.
type KeyHint struct {
	Key  string
	Desc string
}

// DefaultHints is the key help shown in the footer.
var DefaultHints = []KeyHint{
	{"Enter", "send"},
	{"Shift+Enter", "newline"},
	{"Ctrl+T", "theme"},
	{"Ctrl+Y", "copy"},
	{"PgUp/PgDn", "scroll"},
	{"Esc", "quit"},
}

// StatusBarView renders the footer: key help on the left, the endpoint or a
// transient message on the right.
type StatusBarView struct {
	hints    []KeyHint
	message  string
	endpoint string
	width    int
	theme    styles.Theme
}

// NewStatusBarView creates a new status bar view
func NewStatusBarView() *StatusBarView {
	return &StatusBarView{
		hints: DefaultHints,
		width: 80,
		theme: styles.Dark(),
	}
}

// SetEndpoint sets the chat endpoint shown when there is no message.
func (s *StatusBarView) SetEndpoint(endpoint string) {
	s.endpoint = strings.TrimSpace(endpoint)
}

// SetMessage sets a temporary message
func (s *StatusBarView) SetMessage(msg string) {
	s.message = msg
}

// ClearMessage removes the temporary message.
func (s *StatusBarView) ClearMessage() {
	s.message = ""
}

// Message returns the temporary message, if any.
func (s *StatusBarView) Message() string {
	return s.message
}

// SetWidth updates the width for rendering
func (s *StatusBarView) SetWidth(width int) {
	s.width = width
}

// SetTheme switches the palette.
func (s *StatusBarView) SetTheme(theme styles.Theme) {
	s.theme = theme
}

// Render returns the styled status bar string
func (s *StatusBarView) Render() string {
	right := s.message
	if right == "" {
		right = s.endpoint
	}

	// Right side wins; key help is truncated first (ANSI-aware width).
	rightWidth := ansi.StringWidth(right)
	if rightWidth > s.width/2 {
		right = ansi.Truncate(right, s.width/2, "...")
		rightWidth = ansi.StringWidth(right)
	}

	leftWidth := s.width - rightWidth - 1
	if leftWidth < 0 {
		leftWidth = 0
	}
	left := ansi.Truncate(s.renderHints(), leftWidth, "...")

	gap := s.width - ansi.StringWidth(left) - rightWidth
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + s.theme.Footer.Render(right)
}

func (s *StatusBarView) renderHints() string {
	parts := make([]string, 0, len(s.hints))
	for _, h := range s.hints {
		parts = append(parts, fmt.Sprintf("%s %s",
			s.theme.FooterKey.Render(h.Key),
			s.theme.Footer.Render(h.Desc),
		))
	}
	return strings.Join(parts, s.theme.Footer.Render(" · "))
}
