// Package transcript lays out conversation messages for the viewport: user
// messages as right-aligned bubbles, model replies as full-width Markdown.
package transcript

import (
	"strings"

	"nightshade/pkg/conversation"
	"nightshade/pkg/ui/styles"

	"charm.land/lipgloss/v2"
)

// bubbleRatio is the share of the width a user bubble may take.
const bubbleRatio = 0.8

// Markdown renders message text at a given width.
type Markdown interface {
	Render(text string, width int, dark bool) string
}

type cacheKey struct {
	id    int
	width int
	dark  bool
}

type cacheEntry struct {
	text string
	out  string
}

// Transcript renders messages and remembers the result per message, so a
// streamed chunk only re-renders the reply it belongs to.
type Transcript struct {
	md    Markdown
	cache map[cacheKey]cacheEntry
}

// New creates a transcript renderer backed by md.
func New(md Markdown) *Transcript {
	return &Transcript{
		md:    md,
		cache: make(map[cacheKey]cacheEntry),
	}
}

// Render lays out msgs for a viewport width columns wide.
func (t *Transcript) Render(msgs []conversation.Message, width int, theme styles.Theme) string {
	if width < 1 {
		width = 1
	}
	blocks := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		// The reply placeholder has no text until the first chunk; the
		// spinner stands in for it.
		if msg.Text == "" {
			continue
		}
		blocks = append(blocks, t.renderMessage(msg, width, theme))
	}
	return strings.Join(blocks, "\n\n")
}

// Forget drops cached output, e.g. after the theme palette changed.
func (t *Transcript) Forget() {
	clear(t.cache)
}

func (t *Transcript) renderMessage(msg conversation.Message, width int, theme styles.Theme) string {
	key := cacheKey{id: msg.ID, width: width, dark: theme.Dark}
	if entry, ok := t.cache[key]; ok && entry.text == msg.Text {
		return entry.out
	}

	var out string
	switch {
	case msg.Role == conversation.RoleUser:
		out = t.renderUser(msg.Text, width, theme)
	case msg.Text == conversation.ErrorReply:
		out = theme.ErrorMsg.Width(width).Render(msg.Text)
	default:
		out = theme.ModelMsg.Render(t.md.Render(Sanitize(msg.Text), width, theme.Dark))
	}

	t.cache[key] = cacheEntry{text: msg.Text, out: out}
	return out
}

func (t *Transcript) renderUser(text string, width int, theme styles.Theme) string {
	maxBubble := int(float64(width) * bubbleRatio)
	if maxBubble < 1 {
		maxBubble = 1
	}
	// Padding(0, 1) takes two columns.
	inner := maxBubble - 2
	if inner < 1 {
		inner = 1
	}

	body := t.md.Render(Sanitize(text), inner, theme.Dark)
	bubble := theme.UserMsg.Render(body)
	return lipgloss.PlaceHorizontal(width, lipgloss.Right, bubble)
}

// Sanitize drops control characters other than newline and tab so streamed
// text cannot move the cursor or change terminal modes.
func Sanitize(content string) string {
	if content == "" {
		return content
	}
	content = strings.ReplaceAll(content, "\r\n", "\n")
	var sb strings.Builder
	sb.Grow(len(content))
	for _, r := range content {
		switch r {
		case '\n', '\t':
			sb.WriteRune(r)
			continue
		}
		if r < 0x20 || r == 0x7f || (r >= 0x80 && r < 0xa0) {
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
