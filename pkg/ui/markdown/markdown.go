// Package markdown renders message text for the terminal with glamour.
package markdown

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
	"github.com/charmbracelet/glamour/styles"
)

type cacheKey struct {
	width int
	dark  bool
}

// Renderer caches one glamour renderer per (width, theme). Building a
// glamour renderer is far more expensive than rendering with one, and the
// transcript is re-rendered on every streamed chunk.
type Renderer struct {
	mu        sync.Mutex
	renderers map[cacheKey]*glamour.TermRenderer
}

// New returns an empty renderer cache.
func New() *Renderer {
	return &Renderer{renderers: make(map[cacheKey]*glamour.TermRenderer)}
}

// Render renders text wrapped to width. On error the input is returned
// unchanged so a malformed partial reply still shows up.
func (r *Renderer) Render(text string, width int, dark bool) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	rendered, err := r.RenderWithError(text, width, dark)
	if err != nil {
		return text
	}
	return rendered
}

// RenderWithError is Render with the glamour error exposed.
func (r *Renderer) RenderWithError(text string, width int, dark bool) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if width < 1 {
		width = 1
	}
	key := cacheKey{width: width, dark: dark}

	tr, ok := r.renderers[key]
	if !ok {
		var err error
		tr, err = glamour.NewTermRenderer(
			glamour.WithStyles(styleConfig(dark)),
			glamour.WithWordWrap(width),
			glamour.WithPreservedNewLines(),
		)
		if err != nil {
			return "", err
		}
		r.renderers[key] = tr
	}

	out, err := tr.Render(text)
	if err != nil {
		return "", err
	}
	return strings.Trim(out, "\n"), nil
}

// styleConfig strips glamour's document margins; the transcript draws its
// own padding around each message.
func styleConfig(dark bool) ansi.StyleConfig {
	style := styles.LightStyleConfig
	if dark {
		style = styles.DarkStyleConfig
	}
	margin := uint(0)
	style.Document.Margin = &margin
	style.Document.BlockPrefix = ""
	style.Document.BlockSuffix = ""
	style.CodeBlock.Margin = &margin
	return style
}
