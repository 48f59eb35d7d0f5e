package viewport

import (
	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
)

// TranscriptViewport wraps Bubble Tea's viewport for the chat transcript.
// It sticks to the bottom while new text arrives unless the user has
// scrolled up.
type TranscriptViewport struct {
	Viewport viewport.Model
	content  string
	ready    bool
	follow   bool
}

// NewTranscriptViewport creates a viewport that follows new content.
func NewTranscriptViewport() TranscriptViewport {
	vp := viewport.New()
	vp.MouseWheelEnabled = true
	// Letters go to the input box; only paging keys scroll the transcript.
	vp.KeyMap = viewport.KeyMap{
		PageDown: key.NewBinding(key.WithKeys("pgdown")),
		PageUp:   key.NewBinding(key.WithKeys("pgup")),
	}
	return TranscriptViewport{
		Viewport: vp,
		follow:   true,
	}
}

// SetSize updates the viewport dimensions
func (v *TranscriptViewport) SetSize(width, height int) {
	v.Viewport.SetWidth(width)
	v.Viewport.SetHeight(height)
	v.ready = true
	if v.follow {
		v.Viewport.GotoBottom()
	}
}

// SetContent replaces the rendered transcript.
func (v *TranscriptViewport) SetContent(content string) {
	v.content = content
	v.Viewport.SetContent(content)
	if v.follow {
		v.Viewport.GotoBottom()
	}
}

// GetContent returns the current viewport content
func (v *TranscriptViewport) GetContent() string {
	return v.content
}

// Update handles mouse wheel and paging keys.
func (v *TranscriptViewport) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	v.Viewport, cmd = v.Viewport.Update(msg)
	v.follow = v.Viewport.AtBottom()
	return cmd
}

// View renders the viewport
func (v *TranscriptViewport) View() string {
	if !v.ready {
		return "Loading..."
	}
	return v.Viewport.View()
}

// PageUp scrolls up one page and stops following.
func (v *TranscriptViewport) PageUp() {
	v.Viewport.PageUp()
	v.follow = v.Viewport.AtBottom()
}

// PageDown scrolls down one page; reaching the bottom resumes following.
func (v *TranscriptViewport) PageDown() {
	v.Viewport.PageDown()
	v.follow = v.Viewport.AtBottom()
}

// GotoBottom jumps to the newest message and resumes following.
func (v *TranscriptViewport) GotoBottom() {
	v.Viewport.GotoBottom()
	v.follow = true
}

// IsFollowing reports whether new content scrolls into view.
func (v *TranscriptViewport) IsFollowing() bool {
	return v.follow
}

// IsAtBottom returns true if scrolled to bottom
func (v *TranscriptViewport) IsAtBottom() bool {
	return v.Viewport.AtBottom()
}
