// Package ui is the interactive chat screen.
package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"nightshade/pkg/chat"
	"nightshade/pkg/conversation"
	"nightshade/pkg/logging"
	"nightshade/pkg/stream"
	"nightshade/pkg/ui/components/header"
	"nightshade/pkg/ui/components/statusbar"
	"nightshade/pkg/ui/components/transcript"
	"nightshade/pkg/ui/components/viewport"
	"nightshade/pkg/ui/markdown"
	"nightshade/pkg/ui/styles"

	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textarea"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	osc52 "github.com/aymanbagabas/go-osc52/v2"
)

// errStreamClosed is reported when a turn's channel closes without a
// terminal event.
var errStreamClosed = errors.New("reply stream closed unexpectedly")

// Options configures the chat screen.
type Options struct {
	Theme    string
	Endpoint string
	Logger   *slog.Logger

	// Clipboard receives OSC 52 sequences; defaults to stdout.
	Clipboard io.Writer
}

// Model represents the Bubble Tea application state
type Model struct {
	ctx     context.Context
	session *chat.Session
	turn    *chat.Turn
	logger  *slog.Logger

	// UI Components
	viewport   viewport.TranscriptViewport
	input      textarea.Model
	spinner    spinner.Model
	statusBar  *statusbar.StatusBarView
	transcript *transcript.Transcript
	layout     *LayoutManager
	keys       keyMap

	theme     styles.Theme
	clipboard io.Writer

	// UI state
	width  int
	height int
	ready  bool
}

// NewModel creates the chat screen for session. ctx bounds every request the
// screen starts.
func NewModel(ctx context.Context, session *chat.Session, opts Options) Model {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Clipboard == nil {
		opts.Clipboard = os.Stdout
	}

	keys := defaultKeyMap()

	ta := textarea.New()
	ta.Placeholder = "Type your message..."
	ta.Prompt = ""
	ta.ShowLineNumbers = false
	ta.SetHeight(inputRows)
	ta.KeyMap.InsertNewline = keys.Newline
	ta.KeyMap.TransposeCharacterBackward.SetEnabled(false)
	ta.Focus()

	theme := styles.ByName(opts.Theme)

	sb := statusbar.NewStatusBarView()
	sb.SetEndpoint(opts.Endpoint)
	sb.SetTheme(theme)

	m := Model{
		ctx:        ctx,
		session:    session,
		logger:     opts.Logger,
		viewport:   viewport.NewTranscriptViewport(),
		input:      ta,
		spinner:    spinner.New(spinner.WithSpinner(spinner.Dot)),
		statusBar:  sb,
		transcript: transcript.New(markdown.New()),
		layout:     NewLayoutManager(),
		keys:       keys,
		clipboard:  opts.Clipboard,
	}
	m.applyTheme(theme)
	return m
}

// Init initializes the model (Bubble Tea lifecycle method)
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// Update handles messages and updates model state (Bubble Tea lifecycle method)
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true

		m.layout.SetSize(msg.Width, msg.Height)
		m.viewport.SetSize(m.layout.TranscriptWidth(), m.layout.TranscriptHeight())
		m.input.SetWidth(m.layout.InputWidth())
		m.statusBar.SetWidth(msg.Width)
		m.transcript.Forget()
		m.refresh()
		return m, nil

	case tea.KeyPressMsg:
		return m.handleKey(msg)

	case tea.MouseWheelMsg:
		return m, m.viewport.Update(msg)

	case streamEventMsg:
		return m.handleStreamEvent(msg)

	case clipboardMsg:
		m.statusBar.SetMessage(msg.status)
		return m, nil

	case spinner.TickMsg:
		if !m.session.State().InFlight() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	// Paste and cursor blink; the textarea ignores both while blurred.
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	// Any key dismisses a transient status message.
	m.statusBar.ClearMessage()

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.session.Cancel()
		m.logger.Info("ui_quit", "messages", m.session.State().Len())
		return m, tea.Quit

	case key.Matches(msg, m.keys.ToggleTheme):
		m.applyTheme(m.theme.Toggle())
		m.logger.Debug("ui_theme_toggle", "theme", m.theme.Name)
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.Copy):
		return m, m.copyLastReply()

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.PageUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.PageDown()
		return m, nil

	case key.Matches(msg, m.keys.Send):
		return m.submit()
	}

	if m.session.State().InFlight() {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	turn, ok := m.session.Submit(m.ctx, m.input.Value())
	if !ok {
		return m, nil
	}

	m.turn = turn
	m.input.Reset()
	m.input.Blur()
	m.viewport.GotoBottom()
	m.refresh()

	return m, tea.Batch(waitForEvent(turn), m.spinner.Tick)
}

func (m Model) handleStreamEvent(msg streamEventMsg) (tea.Model, tea.Cmd) {
	if m.turn == nil || msg.turnID != m.turn.ID {
		return m, nil
	}

	ev := msg.event
	if msg.closed {
		ev = stream.Event{Done: true, Err: errStreamClosed}
	}

	done := m.session.Apply(msg.turnID, ev)
	m.refresh()
	if !done {
		return m, waitForEvent(m.turn)
	}

	m.turn = nil
	return m, m.input.Focus()
}

func (m *Model) applyTheme(theme styles.Theme) {
	m.theme = theme
	m.statusBar.SetTheme(theme)
	m.spinner.Style = theme.Spinner

	st := textarea.DefaultStyles(theme.Dark)
	st.Focused.Placeholder = theme.Footer
	st.Blurred.Placeholder = theme.Footer
	m.input.SetStyles(st)
}

// refresh re-renders the transcript into the viewport.
func (m *Model) refresh() {
	if !m.ready {
		return
	}
	content := m.transcript.Render(m.session.State().Transcript(), m.layout.TranscriptWidth(), m.theme)
	m.viewport.SetContent(content)
}

func (m Model) copyLastReply() tea.Cmd {
	reply, ok := m.session.State().LastReply()
	if !ok {
		return nil
	}
	text := reply.Text
	out := m.clipboard
	logger := m.logger
	return func() tea.Msg {
		if _, err := fmt.Fprint(out, osc52.New(text)); err != nil {
			logger.Warn("ui_copy_failed", "error", err)
			return clipboardMsg{status: "Copy failed"}
		}
		return clipboardMsg{status: "Copied last reply"}
	}
}

// View renders the UI (Bubble Tea lifecycle method)
func (m Model) View() tea.View {
	if !m.ready {
		return tea.NewView("Initializing...")
	}

	inputStyle := m.theme.InputFocused
	if !m.input.Focused() {
		inputStyle = m.theme.InputBlurred
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		header.Render(m.width, m.theme),
		m.theme.Transcript.Width(m.width).Render(m.viewport.View()),
		m.statusLine(),
		inputStyle.Width(m.width).Render(m.input.View()),
		m.statusBar.Render(),
	)

	v := tea.NewView(content)
	v.AltScreen = true
	v.MouseMode = tea.MouseModeCellMotion
	v.BackgroundColor = m.theme.Background
	v.WindowTitle = header.Title
	return v
}

func (m Model) statusLine() string {
	state := m.session.State()
	switch state.Phase() {
	case conversation.PhaseSending:
		return m.spinner.View() + m.theme.Footer.Render(" Waiting for reply...")
	case conversation.PhaseStreaming:
		return m.spinner.View() + m.theme.Footer.Render(" Streaming...")
	case conversation.PhaseErrored:
		return m.theme.ErrorMsg.Render("Last request failed. Send a message to try again.")
	}
	if !m.viewport.IsFollowing() {
		return m.theme.Footer.Render("More below. PgDn to follow.")
	}
	return ""
}

// Stream message types

type streamEventMsg struct {
	turnID int
	event  stream.Event
	closed bool
}

type clipboardMsg struct {
	status string
}

// waitForEvent pulls the next event of turn. One command per event keeps
// chunk application in read order.
func waitForEvent(turn *chat.Turn) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-turn.Events
		return streamEventMsg{turnID: turn.ID, event: ev, closed: !ok}
	}
}
