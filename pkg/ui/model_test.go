package ui

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"nightshade/pkg/chat"
	"nightshade/pkg/conversation"
	"nightshade/pkg/stream"
	"nightshade/pkg/ui/components/testutils"
	"nightshade/pkg/ui/styles"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/x/ansi"
)

const greeting = "Hi, how can I be of assistance?"

// chanStreamer hands out a fresh channel per request and keeps it so the
// test can feed events.
type chanStreamer struct {
	requests []stream.Request
	channels []chan stream.Event
}

func (c *chanStreamer) Stream(ctx context.Context, req stream.Request) <-chan stream.Event {
	ch := make(chan stream.Event, 16)
	c.requests = append(c.requests, req)
	c.channels = append(c.channels, ch)
	return ch
}

func newTestModel(t *testing.T) (Model, *chanStreamer) {
	t.Helper()
	streamer := &chanStreamer{}
	session := chat.NewSession(streamer, greeting, nil)
	m := NewModel(context.Background(), session, Options{
		Endpoint:  "http://localhost:3000/api/chat",
		Clipboard: &bytes.Buffer{},
	})
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return updated.(Model), streamer
}

func send(t *testing.T, m Model, msgs ...tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, msg := range msgs {
		var next tea.Model
		next, cmd = m.Update(msg)
		m = next.(Model)
	}
	return m, cmd
}

func typeAndSend(t *testing.T, m Model, text string) (Model, tea.Cmd) {
	t.Helper()
	m, _ = send(t, m, testutils.TypeText(text)...)
	return send(t, m, testutils.TestKeyEnter)
}

func viewText(m Model) string {
	return ansi.Strip(m.View().Content)
}

func TestNewModel(t *testing.T) {
	session := chat.NewSession(&chanStreamer{}, greeting, nil)
	m := NewModel(context.Background(), session, Options{})

	if m.session == nil {
		t.Error("Expected session to be set")
	}
	if m.theme.Name != styles.NameDark {
		t.Errorf("Expected dark theme by default, got %q", m.theme.Name)
	}
	if !m.input.Focused() {
		t.Error("Expected input to be focused")
	}
	if m.clipboard == nil {
		t.Error("Expected clipboard writer to default to stdout")
	}
}

func TestModel_Init(t *testing.T) {
	m, _ := newTestModel(t)

	if cmd := m.Init(); cmd == nil {
		t.Error("Expected Init() to return a command")
	}
}

func TestModel_Update_WindowSize(t *testing.T) {
	m, _ := newTestModel(t)

	if m.width != 80 || m.height != 24 {
		t.Errorf("Expected 80x24, got %dx%d", m.width, m.height)
	}
	if !m.ready {
		t.Error("Expected ready to be true after window size")
	}
	if got := m.viewport.Viewport.Height(); got != 14 {
		t.Errorf("Expected transcript height 14, got %d", got)
	}
	if got := m.viewport.Viewport.Width(); got != 76 {
		t.Errorf("Expected transcript width 76, got %d", got)
	}
}

func TestModel_View_BeforeReady(t *testing.T) {
	session := chat.NewSession(&chanStreamer{}, greeting, nil)
	m := NewModel(context.Background(), session, Options{})

	if got := m.View().Content; got != "Initializing..." {
		t.Errorf("Expected initializing view, got %q", got)
	}
}

func TestModel_View_ShowsGreetingAndChrome(t *testing.T) {
	m, _ := newTestModel(t)

	view := viewText(m)
	for _, want := range []string{"Nightshade AI", "Dark mode", "assistance", "Enter send"} {
		if !strings.Contains(view, want) {
			t.Errorf("Expected view to contain %q", want)
		}
	}

	v := m.View()
	if !v.AltScreen {
		t.Error("Expected alt screen")
	}
	if v.MouseMode != tea.MouseModeCellMotion {
		t.Error("Expected mouse wheel reporting")
	}
}

func TestModel_SubmitStartsTurn(t *testing.T) {
	m, streamer := newTestModel(t)

	m, cmd := typeAndSend(t, m, "hello")

	if cmd == nil {
		t.Fatal("Expected a command to wait for the stream")
	}
	if len(streamer.requests) != 1 || streamer.requests[0].Msg != "hello" {
		t.Fatalf("Expected one request for 'hello', got %+v", streamer.requests)
	}
	if m.turn == nil {
		t.Fatal("Expected an active turn")
	}
	if m.input.Value() != "" {
		t.Errorf("Expected input cleared, got %q", m.input.Value())
	}
	if m.input.Focused() {
		t.Error("Expected input disabled while the turn is in flight")
	}
	if !strings.Contains(viewText(m), "Waiting for reply") {
		t.Error("Expected progress line while sending")
	}
}

func TestModel_BlankSubmitIgnored(t *testing.T) {
	m, streamer := newTestModel(t)

	m, _ = typeAndSend(t, m, "   ")

	if len(streamer.requests) != 0 {
		t.Errorf("Expected no request, got %d", len(streamer.requests))
	}
	if m.turn != nil {
		t.Error("Expected no active turn")
	}
	if m.session.State().Len() != 1 {
		t.Errorf("Expected only the greeting, got %d messages", m.session.State().Len())
	}
}

func TestModel_StreamEventsUpdateTranscript(t *testing.T) {
	m, _ := newTestModel(t)
	m, _ = typeAndSend(t, m, "hello")
	id := m.turn.ID

	m, cmd := send(t, m, streamEventMsg{turnID: id, event: stream.Event{Text: "H"}})
	if cmd == nil {
		t.Error("Expected to keep waiting for events")
	}
	if last, _ := m.session.State().Last(); last.Text != "H" {
		t.Errorf("Expected partial reply 'H', got %q", last.Text)
	}
	if !strings.Contains(viewText(m), "Streaming") {
		t.Error("Expected streaming indicator")
	}

	m, _ = send(t, m,
		streamEventMsg{turnID: id, event: stream.Event{Text: "Hi!"}},
		streamEventMsg{turnID: id, event: stream.Event{Text: "Hi!", Done: true}},
	)

	want := []conversation.Message{
		{ID: 1, Role: conversation.RoleModel, Text: greeting},
		{ID: 2, Role: conversation.RoleUser, Text: "hello"},
		{ID: 3, Role: conversation.RoleModel, Text: "Hi!"},
	}
	got := m.session.State().Transcript()
	if len(got) != len(want) {
		t.Fatalf("Expected %d messages, got %+v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("message %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
	if m.session.State().InFlight() || m.turn != nil {
		t.Error("Expected turn finished")
	}
	if !m.input.Focused() {
		t.Error("Expected input re-enabled after the turn")
	}
	if !strings.Contains(viewText(m), "Hi!") {
		t.Error("Expected reply in view")
	}
}

func TestModel_WaitForEventReadsChannel(t *testing.T) {
	m, streamer := newTestModel(t)
	m, _ = typeAndSend(t, m, "hello")

	streamer.channels[0] <- stream.Event{Text: "Hey"}
	msg := waitForEvent(m.turn)()

	ev, ok := msg.(streamEventMsg)
	if !ok {
		t.Fatalf("Expected streamEventMsg, got %T", msg)
	}
	if ev.turnID != m.turn.ID || ev.event.Text != "Hey" || ev.closed {
		t.Errorf("Unexpected event %+v", ev)
	}

	close(streamer.channels[0])
	ev = waitForEvent(m.turn)().(streamEventMsg)
	if !ev.closed {
		t.Error("Expected closed channel to be reported")
	}
}

func TestModel_ClosedStreamFailsTurn(t *testing.T) {
	m, _ := newTestModel(t)
	m, _ = typeAndSend(t, m, "hello")
	id := m.turn.ID

	m, _ = send(t, m,
		streamEventMsg{turnID: id, event: stream.Event{Text: "par"}},
		streamEventMsg{turnID: id, closed: true},
	)

	last, _ := m.session.State().Last()
	if last.Text != conversation.ErrorReply {
		t.Errorf("Expected error reply, got %q", last.Text)
	}
	if m.session.State().Phase() != conversation.PhaseErrored {
		t.Errorf("Expected errored phase, got %s", m.session.State().Phase())
	}
	if !strings.Contains(viewText(m), "Last request failed") {
		t.Error("Expected failure hint in view")
	}
}

func TestModel_StreamErrorThenRetry(t *testing.T) {
	m, streamer := newTestModel(t)
	m, _ = typeAndSend(t, m, "hello")

	m, _ = send(t, m, streamEventMsg{turnID: m.turn.ID, event: stream.Event{Err: errors.New("boom"), Done: true}})
	m, _ = typeAndSend(t, m, "again")

	if len(streamer.requests) != 2 {
		t.Fatalf("Expected a second request after failure, got %d", len(streamer.requests))
	}
	history := streamer.requests[1].History
	if len(history) != 3 || history[2].Text() != conversation.ErrorReply {
		t.Errorf("Expected failed reply in history, got %+v", history)
	}
}

func TestModel_IgnoresStaleTurnEvents(t *testing.T) {
	m, _ := newTestModel(t)
	m, _ = typeAndSend(t, m, "hello")

	m, cmd := send(t, m, streamEventMsg{turnID: 99, event: stream.Event{Text: "stale"}})

	if cmd != nil {
		t.Error("Expected no follow-up for a stale event")
	}
	if last, _ := m.session.State().Last(); last.Text != "" {
		t.Errorf("Expected placeholder untouched, got %q", last.Text)
	}
}

func TestModel_TypingBlockedWhileInFlight(t *testing.T) {
	m, streamer := newTestModel(t)
	m, _ = typeAndSend(t, m, "hello")

	m, _ = typeAndSend(t, m, "more")

	if m.input.Value() != "" {
		t.Errorf("Expected input to ignore typing, got %q", m.input.Value())
	}
	if len(streamer.requests) != 1 {
		t.Errorf("Expected no concurrent request, got %d", len(streamer.requests))
	}
}

func TestModel_NewlineKeys(t *testing.T) {
	for _, tt := range []struct {
		name string
		key  tea.KeyPressMsg
	}{
		{"shift+enter", testutils.TestKeyShiftEnter},
		{"ctrl+j", testutils.TestKeyCtrlJ},
	} {
		t.Run(tt.name, func(t *testing.T) {
			m, streamer := newTestModel(t)

			m, _ = send(t, m, testutils.TypeText("a")...)
			m, _ = send(t, m, tt.key)
			m, _ = send(t, m, testutils.TypeText("b")...)

			if got := m.input.Value(); got != "a\nb" {
				t.Errorf("Expected %q, got %q", "a\nb", got)
			}
			if len(streamer.requests) != 0 {
				t.Error("Expected newline not to send")
			}
		})
	}
}

func TestModel_ToggleTheme(t *testing.T) {
	m, _ := newTestModel(t)

	m, _ = send(t, m, testutils.TestKeyCtrlT)
	if m.theme.Name != styles.NameLight {
		t.Fatalf("Expected light theme, got %q", m.theme.Name)
	}
	if !strings.Contains(viewText(m), "Light mode") {
		t.Error("Expected header to show the light theme")
	}

	m, _ = send(t, m, testutils.TestKeyCtrlT)
	if m.theme.Name != styles.NameDark {
		t.Errorf("Expected dark theme again, got %q", m.theme.Name)
	}
}

func TestModel_CopyLastReply(t *testing.T) {
	m, _ := newTestModel(t)
	clip := &bytes.Buffer{}
	m.clipboard = clip

	m, cmd := send(t, m, testutils.TestKeyCtrlY)
	if cmd == nil {
		t.Fatal("Expected a copy command")
	}
	msg := cmd()

	encoded := base64.StdEncoding.EncodeToString([]byte(greeting))
	if !strings.Contains(clip.String(), encoded) {
		t.Errorf("Expected OSC 52 payload with the greeting, got %q", clip.String())
	}

	m, _ = send(t, m, msg)
	if !strings.Contains(viewText(m), "Copied last reply") {
		t.Error("Expected copy confirmation in the status bar")
	}
}

func TestModel_Quit(t *testing.T) {
	for _, tt := range []struct {
		name string
		key  tea.KeyPressMsg
	}{
		{"esc", testutils.TestKeyEsc},
		{"ctrl+c", testutils.TestKeyCtrlC},
	} {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newTestModel(t)

			_, cmd := send(t, m, tt.key)
			if cmd == nil {
				t.Fatal("Expected quit command")
			}
			if _, ok := cmd().(tea.QuitMsg); !ok {
				t.Error("Expected tea.QuitMsg")
			}
		})
	}
}

func TestModel_PageUpStopsFollowing(t *testing.T) {
	m, _ := newTestModel(t)
	m, _ = typeAndSend(t, m, "hello")
	long := strings.Repeat("line\n\n", 40)
	m, _ = send(t, m, streamEventMsg{turnID: m.turn.ID, event: stream.Event{Text: long, Done: true}})

	m, _ = send(t, m, testutils.TestKeyPgUp)
	if m.viewport.IsFollowing() {
		t.Fatal("Expected page up to stop following")
	}
	if !strings.Contains(viewText(m), "PgDn to follow") {
		t.Error("Expected scroll hint")
	}

	// A new turn jumps back to the bottom.
	m, _ = typeAndSend(t, m, "next")
	if !m.viewport.IsFollowing() {
		t.Error("Expected submit to resume following")
	}
}
