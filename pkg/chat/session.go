// Package chat runs one conversation: it owns the conversation state, opens a
// stream per accepted turn and folds the stream's events back into the state.
//
// A Session is not safe for concurrent use. All calls are expected from a
// single goroutine (the UI update loop or the pipe loop); the stream's own
// goroutine only talks to it through the turn's event channel.
package chat

import (
	"context"
	"log/slog"
	"strings"

	"nightshade/pkg/conversation"
	"nightshade/pkg/logging"
	"nightshade/pkg/stream"
)

// Streamer opens one streamed reply per request.
type Streamer interface {
	Stream(ctx context.Context, req stream.Request) <-chan stream.Event
}

// Turn is the handle for a request in flight.
type Turn struct {
	ID     int // ID of the reply message being streamed into
	Events <-chan stream.Event
}

// Session is one in-memory conversation.
type Session struct {
	streamer Streamer
	logger   *slog.Logger
	state    conversation.State
	cancel   context.CancelFunc
}

// NewSession creates a session seeded with greeting.
func NewSession(streamer Streamer, greeting string, logger *slog.Logger) *Session {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Session{
		streamer: streamer,
		logger:   logger,
		state:    conversation.New(greeting),
	}
}

// State returns the current conversation state.
func (s *Session) State() conversation.State {
	return s.state
}

// Submit starts a turn for text. Blank text and submissions while a turn is
// in flight are ignored and report false.
func (s *Session) Submit(ctx context.Context, text string) (*Turn, bool) {
	next, ok := conversation.AppendUserTurn(s.state, text)
	if !ok {
		reason := "in_flight"
		if strings.TrimSpace(text) == "" {
			reason = "empty_input"
		}
		s.logger.Debug("chat_turn_ignored", "reason", reason)
		return nil, false
	}
	s.state = next

	turn, _ := s.state.ActiveTurn()
	streamCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.logger.Info("chat_turn_submit",
		"reply_id", turn.ReplyID,
		"history_messages", len(turn.History),
		"msg_chars", len(turn.Msg),
	)

	events := s.streamer.Stream(streamCtx, stream.NewRequest(turn))
	return &Turn{ID: turn.ReplyID, Events: events}, true
}

// Apply folds one stream event for turn id into the state. It reports
// whether the turn is over.
func (s *Session) Apply(id int, ev stream.Event) bool {
	if !ev.Done {
		s.state = conversation.Reduce(s.state, conversation.ChunkReceived{ID: id, Text: ev.Text})
		return false
	}

	if ev.Err == nil {
		// The terminal event repeats the full text; apply it so a consumer
		// that skipped nothing still ends on the exact concatenation.
		s.state = conversation.Reduce(s.state, conversation.ChunkReceived{ID: id, Text: ev.Text})
		s.logger.Info("chat_turn_done", "reply_id", id, "reply_chars", len(ev.Text))
	} else {
		s.logger.Warn("chat_turn_failed", "reply_id", id, "error", ev.Err)
	}
	s.state = conversation.Reduce(s.state, conversation.Finished{ID: id, Err: ev.Err})
	s.release()
	return true
}

// Cancel abandons the turn in flight, if any.
func (s *Session) Cancel() {
	s.release()
}

func (s *Session) release() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}
