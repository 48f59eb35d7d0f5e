package conversation

import "strings"

// State is the single source of truth for what is rendered.
type State struct {
	transcript []Message
	phase      Phase
	replyID    int
	nextID     int
}

// New returns a state seeded with one model greeting.
func New(greeting string) State {
	return State{
		transcript: []Message{{ID: 1, Role: RoleModel, Text: greeting}},
		phase:      PhaseIdle,
		nextID:     2,
	}
}

// Transcript returns a copy of the messages in display order.
func (s State) Transcript() []Message {
	out := make([]Message, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// Len returns the number of messages.
func (s State) Len() int { return len(s.transcript) }

// Phase returns the current turn phase.
func (s State) Phase() Phase { return s.phase }

// InFlight reports whether a request is between submission and completion.
func (s State) InFlight() bool {
	return s.phase == PhaseSending || s.phase == PhaseStreaming
}

// ReplyID returns the ID of the message being streamed into, or 0.
func (s State) ReplyID() int { return s.replyID }

// Last returns the most recently added message.
func (s State) Last() (Message, bool) {
	if len(s.transcript) == 0 {
		return Message{}, false
	}
	return s.transcript[len(s.transcript)-1], true
}

// LastReply returns the newest model message that has text.
func (s State) LastReply() (Message, bool) {
	for i := len(s.transcript) - 1; i >= 0; i-- {
		msg := s.transcript[i]
		if msg.Role == RoleModel && msg.Text != "" {
			return msg, true
		}
	}
	return Message{}, false
}

// ActiveTurn returns the request parameters of the turn in flight.
func (s State) ActiveTurn() (Turn, bool) {
	if !s.InFlight() {
		return Turn{}, false
	}
	idx := s.indexOf(s.replyID)
	if idx < 1 {
		return Turn{}, false
	}
	history := make([]Message, idx-1)
	copy(history, s.transcript[:idx-1])
	return Turn{
		ReplyID: s.replyID,
		Msg:     s.transcript[idx-1].Text,
		History: history,
	}, true
}

func (s State) indexOf(id int) int {
	// The reply is almost always last; search from the end.
	for i := len(s.transcript) - 1; i >= 0; i-- {
		if s.transcript[i].ID == id {
			return i
		}
	}
	return -1
}

// AppendUserTurn starts a turn. It is a no-op when text is blank or a turn is
// already in flight; the second return value reports whether it was accepted.
func AppendUserTurn(s State, text string) (State, bool) {
	if strings.TrimSpace(text) == "" || s.InFlight() {
		return s, false
	}

	userID := s.nextID
	replyID := s.nextID + 1

	transcript := make([]Message, len(s.transcript), len(s.transcript)+2)
	copy(transcript, s.transcript)
	transcript = append(transcript,
		Message{ID: userID, Role: RoleUser, Text: text},
		Message{ID: replyID, Role: RoleModel, Text: ""},
	)

	return State{
		transcript: transcript,
		phase:      PhaseSending,
		replyID:    replyID,
		nextID:     replyID + 1,
	}, true
}

// ApplyChunk replaces the text of the active reply with the cumulative text
// received so far. Calls for any other message, or outside a turn, are ignored.
func ApplyChunk(s State, id int, cumulative string) State {
	if !s.InFlight() || id != s.replyID {
		return s
	}
	next := s.withText(id, cumulative)
	next.phase = PhaseStreaming
	return next
}

// Finish ends the active turn. A non-nil err replaces the partial reply with
// ErrorReply.
func Finish(s State, id int, err error) State {
	if !s.InFlight() || id != s.replyID {
		return s
	}
	next := s
	next.phase = PhaseIdle
	if err != nil {
		next = s.withText(id, ErrorReply)
		next.phase = PhaseErrored
	}
	next.replyID = 0
	return next
}

func (s State) withText(id int, text string) State {
	idx := s.indexOf(id)
	if idx < 0 || s.transcript[idx].Role != RoleModel {
		return s
	}
	if s.transcript[idx].Text == text {
		return s
	}
	transcript := make([]Message, len(s.transcript))
	copy(transcript, s.transcript)
	transcript[idx].Text = text
	s.transcript = transcript
	return s
}
