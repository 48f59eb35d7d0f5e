package stream

import (
	"strings"

	"nightshade/pkg/conversation"
)

// Part is one text part of a wire message.
type Part struct {
	Text string `json:"text"`
}

// WireMessage is a transcript entry as the chat endpoint expects it.
type WireMessage struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

// Request is the JSON body of POST /api/chat.
type Request struct {
	History []WireMessage `json:"history"`
	Msg     string        `json:"msg"`
}

// NewRequest builds the request body for a turn.
func NewRequest(turn conversation.Turn) Request {
	history := make([]WireMessage, 0, len(turn.History))
	for _, msg := range turn.History {
		history = append(history, ToWire(msg))
	}
	return Request{History: history, Msg: turn.Msg}
}

// ToWire converts a transcript message to its wire form.
func ToWire(msg conversation.Message) WireMessage {
	return WireMessage{
		Role:  string(msg.Role),
		Parts: []Part{{Text: msg.Text}},
	}
}

// Text concatenates all parts of a wire message.
func (m WireMessage) Text() string {
	switch len(m.Parts) {
	case 0:
		return ""
	case 1:
		return m.Parts[0].Text
	}
	var sb strings.Builder
	for _, p := range m.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String()
}
