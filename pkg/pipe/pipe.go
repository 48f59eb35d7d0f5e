// Package pipe runs one chat turn without a terminal: the message comes from
// an io.Reader and the reply is streamed to an io.Writer as it arrives.
package pipe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"nightshade/pkg/chat"
	"nightshade/pkg/conversation"
	"nightshade/pkg/stream"
)

// ErrEmptyInput is returned when the input holds no message.
var ErrEmptyInput = errors.New("no message on input")

var errStreamClosed = errors.New("reply stream closed unexpectedly")

// Run reads all of in, sends it as one message and copies the reply to out.
// Only the newly received suffix of each cumulative update is written, so
// out sees the reply exactly once. A failed turn writes the error reply and
// returns the stream error.
func Run(ctx context.Context, session *chat.Session, in io.Reader, out io.Writer) error {
	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return ErrEmptyInput
	}

	turn, ok := session.Submit(ctx, text)
	if !ok {
		return errors.New("a turn is already in flight")
	}

	written := 0
	var streamErr error
	for done := false; !done; {
		ev, open := <-turn.Events
		if !open {
			ev = stream.Event{Done: true, Err: errStreamClosed}
		}

		if ev.Err == nil && len(ev.Text) > written {
			if _, err := io.WriteString(out, ev.Text[written:]); err != nil {
				session.Cancel()
				return fmt.Errorf("write reply: %w", err)
			}
			written = len(ev.Text)
		}

		streamErr = ev.Err
		done = session.Apply(turn.ID, ev)
	}

	if streamErr != nil {
		if written > 0 {
			_, _ = io.WriteString(out, "\n")
		}
		_, _ = fmt.Fprintln(out, conversation.ErrorReply)
		return streamErr
	}

	_, err = io.WriteString(out, "\n")
	return err
}
