// Package conversation holds the transcript of a single chat session and the
// pure functions that advance it. Every function takes a State and returns a
// new one; slices reachable from the input are never written to, so callers
// can keep old states around (e.g. for rendering) without copying.
package conversation

// Role identifies the author of a message. The values match the wire format.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// ErrorReply replaces the in-progress reply when a turn fails.
const ErrorReply = "An error occurred, please try again later"

// Message is one entry of the transcript.
type Message struct {
	ID   int
	Role Role
	Text string
}

// Phase tracks where the current turn is.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSending
	PhaseStreaming
	PhaseErrored
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSending:
		return "sending"
	case PhaseStreaming:
		return "streaming"
	case PhaseErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Turn describes the request for the turn currently in flight.
type Turn struct {
	ReplyID int       // message being streamed into
	Msg     string    // text the user submitted
	History []Message // transcript before the user message
}
