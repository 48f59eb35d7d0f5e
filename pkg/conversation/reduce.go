package conversation

// Event is something that happened to the conversation.
type Event interface {
	isEvent()
}

// Submitted is the user pressing send.
type Submitted struct {
	Text string
}

// ChunkReceived carries the cumulative reply text after a read.
type ChunkReceived struct {
	ID   int
	Text string
}

// Finished ends a turn; Err is nil on a clean end of stream.
type Finished struct {
	ID  int
	Err error
}

func (Submitted) isEvent()     {}
func (ChunkReceived) isEvent() {}
func (Finished) isEvent()      {}

// Reduce applies ev to s and returns the resulting state.
func Reduce(s State, ev Event) State {
	switch ev := ev.(type) {
	case Submitted:
		next, _ := AppendUserTurn(s, ev.Text)
		return next
	case ChunkReceived:
		return ApplyChunk(s, ev.ID, ev.Text)
	case Finished:
		return Finish(s, ev.ID, ev.Err)
	default:
		return s
	}
}
