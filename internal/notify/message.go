package notify

// Kind tags a Message with its source.
type Kind int

// Message kinds.
const (
	KindState Kind = iota + 1
	KindEvent
)

func (k Kind) String() string {
	switch k {
	case KindState:
		return "state"
	case KindEvent:
		return "event"
	}
	return "unknown"
}

// Message is one stimulus delivered to a Queue.
type Message struct {
	Kind Kind
	// Vars holds, for state messages, the most recently notified value of
	// each name the receiving queue registered for. Guards are evaluated
	// against these rather than a fresh read of the store.
	Vars map[string]any
	// Args are the keyword arguments passed to the action that fires.
	Args map[string]any
}
