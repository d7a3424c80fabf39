package poller

import "github.com/osa030/playbox/internal/domain/stream"

// EventType represents a poller event type.
type EventType int

const (
	EventProgress EventType = iota // Stream is still playing
	EventFinished                  // Stream ran to completion
	EventFailed                    // Backend reported an error
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventProgress:
		return "progress"
	case EventFinished:
		return "finished"
	case EventFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event carries the session status sampled on one poll tick.
type Event struct {
	Type   EventType
	Status stream.Status
}
