package stream

// State represents the playback state of a session or stream.
type State int

const (
	StateIdle     State = iota // No stream open
	StatePlaying               // Stream is playing
	StateFinished              // Stream ran to completion
	StateFailed                // Backend reported an error
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StateFinished:
		return "finished"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal returns true if the state is terminal with respect to playback.
func (s State) Terminal() bool {
	return s == StateFinished || s == StateFailed
}

// Status is a snapshot of stream playback progress.
// Position and Length are in decoded bytes; Length is 0 when unknown.
type Status struct {
	State    State
	Position int64
	Length   int64
	Err      error // set when State is StateFailed
}

// Progress returns playback progress as a percentage (0-100).
func (s Status) Progress() float64 {
	if s.Length <= 0 {
		return 0
	}
	p := float64(s.Position) / float64(s.Length) * 100
	if p > 100 {
		return 100
	}
	return p
}
