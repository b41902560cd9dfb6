package main

// AppState is the daemon's session state. Exactly one value is live per
// process, owned and mutated only by the control thread.
type AppState int

const (
	StateIdle AppState = iota
	StateListening
	StateRecording
	StateTranscribing
	StateRefining
	StateDone
	StateError
)

func (s AppState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateRecording:
		return "recording"
	case StateTranscribing:
		return "transcribing"
	case StateRefining:
		return "refining"
	case StateDone:
		return "done"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}
