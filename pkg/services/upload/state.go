package upload

// State is the lifecycle phase of one upload.
type State uint32

const (
	// StatePrepare covers one-shot initialization: writers are acquired
	// from the shared pool (possibly blocking) and the manifest ticker
	// starts.
	StatePrepare State = iota

	// StateNotFull accepts more data.
	StateNotFull

	// StateFull withholds the sender's reply until a completed block
	// write frees buffer space.
	StateFull

	// StateAllReceived has every byte of the object and waits for the
	// outstanding block writes to drain.
	StateAllReceived

	// StateDone has all writes acknowledged, finalize replies with the
	// manifest immediately.
	StateDone

	// StateFailed is terminal after a writer failure or cancellation.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePrepare:
		return "prepare"
	case StateNotFull:
		return "not_full"
	case StateFull:
		return "full"
	case StateAllReceived:
		return "all_received"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
