package upload

// Events are processed one at a time by the upload's goroutine, interleaved
// with manifest ticks read from the ticker channel in the same loop, so
// state transitions never race: writers communicate with the state machine
// exclusively through this stream.
type event interface{ event() }

// augment carries one chunk of client data. The reply is withheld while
// the upload sits in the full state.
type augment struct {
	data  []byte
	reply chan error
}

// written reports one writer's completed (or failed) block write.
type written struct {
	block  uint32
	writer int
	err    error
}

// finalizeReq asks for the completed manifest, deferring the reply until
// the upload drains.
type finalizeReq struct {
	reply chan finalizeRes
}

type finalizeRes struct {
	manifest *Manifest
	err      error
}

// closeReq shuts the upload down, cancelling any deferred callers.
type closeReq struct {
	done chan struct{}
}

func (augment) event()     {}
func (written) event()     {}
func (finalizeReq) event() {}
func (closeReq) event()    {}
