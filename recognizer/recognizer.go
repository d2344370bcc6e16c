package recognizer

import (
	"errors"

	"voxkey/audio"
)

// Event is one recognizer output. Partials are incremental guesses for
// the utterance in progress; a Final settles it.
type Event struct {
	Kind       Kind
	Text       string
	Confidence float64
}

type Kind int

const (
	Partial Kind = iota
	Final
)

func (k Kind) String() string {
	if k == Final {
		return "final"
	}
	return "partial"
}

var (
	// ErrBusy means a Feed overlapped another Feed on the same decode
	// context. Feeds must be serialized by the caller.
	ErrBusy = errors.New("recognizer: concurrent feed")

	// ErrNotActive means there is no live decode context: Feed/Flush
	// before Reset, or after a Flush settled the utterance.
	ErrNotActive = errors.New("recognizer: no active decode context")

	// ErrStalled means the engine stopped draining audio and the
	// bounded feed wait expired.
	ErrStalled = errors.New("recognizer: engine stalled")

	ErrClosed = errors.New("recognizer: adapter closed")
)

// Adapter is a streaming decoder. Reset opens a fresh decode context
// (discarding any buffered partial state), Feed streams audio into it,
// and Flush ends the utterance so the engine settles exactly one Final.
//
// Events returns a single channel that stays valid across Resets and
// closes on Close. After Reset returns the old context emits nothing
// further; events it already buffered may still drain, so consumers
// gate on their own session state.
type Adapter interface {
	Reset() error
	Feed(frame audio.Frame) error
	Flush() error
	Events() <-chan Event
	Close() error
}
