package recognizer

import (
	"sync"

	"voxkey/audio"
)

// Fake is a scripted adapter for tests and the headless test mode.
// Events can be pushed by hand (SimPartial/SimFinal) or queued as whole
// utterances that play out as audio is fed and flushed.
type Fake struct {
	mu     sync.Mutex
	events chan Event
	closed bool

	active bool
	feeds  int
	resets int
	flushs int

	failAt  int // 1-based feed index that fails
	failErr error

	queue   []scriptedUtterance
	partIdx int
}

type scriptedUtterance struct {
	partials   []string
	final      string
	confidence float64
}

func NewFake() *Fake {
	return &Fake{events: make(chan Event, eventBuffer)}
}

func (f *Fake) Events() <-chan Event { return f.events }

// QueueUtterance scripts one utterance: partials trickle out every
// second Feed, the final lands on Flush.
func (f *Fake) QueueUtterance(final string, confidence float64, partials ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, scriptedUtterance{partials: partials, final: final, confidence: confidence})
}

// FailFeedAt makes the nth Feed call (1-based, counted over the fake's
// lifetime) return err.
func (f *Fake) FailFeedAt(n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failAt = n
	f.failErr = err
}

func (f *Fake) SimPartial(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emit(Event{Kind: Partial, Text: text})
}

func (f *Fake) SimFinal(text string, confidence float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emit(Event{Kind: Final, Text: text, Confidence: confidence})
}

// emit assumes f.mu is held.
func (f *Fake) emit(ev Event) {
	if f.closed {
		return
	}
	f.events <- ev
}

func (f *Fake) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	f.resets++
	f.active = true
	f.partIdx = 0
	return nil
}

func (f *Fake) Feed(_ audio.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	if !f.active {
		return ErrNotActive
	}
	f.feeds++
	if f.failAt > 0 && f.feeds == f.failAt {
		return f.failErr
	}
	if len(f.queue) > 0 && f.feeds%2 == 0 {
		u := f.queue[0]
		if f.partIdx < len(u.partials) {
			f.emit(Event{Kind: Partial, Text: u.partials[f.partIdx]})
			f.partIdx++
		}
	}
	return nil
}

func (f *Fake) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	if !f.active {
		return ErrNotActive
	}
	f.flushs++
	f.active = false
	if len(f.queue) > 0 {
		u := f.queue[0]
		f.queue = f.queue[1:]
		f.partIdx = 0
		f.emit(Event{Kind: Final, Text: u.final, Confidence: u.confidence})
	}
	return nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	close(f.events)
	return nil
}

func (f *Fake) Feeds() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.feeds
}

func (f *Fake) Resets() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resets
}

func (f *Fake) Flushes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.flushs
}
