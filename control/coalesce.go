package control

import (
	"sync"

	"voxkey/recognizer"
)

// Coalescer sits between the recognizer's event stream and the
// controller loop. Pending partials collapse to the latest one, and a
// final supersedes any partial still waiting; finals themselves queue
// without bound and are never dropped. The output channel is
// unbuffered, so at delivery time the controller sees at most one
// stale partial.
type Coalescer struct {
	out   chan recognizer.Event
	clear chan struct{}
	quit  chan struct{}
	once  sync.Once
}

func NewCoalescer(in <-chan recognizer.Event) *Coalescer {
	c := &Coalescer{
		out:   make(chan recognizer.Event),
		clear: make(chan struct{}),
		quit:  make(chan struct{}),
	}
	go c.run(in)
	return c
}

func (c *Coalescer) Events() <-chan recognizer.Event { return c.out }

// Clear discards everything buffered. Called on session start so a new
// utterance never sees events from a previous decode context.
func (c *Coalescer) Clear() {
	select {
	case c.clear <- struct{}{}:
	case <-c.quit:
	}
}

func (c *Coalescer) Close() {
	c.once.Do(func() { close(c.quit) })
}

func (c *Coalescer) run(in <-chan recognizer.Event) {
	var pending *recognizer.Event
	var finals []recognizer.Event

	for {
		// A nil out channel disables the send case while nothing is
		// queued. Finals go first; they are older than any pending
		// partial because a final clears the partial slot.
		var out chan recognizer.Event
		var next recognizer.Event
		switch {
		case len(finals) > 0:
			next, out = finals[0], c.out
		case pending != nil:
			next, out = *pending, c.out
		}

		select {
		case ev, ok := <-in:
			if !ok {
				if out == nil {
					close(c.out)
					return
				}
				in = nil
				continue
			}
			if ev.Kind == recognizer.Partial {
				ev := ev
				pending = &ev
			} else {
				pending = nil
				finals = append(finals, ev)
			}
		case out <- next:
			if len(finals) > 0 {
				finals = finals[1:]
			} else {
				pending = nil
			}
			if in == nil && len(finals) == 0 && pending == nil {
				close(c.out)
				return
			}
		case <-c.clear:
			pending = nil
			finals = nil
		case <-c.quit:
			return
		}
	}
}
