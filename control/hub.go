package control

import (
	"sync"

	"github.com/rs/zerolog"
)

const defaultObserverBuffer = 16

// Hub fans observer events out to subscribers. Publishing never
// blocks: each subscriber has its own bounded buffer, and a full
// buffer costs that subscriber the event. Within one subscriber the
// delivery order always matches the publish order.
type Hub struct {
	log zerolog.Logger

	mu     sync.Mutex
	subs   []*subscriber
	closed bool
}

type subscriber struct {
	name  string
	ch    chan Event
	drops uint64
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{log: logger}
}

// Subscribe registers an observer. buf <= 0 selects the default
// buffer size.
func (h *Hub) Subscribe(name string, buf int) <-chan Event {
	if buf <= 0 {
		buf = defaultObserverBuffer
	}
	s := &subscriber{name: name, ch: make(chan Event, buf)}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(s.ch)
		return s.ch
	}
	h.subs = append(h.subs, s)
	return s.ch
}

func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for _, s := range h.subs {
		select {
		case s.ch <- ev:
		default:
			s.drops++
			if s.drops == 1 {
				h.log.Debug().Str("observer", s.name).Msg("slow observer, dropping events")
			}
		}
	}
}

// Drops reports how many events the named observer has missed.
func (h *Hub) Drops(name string) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.subs {
		if s.name == name {
			return s.drops
		}
	}
	return 0
}

// Close ends every subscription; observer range loops terminate.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, s := range h.subs {
		close(s.ch)
	}
	h.subs = nil
}
