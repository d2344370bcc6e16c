package control

import (
	"sync/atomic"

	"voxkey/audio"
)

// FrameQueue carries frames from the capture goroutine to the
// recognizer feeder. Push never blocks: when the queue is full the
// oldest frame is discarded, so a stalled recognizer costs stale audio
// rather than capture backpressure.
type FrameQueue struct {
	ch    chan audio.Frame
	drops atomic.Uint64
}

func NewFrameQueue(bound int) *FrameQueue {
	if bound < 1 {
		bound = 1
	}
	return &FrameQueue{ch: make(chan audio.Frame, bound)}
}

func (q *FrameQueue) Push(f audio.Frame) {
	for {
		select {
		case q.ch <- f:
			return
		default:
		}
		select {
		case <-q.ch:
			q.drops.Add(1)
		default:
		}
	}
}

// C is the consumer side. Frames arrive oldest first.
func (q *FrameQueue) C() <-chan audio.Frame { return q.ch }

func (q *FrameQueue) Len() int { return len(q.ch) }

// Drops counts frames discarded to make room.
func (q *FrameQueue) Drops() uint64 { return q.drops.Load() }
