package control

import (
	"testing"

	"voxkey/audio"
)

func TestFrameQueueKeepsNewest(t *testing.T) {
	const bound = 4
	q := NewFrameQueue(bound)

	for i := 0; i < 10; i++ {
		q.Push(audio.Frame{Seq: uint64(i)})
	}

	if q.Len() != bound {
		t.Fatalf("len = %d, want %d", q.Len(), bound)
	}
	if q.Drops() != 10-bound {
		t.Fatalf("drops = %d, want %d", q.Drops(), 10-bound)
	}

	// exactly the newest K frames remain, oldest first
	for want := uint64(10 - bound); want < 10; want++ {
		f := <-q.C()
		if f.Seq != want {
			t.Fatalf("seq = %d, want %d", f.Seq, want)
		}
	}
}

func TestFrameQueueNoDropsUnderBound(t *testing.T) {
	q := NewFrameQueue(8)
	for i := 0; i < 8; i++ {
		q.Push(audio.Frame{Seq: uint64(i)})
	}
	if q.Drops() != 0 {
		t.Fatalf("drops = %d, want 0", q.Drops())
	}
}

func TestFrameQueueMinimumBound(t *testing.T) {
	q := NewFrameQueue(0)
	q.Push(audio.Frame{Seq: 1})
	q.Push(audio.Frame{Seq: 2})
	if f := <-q.C(); f.Seq != 2 {
		t.Fatalf("seq = %d, want 2 (bound clamps to 1, oldest dropped)", f.Seq)
	}
}
