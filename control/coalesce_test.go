package control

import (
	"testing"
	"time"

	"voxkey/recognizer"
)

func recvEvent(t *testing.T, ch <-chan recognizer.Event) recognizer.Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("coalescer output closed")
		}
		return ev
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for coalesced event")
		return recognizer.Event{}
	}
}

func expectNone(t *testing.T, ch <-chan recognizer.Event) {
	t.Helper()
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(30 * time.Millisecond):
	}
}

func TestCoalescerLatestPartialWins(t *testing.T) {
	in := make(chan recognizer.Event, 16)
	c := NewCoalescer(in)
	defer c.Close()

	// nobody reading: rapid partials pile up behind no consumer
	for _, text := range []string{"h", "he", "hel", "hell", "hello"} {
		in <- recognizer.Event{Kind: recognizer.Partial, Text: text}
	}
	// give the pump a moment to absorb them all
	time.Sleep(20 * time.Millisecond)

	ev := recvEvent(t, c.Events())
	if ev.Kind != recognizer.Partial || ev.Text != "hello" {
		t.Fatalf("got %+v, want latest partial %q", ev, "hello")
	}
	expectNone(t, c.Events())
}

func TestCoalescerFinalSupersedesPartial(t *testing.T) {
	in := make(chan recognizer.Event, 16)
	c := NewCoalescer(in)
	defer c.Close()

	in <- recognizer.Event{Kind: recognizer.Partial, Text: "hello wor"}
	in <- recognizer.Event{Kind: recognizer.Final, Text: "hello world", Confidence: 0.9}
	time.Sleep(20 * time.Millisecond)

	ev := recvEvent(t, c.Events())
	if ev.Kind != recognizer.Final || ev.Text != "hello world" {
		t.Fatalf("got %+v, want the final", ev)
	}
	expectNone(t, c.Events())
}

func TestCoalescerFinalsNeverDropped(t *testing.T) {
	in := make(chan recognizer.Event, 16)
	c := NewCoalescer(in)
	defer c.Close()

	for i := 0; i < 5; i++ {
		in <- recognizer.Event{Kind: recognizer.Final, Text: string(rune('a' + i))}
	}
	time.Sleep(20 * time.Millisecond)

	for i := 0; i < 5; i++ {
		ev := recvEvent(t, c.Events())
		if ev.Kind != recognizer.Final || ev.Text != string(rune('a'+i)) {
			t.Fatalf("final %d = %+v, want %q in order", i, ev, string(rune('a'+i)))
		}
	}
}

func TestCoalescerClear(t *testing.T) {
	in := make(chan recognizer.Event, 16)
	c := NewCoalescer(in)
	defer c.Close()

	in <- recognizer.Event{Kind: recognizer.Partial, Text: "stale"}
	in <- recognizer.Event{Kind: recognizer.Final, Text: "stale final"}
	time.Sleep(20 * time.Millisecond)
	c.Clear()

	expectNone(t, c.Events())

	in <- recognizer.Event{Kind: recognizer.Final, Text: "fresh"}
	if ev := recvEvent(t, c.Events()); ev.Text != "fresh" {
		t.Fatalf("got %+v after clear, want fresh final", ev)
	}
}

func TestCoalescerDrainsOnInputClose(t *testing.T) {
	in := make(chan recognizer.Event, 4)
	c := NewCoalescer(in)
	defer c.Close()

	in <- recognizer.Event{Kind: recognizer.Final, Text: "last"}
	close(in)

	if ev := recvEvent(t, c.Events()); ev.Text != "last" {
		t.Fatalf("got %+v, want buffered final before close", ev)
	}
	select {
	case _, ok := <-c.Events():
		if ok {
			t.Fatal("expected closed output after drain")
		}
	case <-time.After(waitFor):
		t.Fatal("output never closed")
	}
}
