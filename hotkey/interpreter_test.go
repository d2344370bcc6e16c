package hotkey

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func waitSignal(t *testing.T, it *Interpreter) Signal {
	t.Helper()
	select {
	case s := <-it.Signals():
		return s
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for signal")
		return Signal{}
	}
}

func wantQuiet(t *testing.T, it *Interpreter, d time.Duration) {
	t.Helper()
	select {
	case s := <-it.Signals():
		t.Fatalf("unexpected signal %v/%s", s.Kind, s.Mode)
	case <-time.After(d):
	}
}

func TestParseChord(t *testing.T) {
	tests := []struct {
		in      string
		want    Chord
		wantErr bool
	}{
		{"ctrl+shift+space", Chord{Ctrl: true, Shift: true, Key: "space"}, false},
		{"esc", Chord{Key: "esc"}, false},
		{"CTRL + Shift + F9", Chord{Ctrl: true, Shift: true, Key: "f9"}, false},
		{"alt+x", Chord{Alt: true, Key: "x"}, false},
		{"control+space", Chord{Ctrl: true, Key: "space"}, false},
		{"", Chord{}, true},
		{"ctrl+shift", Chord{}, true},
		{"ctrl+a+b", Chord{}, true},
		{"ctrl++space", Chord{}, true},
	}
	for _, tt := range tests {
		got, err := ParseChord(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseChord(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseChord(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseChord(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestChordString(t *testing.T) {
	c := Chord{Ctrl: true, Shift: true, Key: "space"}
	if got := c.String(); got != "ctrl+shift+space" {
		t.Fatalf("String() = %q", got)
	}
}

func TestParseMode(t *testing.T) {
	for _, s := range []string{"push_to_talk", "toggle", "continuous", "auto"} {
		if _, err := ParseMode(s); err != nil {
			t.Errorf("ParseMode(%q): %v", s, err)
		}
	}
	if _, err := ParseMode("whisper"); err == nil {
		t.Error("ParseMode(whisper): expected error")
	}
}

func TestInterpreterPushToTalk(t *testing.T) {
	fk := NewFake()
	it := NewInterpreter(fk, nil, ModePushToTalk, DefaultHold, zerolog.Nop())
	defer it.Close()

	fk.SimKeydown()
	s := waitSignal(t, it)
	if s.Kind != StartOrToggle || s.Mode != ModePushToTalk {
		t.Fatalf("got %v/%s", s.Kind, s.Mode)
	}

	fk.SimKeyup()
	s = waitSignal(t, it)
	if s.Kind != ReleaseForPushToTalk {
		t.Fatalf("got %v, want release", s.Kind)
	}
}

func TestInterpreterToggle(t *testing.T) {
	fk := NewFake()
	it := NewInterpreter(fk, nil, ModeToggle, DefaultHold, zerolog.Nop())
	defer it.Close()

	fk.SimKeydown()
	s := waitSignal(t, it)
	if s.Kind != StartOrToggle || s.Mode != ModeToggle {
		t.Fatalf("got %v/%s", s.Kind, s.Mode)
	}

	fk.SimKeyup()
	wantQuiet(t, it, 50*time.Millisecond)

	fk.SimKeydown()
	s = waitSignal(t, it)
	if s.Kind != StartOrToggle {
		t.Fatalf("got %v, want start", s.Kind)
	}
}

func TestInterpreterContinuous(t *testing.T) {
	fk := NewFake()
	it := NewInterpreter(fk, nil, ModeContinuous, DefaultHold, zerolog.Nop())
	defer it.Close()

	fk.SimKeydown()
	s := waitSignal(t, it)
	if s.Mode != ModeContinuous {
		t.Fatalf("mode = %s, want continuous", s.Mode)
	}
}

func TestInterpreterCancelChord(t *testing.T) {
	fk := NewFake()
	cancel := NewFake()
	it := NewInterpreter(fk, cancel, ModeToggle, DefaultHold, zerolog.Nop())
	defer it.Close()

	cancel.SimKeydown()
	s := waitSignal(t, it)
	if s.Kind != Cancel {
		t.Fatalf("got %v, want cancel", s.Kind)
	}
}

func TestInterpreterAutoHold(t *testing.T) {
	fk := NewFake()
	threshold := 50 * time.Millisecond
	it := NewInterpreter(fk, nil, ModeAuto, threshold, zerolog.Nop())
	defer it.Close()

	fk.SimKeydown()
	s := waitSignal(t, it)
	if s.Kind != StartOrToggle {
		t.Fatalf("got %v, want start", s.Kind)
	}

	time.Sleep(threshold + 20*time.Millisecond)
	fk.SimKeyup()
	s = waitSignal(t, it)
	if s.Kind != ReleaseForPushToTalk {
		t.Fatalf("got %v, want release after long hold", s.Kind)
	}
}

func TestInterpreterAutoTap(t *testing.T) {
	fk := NewFake()
	it := NewInterpreter(fk, nil, ModeAuto, 200*time.Millisecond, zerolog.Nop())
	defer it.Close()

	fk.SimKeydown()
	s := waitSignal(t, it)
	if s.Kind != StartOrToggle {
		t.Fatalf("got %v, want start", s.Kind)
	}
	fk.SimKeyup()

	// A quick tap toggles on; nothing further until the next press.
	wantQuiet(t, it, 50*time.Millisecond)

	fk.SimKeydown()
	fk.SimKeyup()
	s = waitSignal(t, it)
	if s.Kind != StartOrToggle {
		t.Fatalf("got %v, want toggle-off press", s.Kind)
	}
}

func TestInterpreterAutoCycles(t *testing.T) {
	fk := NewFake()
	threshold := 50 * time.Millisecond
	it := NewInterpreter(fk, nil, ModeAuto, threshold, zerolog.Nop())
	defer it.Close()

	// Cycle 1: long hold.
	fk.SimKeydown()
	waitSignal(t, it)
	time.Sleep(threshold + 20*time.Millisecond)
	fk.SimKeyup()
	if s := waitSignal(t, it); s.Kind != ReleaseForPushToTalk {
		t.Fatalf("cycle 1: got %v", s.Kind)
	}

	// Cycle 2: tap, then press to stop.
	fk.SimKeydown()
	waitSignal(t, it)
	fk.SimKeyup()
	time.Sleep(20 * time.Millisecond)
	fk.SimKeydown()
	fk.SimKeyup()
	if s := waitSignal(t, it); s.Kind != StartOrToggle {
		t.Fatalf("cycle 2: got %v", s.Kind)
	}

	// Cycle 3: long hold again.
	fk.SimKeydown()
	waitSignal(t, it)
	time.Sleep(threshold + 20*time.Millisecond)
	fk.SimKeyup()
	if s := waitSignal(t, it); s.Kind != ReleaseForPushToTalk {
		t.Fatalf("cycle 3: got %v", s.Kind)
	}
}

func TestInterpreterCloseIdempotent(t *testing.T) {
	fk := NewFake()
	it := NewInterpreter(fk, NewFake(), ModeToggle, DefaultHold, zerolog.Nop())
	it.Close()
	it.Close()
}
