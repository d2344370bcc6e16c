package main

import (
	"testing"
	"time"

	"voxkey/config"
	"voxkey/control"
)

func testSilenceConfig() config.SilenceConfig {
	return config.SilenceConfig{
		Enabled:   true,
		WarnMS:    1000,
		StopMS:    3000,
		Threshold: 500,
	}
}

// feed pushes n frames of the given level, 100ms apiece, and returns
// the last non-none action seen.
func feed(w *silenceWatchdog, session uint64, rms float64, n int) watchAction {
	last := watchNone
	for i := 0; i < n; i++ {
		if a := w.Observe(control.Meter{SessionID: session, RMS: rms, Span: 100 * time.Millisecond}); a != watchNone {
			last = a
		}
	}
	return last
}

func TestWatchdogWarnThenStop(t *testing.T) {
	w := newSilenceWatchdog(testSilenceConfig())

	if got := feed(w, 1, 0, 9); got != watchNone {
		t.Fatalf("before warn span: got %v, want none", got)
	}
	if got := feed(w, 1, 0, 1); got != watchWarn {
		t.Fatalf("at warn span: got %v, want warn", got)
	}
	if got := feed(w, 1, 0, 19); got != watchNone {
		t.Fatalf("between warn and stop: got %v, want none", got)
	}
	if got := feed(w, 1, 0, 1); got != watchStop {
		t.Fatalf("at stop span: got %v, want stop", got)
	}
}

func TestWatchdogSpeechClearsWarning(t *testing.T) {
	w := newSilenceWatchdog(testSilenceConfig())

	feed(w, 1, 0, 10)
	if got := feed(w, 1, 2000, 1); got != watchWarnClear {
		t.Fatalf("speech after warning: got %v, want warn clear", got)
	}

	// Quiet clock restarts from the voiced frame.
	if got := feed(w, 1, 0, 9); got != watchNone {
		t.Fatalf("after clear, before warn span: got %v, want none", got)
	}
	if got := feed(w, 1, 0, 1); got != watchWarn {
		t.Fatalf("after clear, at warn span: got %v, want warn", got)
	}
}

func TestWatchdogStopFiresOnce(t *testing.T) {
	w := newSilenceWatchdog(testSilenceConfig())

	feed(w, 1, 0, 30)
	if got := feed(w, 1, 0, 50); got != watchNone {
		t.Fatalf("after stop: got %v, want none", got)
	}
}

func TestWatchdogNewSessionResets(t *testing.T) {
	w := newSilenceWatchdog(testSilenceConfig())

	feed(w, 1, 0, 30) // session 1 runs all the way to stop
	if got := feed(w, 2, 0, 9); got != watchNone {
		t.Fatalf("new session before warn span: got %v, want none", got)
	}
	if got := feed(w, 2, 0, 1); got != watchWarn {
		t.Fatalf("new session at warn span: got %v, want warn", got)
	}
}

func TestWatchdogSpeechNeverWarns(t *testing.T) {
	w := newSilenceWatchdog(testSilenceConfig())

	for i := 0; i < 100; i++ {
		level := float64(0)
		if i%3 == 0 {
			level = 1200
		}
		if got := w.Observe(control.Meter{SessionID: 1, RMS: level, Span: 100 * time.Millisecond}); got != watchNone {
			t.Fatalf("frame %d: got %v, want none", i, got)
		}
	}
}
