package main

import (
	"time"

	"voxkey/config"
	"voxkey/control"
)

type watchAction int

const (
	watchNone      watchAction = iota
	watchWarn                  // first silence span elapsed
	watchWarnClear             // speech resumed after a warning
	watchStop                  // second span elapsed, end or cancel
)

// silenceWatchdog folds the meter stream into warn/stop decisions. It
// keeps time with the audio clock (the span each delivered frame
// covers), so a replayed recording trips at the same points as a live
// microphone. One instance serves the whole run; a meter from a new
// session resets it.
type silenceWatchdog struct {
	threshold float64
	warnSpan  time.Duration
	stopSpan  time.Duration

	session uint64
	elapsed time.Duration
	voiced  time.Duration // elapsed at the last frame above threshold
	warned  bool
	stopped bool
}

func newSilenceWatchdog(cfg config.SilenceConfig) *silenceWatchdog {
	return &silenceWatchdog{
		threshold: float64(cfg.Threshold),
		warnSpan:  time.Duration(cfg.WarnMS) * time.Millisecond,
		stopSpan:  time.Duration(cfg.StopMS) * time.Millisecond,
	}
}

func (w *silenceWatchdog) Observe(m control.Meter) watchAction {
	if m.SessionID != w.session {
		w.session = m.SessionID
		w.elapsed = 0
		w.voiced = 0
		w.warned = false
		w.stopped = false
	}
	w.elapsed += m.Span

	if m.RMS >= w.threshold {
		w.voiced = w.elapsed
		if w.warned {
			w.warned = false
			return watchWarnClear
		}
		return watchNone
	}

	if w.stopped {
		return watchNone
	}
	quiet := w.elapsed - w.voiced
	if quiet >= w.stopSpan {
		w.stopped = true
		return watchStop
	}
	if quiet >= w.warnSpan && !w.warned {
		w.warned = true
		return watchWarn
	}
	return watchNone
}
