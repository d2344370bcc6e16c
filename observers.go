package main

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"voxkey/archive"
	"voxkey/beep"
	"voxkey/config"
	"voxkey/control"
	"voxkey/history"
	"voxkey/hotkey"
	"voxkey/notify"
	"voxkey/tray"
)

// surfaces bundles the presentation and persistence layers hanging off
// the controller hub. A nil member simply stays unwired.
type surfaces struct {
	cfg      config.Config
	log      zerolog.Logger
	notifier *notify.Notifier
	store    *history.Store
	arch     *archive.Archiver
	trayOn   bool
	tui      *tea.Program
	capture  *captureSupervisor
	mode     func() hotkey.Mode
	last     *lastTranscript
	paused   *atomic.Bool
}

// lastTranscript remembers the newest typed output for the tray's
// copy action.
type lastTranscript struct {
	mu   sync.Mutex
	text string
}

func (l *lastTranscript) set(s string) {
	l.mu.Lock()
	l.text = s
	l.mu.Unlock()
}

func (l *lastTranscript) get() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.text
}

// fatalNotes are the note kinds worth a desktop notification and a
// capture rebuild before the next session.
var fatalNotes = map[control.NoteKind]bool{
	control.NoteDeviceUnavailable: true,
	control.NoteStreamError:       true,
	control.NoteRecognizerFault:   true,
	control.NoteRecognizerTimeout: true,
	control.NoteInjectionFailure:  true,
}

// wireObservers subscribes every surface to the hub. Each surface gets
// its own subscription so a slow one only drops its own events.
func wireObservers(ctl *control.Controller, s *surfaces) {
	buf := s.cfg.Queues.Observer
	if s.trayOn {
		go runTrayObserver(ctl.Hub().Subscribe("tray", buf), s.last)
	}
	if s.cfg.Sounds {
		go runSoundObserver(ctl.Hub().Subscribe("sounds", buf))
	}
	if s.notifier != nil {
		go runNotifyObserver(ctl.Hub().Subscribe("notify", buf), s)
	}
	if s.store != nil {
		go runHistoryObserver(ctl.Hub().Subscribe("history", buf), s)
	}
	if s.arch != nil {
		go runArchiveObserver(ctl.Hub().Subscribe("archive", buf), s.arch, s.log)
	}
	if s.cfg.Silence.Enabled {
		go runWatchdog(ctl, ctl.Hub().Subscribe("watchdog", buf), s)
	}
	if s.tui != nil {
		go runTUIObserver(ctl.Hub().Subscribe("tui", buf), s.tui)
	}
}

func runTrayObserver(events <-chan control.Event, last *lastTranscript) {
	for ev := range events {
		switch ev := ev.(type) {
		case control.Transition:
			tray.SetState(ev.To)
			if ev.To != control.StateListening {
				tray.SetWarning(false)
			}
		case control.Note:
			if ev.Kind == control.NoteSilenceWarning {
				tray.SetWarning(true)
			}
		case control.Utterance:
			if ev.Output != "" && !ev.Handled {
				last.set(ev.Output)
				tray.SetLastTranscript(ev.Output, ev.FinishedAt.Sub(ev.StartedAt))
			}
		}
	}
}

func runSoundObserver(events <-chan control.Event) {
	for ev := range events {
		switch ev := ev.(type) {
		case control.Transition:
			switch {
			case ev.To == control.StateListening:
				beep.PlayStart()
			case ev.From == control.StateListening && ev.To == control.StateProcessing:
				beep.PlayEnd()
			case ev.To == control.StateError:
				beep.PlayError()
			}
		case control.Note:
			if ev.Kind == control.NoteSilenceWarning {
				beep.PlayError()
			}
		}
	}
}

func runNotifyObserver(events <-chan control.Event, s *surfaces) {
	for ev := range events {
		note, ok := ev.(control.Note)
		if !ok || !fatalNotes[note.Kind] {
			continue
		}
		s.notifier.Fault(note.Message)

		// A mid-session capture fault usually means the device went
		// away. Drop the open handle so the next session reopens it.
		if s.capture != nil && (note.Kind == control.NoteStreamError || note.Kind == control.NoteDeviceUnavailable) {
			s.capture.Invalidate()
		}
	}
}

func runHistoryObserver(events <-chan control.Event, s *surfaces) {
	for ev := range events {
		utt, ok := ev.(control.Utterance)
		if !ok {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := s.store.Append(ctx, history.Record{
			SessionID:  utt.SessionID,
			Mode:       string(utt.Mode),
			StartedAt:  utt.StartedAt,
			FinishedAt: utt.FinishedAt,
			Raw:        utt.Raw,
			Output:     utt.Output,
			Handled:    utt.Handled,
			Confidence: utt.Confidence,
			TypedChars: utt.TypedChars,
		})
		cancel()
		if err != nil {
			s.log.Warn().Err(err).Uint64("session", utt.SessionID).Msg("history append failed")
		}
	}
}

func runArchiveObserver(events <-chan control.Event, arch *archive.Archiver, log zerolog.Logger) {
	for ev := range events {
		switch ev := ev.(type) {
		case control.Transition:
			switch {
			case ev.To == control.StateListening:
				arch.Begin(ev.SessionID)
			case ev.To == control.StateError:
				arch.Discard()
			case ev.From == control.StateListening && ev.To == control.StateIdle:
				// cancelled before processing, nothing worth keeping
				arch.Discard()
			}
		case control.Utterance:
			if path, err := arch.Commit(ev.SessionID, ev.StartedAt); err != nil {
				log.Warn().Err(err).Uint64("session", ev.SessionID).Msg("archive commit failed")
			} else if path != "" {
				log.Debug().Str("clip", path).Msg("archived session audio")
			}
		}
	}
}

// runWatchdog turns sustained silence while Listening into a warning
// and then a stop: continuous sessions end their utterance, the other
// modes cancel outright.
func runWatchdog(ctl *control.Controller, events <-chan control.Event, s *surfaces) {
	w := newSilenceWatchdog(s.cfg.Silence)
	for ev := range events {
		m, ok := ev.(control.Meter)
		if !ok {
			continue
		}
		switch w.Observe(m) {
		case watchWarn:
			ctl.Hub().Publish(control.Note{
				Kind:      control.NoteSilenceWarning,
				Message:   "no speech detected",
				SessionID: m.SessionID,
			})
		case watchWarnClear:
			tray.SetWarning(false)
			if s.tui != nil {
				s.tui.Send(tuiNoteMsg{kind: control.NoteSilenceWarning})
			}
		case watchStop:
			mode := s.mode()
			s.log.Info().Uint64("session", m.SessionID).Str("mode", string(mode)).Msg("silence watchdog stopping session")
			if mode == hotkey.ModeContinuous {
				ctl.EndUtterance()
			} else {
				ctl.Signal(hotkey.Signal{Kind: hotkey.Cancel, Mode: mode})
			}
		}
	}
}

func runTUIObserver(events <-chan control.Event, p *tea.Program) {
	for ev := range events {
		switch ev := ev.(type) {
		case control.Transition:
			p.Send(tuiStateMsg{state: ev.To, session: ev.SessionID})
		case control.Meter:
			p.Send(tuiMeterMsg{rms: ev.RMS})
		case control.Note:
			p.Send(tuiNoteMsg{kind: ev.Kind, message: ev.Message})
		case control.Utterance:
			text := ev.Output
			if ev.Handled {
				text = ev.Raw
			}
			p.Send(tuiUtteranceMsg{
				text:     text,
				duration: ev.FinishedAt.Sub(ev.StartedAt),
				handled:  ev.Handled,
			})
		}
	}
}

// wireTrayActions hooks the menu items up once the controller exists.
// Pausing cancels any live session and makes the signal pump drop
// start triggers until unpaused.
func wireTrayActions(ctl *control.Controller, s *surfaces) {
	tray.OnCopyLast(func() {
		text := s.last.get()
		if text == "" {
			return
		}
		if err := clipboard.WriteAll(text); err != nil {
			s.log.Warn().Err(err).Msg("copying last transcript failed")
		}
	})
	tray.OnPause(func(paused bool) {
		s.paused.Store(paused)
		if paused {
			ctl.Signal(hotkey.Signal{Kind: hotkey.Cancel, Mode: s.mode()})
		}
	})
}
