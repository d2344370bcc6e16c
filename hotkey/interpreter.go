package hotkey

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultHold is the auto-mode gesture threshold: presses held at
// least this long behave as push to talk, shorter taps toggle.
const DefaultHold = 300 * time.Millisecond

// Interpreter turns raw chord edges into session trigger signals
// according to the configured mode. The cancel chord always emits
// Cancel regardless of mode.
type Interpreter struct {
	log     zerolog.Logger
	mode    Mode
	hold    time.Duration
	signals chan Signal
	quit    chan struct{}
	once    sync.Once
}

func NewInterpreter(main, cancel Hotkey, mode Mode, hold time.Duration, logger zerolog.Logger) *Interpreter {
	if hold <= 0 {
		hold = DefaultHold
	}
	it := &Interpreter{
		log:     logger,
		mode:    mode,
		hold:    hold,
		signals: make(chan Signal, 8),
		quit:    make(chan struct{}),
	}
	go it.run(main)
	if cancel != nil {
		go it.runCancel(cancel)
	}
	return it
}

func (it *Interpreter) Signals() <-chan Signal { return it.signals }

func (it *Interpreter) Close() {
	it.once.Do(func() { close(it.quit) })
}

func (it *Interpreter) emit(kind SignalKind, mode Mode) {
	it.log.Debug().Str("signal", kind.String()).Str("mode", string(mode)).Msg("hotkey signal")
	select {
	case it.signals <- Signal{Kind: kind, Mode: mode}:
	case <-it.quit:
	}
}

func (it *Interpreter) run(hk Hotkey) {
	switch it.mode {
	case ModePushToTalk:
		for {
			select {
			case <-hk.Keydown():
				it.emit(StartOrToggle, ModePushToTalk)
			case <-hk.Keyup():
				it.emit(ReleaseForPushToTalk, ModePushToTalk)
			case <-it.quit:
				return
			}
		}
	case ModeToggle, ModeContinuous:
		for {
			select {
			case <-hk.Keydown():
				it.emit(StartOrToggle, it.mode)
			case <-hk.Keyup():
				// toggle acts on press; releases carry no meaning
			case <-it.quit:
				return
			}
		}
	default:
		it.runAuto(hk)
	}
}

// runAuto starts on any press and decides the gesture by hold
// duration. Past the threshold the release stops the session, so the
// chord feels like push to talk; a quick tap leaves the session
// toggled on until the next press and release.
func (it *Interpreter) runAuto(hk Hotkey) {
	for {
		select {
		case <-hk.Keydown():
		case <-it.quit:
			return
		}
		it.emit(StartOrToggle, ModeToggle)

		timer := time.NewTimer(it.hold)
		select {
		case <-timer.C:
			select {
			case <-hk.Keyup():
				it.emit(ReleaseForPushToTalk, ModeToggle)
			case <-it.quit:
				return
			}
		case <-hk.Keyup():
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			select {
			case <-hk.Keydown():
			case <-it.quit:
				return
			}
			select {
			case <-hk.Keyup():
			case <-it.quit:
				return
			}
			it.emit(StartOrToggle, ModeToggle)
		case <-it.quit:
			timer.Stop()
			return
		}
	}
}

func (it *Interpreter) runCancel(hk Hotkey) {
	for {
		select {
		case <-hk.Keydown():
			it.emit(Cancel, it.mode)
		case <-hk.Keyup():
		case <-it.quit:
			return
		}
	}
}
