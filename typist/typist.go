package typist

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/atotto/clipboard"
	"github.com/rs/zerolog"
)

var (
	// ErrRejected means the injection could not start (no virtual
	// device, clipboard unavailable).
	ErrRejected = errors.New("typist: injection rejected")

	// ErrFailed means emission broke off mid-run; some characters may
	// already have landed.
	ErrFailed = errors.New("typist: injection failed")

	ErrUnsupported = errors.New("typist: not supported on this platform")
)

// Sink emits text into whatever application holds input focus.
//
// Type paces characters at the configured delay and may block its
// caller for up to len(text)*delay; empty text is a no-op. Cancel stops
// an in-flight Type as soon as possible (best-effort; keystrokes
// already queued by the OS may still land) and is safe to call
// concurrently, repeatedly, and when nothing is being typed.
type Sink interface {
	Type(text string) error
	Cancel()
	PressEnter() error
	Backspace(n int) error
}

// New selects the injection strategy. "keystroke" emits per-character
// key events (a uinput virtual keyboard on linux; elsewhere it resolves
// to the clipboard strategy). "clipboard" swaps the clipboard, sends
// the platform paste chord, and restores the old contents. "auto"
// prefers keystroke where the platform can do it.
func New(backend string, delay time.Duration, logger zerolog.Logger) (Sink, error) {
	switch backend {
	case "auto":
		if keystrokeAvailable() {
			return newKeystroke(delay, logger), nil
		}
		logger.Debug().Msg("keystroke injection unavailable, using clipboard")
		return newClipboard(delay, logger), nil
	case "keystroke":
		return newKeystroke(delay, logger), nil
	case "clipboard":
		return newClipboard(delay, logger), nil
	default:
		return nil, fmt.Errorf("typist: unknown backend %q", backend)
	}
}

const (
	pasteSettle   = 120 * time.Millisecond
	backspacePace = 50 * time.Millisecond
)

// Clipboard types by swapping the clipboard and pasting. The previous
// contents are restored once the paste has settled.
type Clipboard struct {
	log       zerolog.Logger
	delay     time.Duration
	mu        sync.Mutex
	cancelled atomic.Bool

	// seams for tests
	readClip  func() (string, error)
	writeClip func(string) error
	paste     func() error
	backspace func() error
}

func newClipboard(delay time.Duration, logger zerolog.Logger) *Clipboard {
	return &Clipboard{
		log:       logger,
		delay:     delay,
		readClip:  clipboard.ReadAll,
		writeClip: clipboard.WriteAll,
		paste:     pasteChord,
		backspace: tapBackspace,
	}
}

func (c *Clipboard) Type(text string) error {
	if text == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelled.Store(false)

	prev, prevErr := c.readClip()
	if prevErr != nil {
		// Nothing to restore; the paste itself may still work.
		c.log.Debug().Err(prevErr).Msg("clipboard read failed, skipping restore")
	}

	if err := c.writeClip(text); err != nil {
		return fmt.Errorf("%w: clipboard write: %v", ErrRejected, err)
	}
	if c.cancelled.Load() {
		c.restore(prev, prevErr)
		return nil
	}
	if err := c.paste(); err != nil {
		c.restore(prev, prevErr)
		return fmt.Errorf("%w: paste: %v", ErrFailed, err)
	}

	time.Sleep(pasteSettle)
	c.restore(prev, prevErr)
	return nil
}

func (c *Clipboard) restore(prev string, prevErr error) {
	if prevErr != nil {
		return
	}
	if err := c.writeClip(prev); err != nil {
		c.log.Warn().Err(err).Msg("clipboard restore failed")
	}
}

func (c *Clipboard) Cancel() { c.cancelled.Store(true) }

func (c *Clipboard) PressEnter() error {
	return c.Type("\n")
}

func (c *Clipboard) Backspace(n int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelled.Store(false)
	for i := 0; i < n; i++ {
		if c.cancelled.Load() {
			return nil
		}
		if err := c.backspace(); err != nil {
			return fmt.Errorf("%w: backspace: %v", ErrFailed, err)
		}
		time.Sleep(backspacePace)
	}
	return nil
}
