//go:build !linux

package typist

import (
	"runtime"
	"sync"
	"time"

	"github.com/micmonay/keybd_event"
	"github.com/rs/zerolog"
)

// Per-character key injection needs a virtual input device, which only
// the linux build provides. Elsewhere the keystroke backend resolves to
// the clipboard strategy.

func keystrokeAvailable() bool { return false }

func newKeystroke(delay time.Duration, logger zerolog.Logger) *Clipboard {
	logger.Debug().Str("os", runtime.GOOS).Msg("keystroke backend resolves to clipboard")
	return newClipboard(delay, logger)
}

var (
	kbOnce sync.Once
	kb     keybd_event.KeyBonding
	kbErr  error
)

// pasteChord sends the platform paste shortcut (Cmd+V on darwin,
// Ctrl+V elsewhere).
func pasteChord() error {
	kbOnce.Do(func() {
		kb, kbErr = keybd_event.NewKeyBonding()
	})
	if kbErr != nil {
		return kbErr
	}
	if runtime.GOOS == "darwin" {
		kb.HasSuper(true)
	} else {
		kb.HasCTRL(true)
	}
	kb.SetKeys(keybd_event.VK_V)
	return kb.Launching()
}

func tapBackspace() error { return ErrUnsupported }

// Verify reports whether the paste chord can be constructed at all.
func Verify() (string, error) {
	kbOnce.Do(func() {
		kb, kbErr = keybd_event.NewKeyBonding()
	})
	if kbErr != nil {
		return "", kbErr
	}
	return "paste chord available (keystroke injection resolves to clipboard)", nil
}
