//go:build !linux

package hotkey

import (
	"fmt"
	"sync"

	"golang.design/x/hotkey"
)

type xHotkey struct {
	hk      *hotkey.Hotkey
	keydown chan struct{}
	keyup   chan struct{}
	stop    chan struct{}
	once    sync.Once
}

func xKey(name string) (hotkey.Key, error) {
	switch name {
	case "space":
		return hotkey.KeySpace, nil
	case "esc", "escape":
		return hotkey.KeyEscape, nil
	case "enter", "return":
		return hotkey.KeyReturn, nil
	case "tab":
		return hotkey.KeyTab, nil
	default:
		return 0, fmt.Errorf("hotkey: key %q not supported on this platform (use space, escape, enter, or tab)", name)
	}
}

func New(chord Chord) (Hotkey, error) {
	key, err := xKey(chord.Key)
	if err != nil {
		return nil, err
	}
	if chord.Alt {
		return nil, fmt.Errorf("hotkey: alt chords not supported on this platform")
	}
	var mods []hotkey.Modifier
	if chord.Ctrl {
		mods = append(mods, hotkey.ModCtrl)
	}
	if chord.Shift {
		mods = append(mods, hotkey.ModShift)
	}
	return &xHotkey{
		hk:      hotkey.New(mods, key),
		keydown: make(chan struct{}, 1),
		keyup:   make(chan struct{}, 1),
		stop:    make(chan struct{}),
	}, nil
}

func (h *xHotkey) Register() error {
	if err := h.hk.Register(); err != nil {
		return err
	}
	go func() {
		for {
			select {
			case <-h.hk.Keydown():
				select {
				case h.keydown <- struct{}{}:
				default:
				}
			case <-h.stop:
				return
			}
		}
	}()
	go func() {
		for {
			select {
			case <-h.hk.Keyup():
				select {
				case h.keyup <- struct{}{}:
				default:
				}
			case <-h.stop:
				return
			}
		}
	}()
	return nil
}

func (h *xHotkey) Unregister() {
	h.once.Do(func() {
		close(h.stop)
		h.hk.Unregister()
	})
}

func (h *xHotkey) Keydown() <-chan struct{} {
	return h.keydown
}

func (h *xHotkey) Keyup() <-chan struct{} {
	return h.keyup
}

func Diagnose() (string, error) {
	return "hotkey support available", nil
}
