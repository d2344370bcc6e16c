//go:build linux

package typist

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// ioctl constants from linux/uinput.h
const (
	uiSetEvbit  = 0x40045564 // UI_SET_EVBIT
	uiSetKeybit = 0x40045565 // UI_SET_KEYBIT
	uiDevCreate = 0x5501     // UI_DEV_CREATE
)

// input event types from linux/input-event-codes.h
const (
	evSyn = 0x00
	evKey = 0x01
)

const (
	busUSB = 0x03

	keyBackspace = 14
	keyEnter     = 28
	keyLeftCtrl  = 29
	keyLeftShift = 42
	keyV         = 47

	deviceName = "voxkey-kbd"
)

type inputEvent struct {
	Time  syscall.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

type inputID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

type uinputUserDev struct {
	Name         [80]byte
	ID           inputID
	FfEffectsMax uint32
	Absmax       [64]int32
	Absmin       [64]int32
	Absfuzz      [64]int32
	Absflat      [64]int32
}

var (
	uinputFd   *os.File
	uinputOnce sync.Once
	uinputErr  error
)

func uinputPath() string {
	if _, err := os.Stat("/dev/uinput"); err == nil {
		return "/dev/uinput"
	}
	return "/dev/input/uinput"
}

func keystrokeAvailable() bool {
	_, err := os.Stat(uinputPath())
	return err == nil
}

// initUinput creates the virtual keyboard once per process. The device
// registers every standard key so udev classifies it as a keyboard.
func initUinput() error {
	uinputOnce.Do(func() {
		path := uinputPath()
		if _, err := os.Stat(path); err != nil {
			uinputErr = errors.New("uinput device not found, try: sudo modprobe uinput")
			return
		}
		f, err := os.OpenFile(path, os.O_WRONLY|syscall.O_NONBLOCK, os.ModeDevice)
		if err != nil {
			uinputErr = err
			return
		}
		if _, _, errno := syscall.Syscall(syscall.SYS_IOCTL, f.Fd(), uiSetEvbit, evKey); errno != 0 {
			uinputErr = errno
			f.Close()
			return
		}
		if _, _, errno := syscall.Syscall(syscall.SYS_IOCTL, f.Fd(), uiSetEvbit, evSyn); errno != 0 {
			uinputErr = errno
			f.Close()
			return
		}
		for i := uintptr(0); i < 256; i++ {
			if _, _, errno := syscall.Syscall(syscall.SYS_IOCTL, f.Fd(), uiSetKeybit, i); errno != 0 {
				uinputErr = errno
				f.Close()
				return
			}
		}
		dev := uinputUserDev{}
		copy(dev.Name[:], deviceName)
		dev.ID.Bustype = busUSB
		dev.ID.Vendor = 0x1234
		dev.ID.Product = 0x5679
		dev.ID.Version = 1
		if err := binary.Write(f, binary.LittleEndian, &dev); err != nil {
			uinputErr = err
			f.Close()
			return
		}
		if _, _, errno := syscall.Syscall(syscall.SYS_IOCTL, f.Fd(), uiDevCreate, 0); errno != 0 {
			uinputErr = errno
			f.Close()
			return
		}
		uinputFd = f
		// Give the compositor time to pick up the new input device.
		time.Sleep(200 * time.Millisecond)
	})
	return uinputErr
}

func writeEvent(typ, code uint16, value int32) error {
	ev := inputEvent{Type: typ, Code: code, Value: value}
	return binary.Write(uinputFd, binary.LittleEndian, &ev)
}

func syn() error {
	return writeEvent(evSyn, 0, 0)
}

func keyTap(code uint16, shift bool) error {
	if shift {
		if err := writeEvent(evKey, keyLeftShift, 1); err != nil {
			return err
		}
		if err := syn(); err != nil {
			return err
		}
	}
	if err := writeEvent(evKey, code, 1); err != nil {
		return err
	}
	if err := syn(); err != nil {
		return err
	}
	if err := writeEvent(evKey, code, 0); err != nil {
		return err
	}
	if err := syn(); err != nil {
		return err
	}
	if shift {
		if err := writeEvent(evKey, keyLeftShift, 0); err != nil {
			return err
		}
		if err := syn(); err != nil {
			return err
		}
	}
	return nil
}

// a=30, b=48, c=46, d=32, e=18, f=33, g=34, h=35, i=23, j=36,
// k=37, l=38, m=50, n=49, o=24, p=25, q=16, r=19, s=31, t=20,
// u=22, v=47, w=17, x=45, y=21, z=44
var letterKeys = [26]uint16{
	30, 48, 46, 32, 18, 33, 34, 35, 23, 36,
	37, 38, 50, 49, 24, 25, 16, 19, 31, 20,
	22, 47, 17, 45, 21, 44,
}

// 0=11, 1=2, 2=3, ..., 9=10
var digitKeys = [10]uint16{11, 2, 3, 4, 5, 6, 7, 8, 9, 10}

var punctKeys = map[rune]struct {
	code  uint16
	shift bool
}{
	'.': {52, false}, ',': {51, false}, '/': {53, false},
	';': {39, false}, '\'': {40, false}, '[': {26, false},
	']': {27, false}, '-': {12, false}, '=': {13, false},
	'\\': {43, false}, '`': {41, false},
	'!': {2, true}, '@': {3, true}, '#': {4, true},
	'$': {5, true}, '%': {6, true}, '^': {7, true},
	'&': {8, true}, '*': {9, true}, '(': {10, true},
	')': {11, true}, '_': {12, true}, '+': {13, true},
	'{': {26, true}, '}': {27, true}, '|': {43, true},
	':': {39, true}, '"': {40, true}, '<': {51, true},
	'>': {52, true}, '?': {53, true}, '~': {41, true},
}

func charToKey(r rune) (code uint16, shift bool, ok bool) {
	switch {
	case r >= 'a' && r <= 'z':
		return letterKeys[r-'a'], false, true
	case r >= 'A' && r <= 'Z':
		return letterKeys[r-'A'], true, true
	case r >= '0' && r <= '9':
		return digitKeys[r-'0'], false, true
	case r == ' ':
		return 57, false, true // KEY_SPACE
	case r == '\n':
		return keyEnter, false, true
	case r == '\t':
		return 15, false, true // KEY_TAB
	default:
		k, ok := punctKeys[r]
		return k.code, k.shift, ok
	}
}

func mappable(text string) bool {
	for _, r := range text {
		if _, _, ok := charToKey(r); !ok {
			return false
		}
	}
	return true
}

func tapChar(r rune) error {
	code, shift, ok := charToKey(r)
	if !ok {
		return fmt.Errorf("no key mapping for %q", r)
	}
	return keyTap(code, shift)
}

func tapEnter() error {
	if err := initUinput(); err != nil {
		return err
	}
	return keyTap(keyEnter, false)
}

func tapBackspace() error {
	if err := initUinput(); err != nil {
		return err
	}
	return keyTap(keyBackspace, false)
}

// pasteChord sends Ctrl+V through the virtual keyboard.
func pasteChord() error {
	if err := initUinput(); err != nil {
		return err
	}
	if err := writeEvent(evKey, keyLeftCtrl, 1); err != nil {
		return err
	}
	if err := syn(); err != nil {
		return err
	}
	// Let the compositor register the modifier state.
	time.Sleep(5 * time.Millisecond)
	if err := keyTap(keyV, false); err != nil {
		return err
	}
	time.Sleep(5 * time.Millisecond)
	if err := writeEvent(evKey, keyLeftCtrl, 0); err != nil {
		return err
	}
	return syn()
}

// Verify creates the virtual keyboard, sends Ctrl+V, and reads it back
// from the kernel input layer to confirm delivery end to end.
func Verify() (string, error) {
	if err := initUinput(); err != nil {
		return "", fmt.Errorf("uinput init: %w", err)
	}

	entries, err := os.ReadDir("/sys/class/input")
	if err != nil {
		return "", fmt.Errorf("cannot scan input devices: %w", err)
	}
	var evdevPath string
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "event") {
			continue
		}
		data, err := os.ReadFile(filepath.Join("/sys/class/input", e.Name(), "device", "name"))
		if err != nil {
			continue
		}
		if strings.TrimSpace(string(data)) == deviceName {
			evdevPath = filepath.Join("/dev/input", e.Name())
			break
		}
	}
	if evdevPath == "" {
		return "", fmt.Errorf("%s evdev device not found", deviceName)
	}

	evdev, err := os.Open(evdevPath)
	if err != nil {
		return "", fmt.Errorf("cannot open %s: %w", evdevPath, err)
	}
	defer evdev.Close()

	if err := pasteChord(); err != nil {
		return "", fmt.Errorf("chord send: %w", err)
	}

	type result struct {
		ctrl, v bool
		err     error
	}
	ch := make(chan result, 1)
	go func() {
		buf := make([]byte, 24*32)
		var r result
		n, err := evdev.Read(buf)
		if err != nil {
			r.err = err
			ch <- r
			return
		}
		for i := 0; i+24 <= n; i += 24 {
			evType := binary.LittleEndian.Uint16(buf[i+16:])
			evCode := binary.LittleEndian.Uint16(buf[i+18:])
			if evType == evKey {
				switch evCode {
				case keyLeftCtrl:
					r.ctrl = true
				case keyV:
					r.v = true
				}
			}
		}
		ch <- r
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return "", fmt.Errorf("reading events: %w", r.err)
		}
		if !r.ctrl || !r.v {
			return "", fmt.Errorf("missing events (ctrl=%v, v=%v)", r.ctrl, r.v)
		}
		return fmt.Sprintf("Ctrl+V keystroke verified via %s", evdevPath), nil
	case <-time.After(500 * time.Millisecond):
		return "", errors.New("timed out waiting for keystroke events")
	}
}

// Keystroke emits one key event per character through the virtual
// keyboard, pacing at the configured delay. Text containing characters
// outside the scancode table falls back to the clipboard strategy for
// that run.
type Keystroke struct {
	log      zerolog.Logger
	delay    time.Duration
	fallback *Clipboard

	mu        sync.Mutex
	cancelled atomic.Bool
}

func newKeystroke(delay time.Duration, logger zerolog.Logger) *Keystroke {
	return &Keystroke{
		log:      logger,
		delay:    delay,
		fallback: newClipboard(delay, logger),
	}
}

func (k *Keystroke) Type(text string) error {
	if text == "" {
		return nil
	}
	if !mappable(text) {
		k.log.Debug().Msg("text has unmapped characters, using clipboard")
		return k.fallback.Type(text)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.cancelled.Store(false)

	if err := initUinput(); err != nil {
		return fmt.Errorf("%w: %v", ErrRejected, err)
	}
	for _, r := range text {
		if k.cancelled.Load() {
			return nil
		}
		if err := tapChar(r); err != nil {
			return fmt.Errorf("%w: %v", ErrFailed, err)
		}
		time.Sleep(k.delay)
	}
	return nil
}

func (k *Keystroke) Cancel() {
	k.cancelled.Store(true)
	k.fallback.Cancel()
}

func (k *Keystroke) PressEnter() error {
	if err := tapEnter(); err != nil {
		return fmt.Errorf("%w: %v", ErrFailed, err)
	}
	return nil
}

func (k *Keystroke) Backspace(n int) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.cancelled.Store(false)
	for i := 0; i < n; i++ {
		if k.cancelled.Load() {
			return nil
		}
		if err := tapBackspace(); err != nil {
			return fmt.Errorf("%w: %v", ErrFailed, err)
		}
		time.Sleep(backspacePace)
	}
	return nil
}
