package hotkey

import (
	"fmt"
	"strings"
)

// Hotkey watches one key chord and reports raw press/release edges.
type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}

type Mode string

const (
	ModePushToTalk Mode = "push_to_talk"
	ModeToggle     Mode = "toggle"
	ModeContinuous Mode = "continuous"

	// ModeAuto resolves per gesture: holding past the threshold acts as
	// push to talk, a quick tap toggles. The interpreter emits concrete
	// modes, never auto.
	ModeAuto Mode = "auto"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModePushToTalk, ModeToggle, ModeContinuous, ModeAuto:
		return Mode(s), nil
	}
	return "", fmt.Errorf("hotkey: unknown mode %q", s)
}

type SignalKind int

const (
	StartOrToggle SignalKind = iota
	Cancel
	ReleaseForPushToTalk
)

func (k SignalKind) String() string {
	switch k {
	case StartOrToggle:
		return "start_or_toggle"
	case Cancel:
		return "cancel"
	case ReleaseForPushToTalk:
		return "release"
	default:
		return "unknown"
	}
}

// Signal is a resolved trigger delivered to the session controller.
type Signal struct {
	Kind SignalKind
	Mode Mode
}

// Chord is a parsed key combination like "ctrl+shift+space".
type Chord struct {
	Ctrl  bool
	Shift bool
	Alt   bool
	Key   string
}

func ParseChord(s string) (Chord, error) {
	var c Chord
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "+")
	for _, p := range parts {
		p = strings.TrimSpace(p)
		switch p {
		case "":
			return Chord{}, fmt.Errorf("hotkey: empty chord component in %q", s)
		case "ctrl", "control":
			c.Ctrl = true
		case "shift":
			c.Shift = true
		case "alt":
			c.Alt = true
		default:
			if c.Key != "" {
				return Chord{}, fmt.Errorf("hotkey: chord %q has two keys (%s, %s)", s, c.Key, p)
			}
			c.Key = p
		}
	}
	if c.Key == "" {
		return Chord{}, fmt.Errorf("hotkey: chord %q names no key", s)
	}
	return c, nil
}

func (c Chord) String() string {
	var parts []string
	if c.Ctrl {
		parts = append(parts, "ctrl")
	}
	if c.Shift {
		parts = append(parts, "shift")
	}
	if c.Alt {
		parts = append(parts, "alt")
	}
	parts = append(parts, c.Key)
	return strings.Join(parts, "+")
}
