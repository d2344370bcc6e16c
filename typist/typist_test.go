package typist

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// seamClipboard wires the Clipboard sink to an op recorder so tests can
// assert the exact save/write/paste/restore sequence.
func seamClipboard() (*Clipboard, *[]string) {
	ops := &[]string{}
	c := newClipboard(time.Millisecond, zerolog.Nop())
	c.readClip = func() (string, error) {
		*ops = append(*ops, "read")
		return "prev", nil
	}
	c.writeClip = func(s string) error {
		*ops = append(*ops, "write:"+s)
		return nil
	}
	c.paste = func() error {
		*ops = append(*ops, "paste")
		return nil
	}
	c.backspace = func() error {
		*ops = append(*ops, "backspace")
		return nil
	}
	return c, ops
}

func TestClipboardTypeSavesAndRestores(t *testing.T) {
	c, ops := seamClipboard()
	if err := c.Type("hello"); err != nil {
		t.Fatalf("Type: %v", err)
	}
	want := []string{"read", "write:hello", "paste", "write:prev"}
	if !reflect.DeepEqual(*ops, want) {
		t.Fatalf("ops = %v, want %v", *ops, want)
	}
}

func TestClipboardTypeEmptyIsNoop(t *testing.T) {
	c, ops := seamClipboard()
	if err := c.Type(""); err != nil {
		t.Fatalf("Type: %v", err)
	}
	if len(*ops) != 0 {
		t.Fatalf("ops = %v, want none", *ops)
	}
}

func TestClipboardWriteFailureIsRejected(t *testing.T) {
	c, ops := seamClipboard()
	c.writeClip = func(string) error { return errors.New("no display") }
	err := c.Type("hello")
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("err = %v, want ErrRejected", err)
	}
	for _, op := range *ops {
		if op == "paste" {
			t.Fatal("paste ran after write failure")
		}
	}
}

func TestClipboardPasteFailureRestores(t *testing.T) {
	c, ops := seamClipboard()
	c.paste = func() error {
		*ops = append(*ops, "paste")
		return errors.New("chord failed")
	}
	err := c.Type("hello")
	if !errors.Is(err, ErrFailed) {
		t.Fatalf("err = %v, want ErrFailed", err)
	}
	want := []string{"read", "write:hello", "paste", "write:prev"}
	if !reflect.DeepEqual(*ops, want) {
		t.Fatalf("ops = %v, want %v", *ops, want)
	}
}

func TestClipboardReadFailureSkipsRestore(t *testing.T) {
	c, ops := seamClipboard()
	c.readClip = func() (string, error) { return "", errors.New("empty selection") }
	if err := c.Type("hello"); err != nil {
		t.Fatalf("Type: %v", err)
	}
	want := []string{"write:hello", "paste"}
	if !reflect.DeepEqual(*ops, want) {
		t.Fatalf("ops = %v, want %v", *ops, want)
	}
}

func TestClipboardCancelBeforePaste(t *testing.T) {
	c, ops := seamClipboard()
	c.writeClip = func(s string) error {
		*ops = append(*ops, "write:"+s)
		if s == "hello" {
			c.Cancel()
		}
		return nil
	}
	if err := c.Type("hello"); err != nil {
		t.Fatalf("Type: %v", err)
	}
	want := []string{"read", "write:hello", "write:prev"}
	if !reflect.DeepEqual(*ops, want) {
		t.Fatalf("ops = %v, want %v", *ops, want)
	}
}

func TestClipboardPressEnterPastesNewline(t *testing.T) {
	c, ops := seamClipboard()
	if err := c.PressEnter(); err != nil {
		t.Fatalf("PressEnter: %v", err)
	}
	found := false
	for _, op := range *ops {
		if op == "write:\n" {
			found = true
		}
	}
	if !found {
		t.Fatalf("ops = %v, want a newline write", *ops)
	}
}

func TestClipboardBackspace(t *testing.T) {
	c, ops := seamClipboard()
	if err := c.Backspace(3); err != nil {
		t.Fatalf("Backspace: %v", err)
	}
	n := 0
	for _, op := range *ops {
		if op == "backspace" {
			n++
		}
	}
	if n != 3 {
		t.Fatalf("backspace taps = %d, want 3", n)
	}
}

func TestClipboardBackspaceCancelled(t *testing.T) {
	c, _ := seamClipboard()
	taps := 0
	c.backspace = func() error {
		taps++
		c.Cancel()
		return nil
	}
	if err := c.Backspace(5); err != nil {
		t.Fatalf("Backspace: %v", err)
	}
	if taps != 1 {
		t.Fatalf("taps = %d, want 1 after cancel", taps)
	}
}

func TestClipboardBackspaceFailure(t *testing.T) {
	c, _ := seamClipboard()
	c.backspace = func() error { return errors.New("no device") }
	if err := c.Backspace(1); !errors.Is(err, ErrFailed) {
		t.Fatalf("err = %v, want ErrFailed", err)
	}
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	if _, err := New("telepathy", time.Millisecond, zerolog.Nop()); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestNewKnownBackends(t *testing.T) {
	for _, backend := range []string{"auto", "keystroke", "clipboard"} {
		sink, err := New(backend, time.Millisecond, zerolog.Nop())
		if err != nil {
			t.Fatalf("New(%q): %v", backend, err)
		}
		if sink == nil {
			t.Fatalf("New(%q) returned nil sink", backend)
		}
	}
}

func TestFakeRecordsAndFails(t *testing.T) {
	f := NewFake()
	if err := f.Type("one"); err != nil {
		t.Fatalf("Type: %v", err)
	}
	boom := errors.New("boom")
	f.FailWith(boom)
	if err := f.Type("two"); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	f.FailWith(nil)
	if err := f.Type("three"); err != nil {
		t.Fatalf("Type after clear: %v", err)
	}
	got := f.Typed()
	want := []string{"one", "three"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Typed = %v, want %v", got, want)
	}
}

func TestFakeBlockUntilCancel(t *testing.T) {
	f := NewFake()
	f.BlockNext()
	done := make(chan struct{})
	go func() {
		f.Type("held")
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Type returned before Cancel")
	case <-time.After(20 * time.Millisecond):
	}

	f.Cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Type did not return after Cancel")
	}
	if f.Cancels() != 1 {
		t.Fatalf("Cancels = %d, want 1", f.Cancels())
	}
}
