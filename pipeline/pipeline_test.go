package pipeline

import (
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

type fakeMatcher struct {
	match   bool
	handled bool
	err     error
	calls   int
}

func (m *fakeMatcher) Matches(string) bool { return m.match }

func (m *fakeMatcher) Execute(string, Context) (bool, error) {
	m.calls++
	return m.handled, m.err
}

type fakeTransformer struct {
	suffix string
	err    error
	calls  int
}

func (f *fakeTransformer) Transform(text string, _ Context) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return text + f.suffix, nil
}

type panicStage struct{}

func (panicStage) Transform(string, Context) (string, error) { panic("stage exploded") }

func TestRegisterValidation(t *testing.T) {
	p := New(zerolog.Nop(), nil)
	if err := p.Register("", 0, &fakeTransformer{}); err == nil {
		t.Error("empty name accepted")
	}
	if err := p.Register("x", 0, struct{}{}); err == nil {
		t.Error("capability-free stage accepted")
	}
	if err := p.Register("dup", 0, &fakeTransformer{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := p.Register("dup", 1, &fakeTransformer{}); err == nil {
		t.Error("duplicate name accepted")
	}
}

func TestStageOrdering(t *testing.T) {
	p := New(zerolog.Nop(), nil)
	for _, reg := range []struct {
		name  string
		order int
	}{
		{"third", 30},
		{"first", 10},
		{"second-a", 20},
		{"second-b", 20}, // same key, registered later
	} {
		if err := p.Register(reg.name, reg.order, &fakeTransformer{}); err != nil {
			t.Fatalf("register %s: %v", reg.name, err)
		}
	}
	got := strings.Join(p.StageNames(), ",")
	want := "first,second-a,second-b,third"
	if got != want {
		t.Fatalf("order %s, want %s", got, want)
	}
}

func TestMatcherHandledSkipsTransformers(t *testing.T) {
	p := New(zerolog.Nop(), nil)
	a := &fakeMatcher{match: false}
	b := &fakeMatcher{match: true, handled: true}
	c := &fakeTransformer{suffix: "!"}
	if err := p.Register("a", 10, a); err != nil {
		t.Fatal(err)
	}
	if err := p.Register("b", 20, b); err != nil {
		t.Fatal(err)
	}
	if err := p.Register("c", 30, c); err != nil {
		t.Fatal(err)
	}

	out, handled := p.Run("open browser", Context{})
	if out != "" || !handled {
		t.Fatalf("got (%q, %v), want (\"\", true)", out, handled)
	}
	if a.calls != 0 {
		t.Error("non-matching matcher executed")
	}
	if b.calls != 1 {
		t.Errorf("matching matcher executed %d times", b.calls)
	}
	if c.calls != 0 {
		t.Error("transformer ran after handled command")
	}
}

func TestMatcherDecliningContinues(t *testing.T) {
	p := New(zerolog.Nop(), nil)
	declines := &fakeMatcher{match: true, handled: false}
	handles := &fakeMatcher{match: true, handled: true}
	if err := p.Register("declines", 10, declines); err != nil {
		t.Fatal(err)
	}
	if err := p.Register("handles", 20, handles); err != nil {
		t.Fatal(err)
	}

	if _, handled := p.Run("text", Context{}); !handled {
		t.Fatal("second matcher never consulted")
	}
	if declines.calls != 1 || handles.calls != 1 {
		t.Fatalf("calls: declines=%d handles=%d", declines.calls, handles.calls)
	}
}

func TestTransformersChainInOrder(t *testing.T) {
	p := New(zerolog.Nop(), nil)
	if err := p.Register("one", 10, &fakeTransformer{suffix: "-one"}); err != nil {
		t.Fatal(err)
	}
	if err := p.Register("two", 20, &fakeTransformer{suffix: "-two"}); err != nil {
		t.Fatal(err)
	}

	out, handled := p.Run("base", Context{})
	if handled {
		t.Fatal("transformer chain reported handled")
	}
	if out != "base-one-two" {
		t.Fatalf("out = %q", out)
	}
}

func TestFaultingStageSkipped(t *testing.T) {
	var faults []string
	p := New(zerolog.Nop(), func(stage string, err error) {
		faults = append(faults, stage)
	})
	if err := p.Register("bad", 10, &fakeTransformer{err: errors.New("broken")}); err != nil {
		t.Fatal(err)
	}
	if err := p.Register("good", 20, &fakeTransformer{suffix: "!"}); err != nil {
		t.Fatal(err)
	}

	out, _ := p.Run("text", Context{})
	if out != "text!" {
		t.Fatalf("faulting stage corrupted text: %q", out)
	}
	if len(faults) != 1 || faults[0] != "bad" {
		t.Fatalf("faults = %v", faults)
	}
}

func TestPanickingStageRecovered(t *testing.T) {
	var faults []string
	p := New(zerolog.Nop(), func(stage string, err error) {
		faults = append(faults, stage+": "+err.Error())
	})
	if err := p.Register("panics", 10, panicStage{}); err != nil {
		t.Fatal(err)
	}
	if err := p.Register("good", 20, &fakeTransformer{suffix: "!"}); err != nil {
		t.Fatal(err)
	}

	out, _ := p.Run("text", Context{})
	if out != "text!" {
		t.Fatalf("out = %q", out)
	}
	if len(faults) != 1 || !strings.Contains(faults[0], "stage exploded") {
		t.Fatalf("faults = %v", faults)
	}
}

func TestFaultingMatcherFallsThrough(t *testing.T) {
	var faults int
	p := New(zerolog.Nop(), func(string, error) { faults++ })
	if err := p.Register("bad", 10, &fakeMatcher{match: true, err: errors.New("broken")}); err != nil {
		t.Fatal(err)
	}
	if err := p.Register("upper", 20, &fakeTransformer{suffix: "!"}); err != nil {
		t.Fatal(err)
	}

	out, handled := p.Run("text", Context{})
	if handled {
		t.Fatal("faulting matcher reported handled")
	}
	if out != "text!" {
		t.Fatalf("out = %q", out)
	}
	if faults != 1 {
		t.Fatalf("faults = %d", faults)
	}
}
