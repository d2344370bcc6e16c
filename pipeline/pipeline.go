package pipeline

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// Context travels with one pipeline invocation. It is immutable; every
// stage sees the same values.
type Context struct {
	SessionID  uint64
	Timestamp  time.Time
	Confidence float64
	AppHint    string
}

// Transformer rewrites text. It never consumes an utterance.
type Transformer interface {
	Transform(text string, ctx Context) (string, error)
}

// Matcher can consume an utterance as a command. Execute returning true
// means the text was handled and nothing gets typed.
type Matcher interface {
	Matches(text string) bool
	Execute(text string, ctx Context) (bool, error)
}

// FaultFunc receives stage failures. Reporting must not block; the
// pipeline continues regardless.
type FaultFunc func(stage string, err error)

type registeredStage struct {
	name  string
	order int
	seq   int

	transformer Transformer
	matcher     Matcher
}

// Pipeline is an ordered chain of stages. Matchers are consulted first,
// in order; if none handles the text every Transformer runs, each
// consuming the previous output. Stages are registered up front and the
// chain is read-only afterwards, so runs are re-entrant.
type Pipeline struct {
	log     zerolog.Logger
	onFault FaultFunc
	stages  []registeredStage
	nextSeq int
}

func New(logger zerolog.Logger, onFault FaultFunc) *Pipeline {
	return &Pipeline{log: logger, onFault: onFault}
}

// Register adds a stage under a stable name. The stage must implement
// Transformer, Matcher, or both. Evaluation follows ascending order key,
// registration order breaking ties.
func (p *Pipeline) Register(name string, order int, stage any) error {
	if name == "" {
		return errors.New("pipeline: stage name is empty")
	}
	for _, st := range p.stages {
		if st.name == name {
			return fmt.Errorf("pipeline: stage %q already registered", name)
		}
	}

	reg := registeredStage{name: name, order: order, seq: p.nextSeq}
	if t, ok := stage.(Transformer); ok {
		reg.transformer = t
	}
	if m, ok := stage.(Matcher); ok {
		reg.matcher = m
	}
	if reg.transformer == nil && reg.matcher == nil {
		return fmt.Errorf("pipeline: stage %q is neither transformer nor matcher", name)
	}
	p.nextSeq++

	p.stages = append(p.stages, reg)
	sort.SliceStable(p.stages, func(i, j int) bool {
		if p.stages[i].order != p.stages[j].order {
			return p.stages[i].order < p.stages[j].order
		}
		return p.stages[i].seq < p.stages[j].seq
	})
	return nil
}

// StageNames returns the evaluation order, for logs and the doctor.
func (p *Pipeline) StageNames() []string {
	names := make([]string, len(p.stages))
	for i, st := range p.stages {
		names[i] = st.name
	}
	return names
}

// Run sends text through the chain. A handled command returns ("", true).
// A faulting stage is skipped, its input passing through unchanged, and
// the fault is reported; one bad stage never aborts the run.
func (p *Pipeline) Run(text string, ctx Context) (string, bool) {
	for _, st := range p.stages {
		if st.matcher == nil {
			continue
		}
		matched, handled, err := p.tryMatch(st, text, ctx)
		if err != nil {
			p.reportFault(st.name, err)
			continue
		}
		if !matched {
			continue
		}
		if handled {
			p.log.Debug().Str("stage", st.name).Msg("utterance consumed as command")
			return "", true
		}
	}

	out := text
	for _, st := range p.stages {
		if st.transformer == nil {
			continue
		}
		next, err := p.tryTransform(st, out, ctx)
		if err != nil {
			p.reportFault(st.name, err)
			continue
		}
		out = next
	}
	return out, false
}

func (p *Pipeline) tryMatch(st registeredStage, text string, ctx Context) (matched, handled bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			matched, handled = false, false
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	if !st.matcher.Matches(text) {
		return false, false, nil
	}
	handled, err = st.matcher.Execute(text, ctx)
	return true, handled, err
}

func (p *Pipeline) tryTransform(st registeredStage, text string, ctx Context) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = text
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return st.transformer.Transform(text, ctx)
}

func (p *Pipeline) reportFault(stage string, err error) {
	p.log.Warn().Err(err).Str("stage", stage).Msg("pipeline stage fault, skipping")
	if p.onFault != nil {
		p.onFault(stage, err)
	}
}
