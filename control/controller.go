package control

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"voxkey/audio"
	"voxkey/hotkey"
	"voxkey/pipeline"
	"voxkey/recognizer"
	"voxkey/typist"
)

// AudioSource is the slice of audio.Source the controller drives.
type AudioSource interface {
	Start(onFrame func(audio.Frame), onFault func(error)) error
	Stop()
}

// Session is one recording episode. The controller goroutine owns it
// exclusively from the start trigger until the return to Idle.
type Session struct {
	ID        uint64
	Mode      hotkey.Mode
	StartedAt time.Time
}

// Config carries the controller's tunables out of the config package.
type Config struct {
	FrameQueueBound   int
	ObserverBuffer    int
	ProcessingTimeout time.Duration
	AppHint           string

	// FrameTap, if set, sees every captured frame on the capture
	// goroutine before it is queued for the recognizer. The archiver
	// hangs off this. Must not block.
	FrameTap func(audio.Frame)
}

// Controller is the session state machine. All triggers (hotkey
// signals, transcript events, typing completions, timeouts, component
// faults) funnel through one inbox and are handled on a single
// goroutine, which is the only writer of the application state.
type Controller struct {
	log  zerolog.Logger
	cfg  Config
	hub  *Hub
	src  AudioSource
	rec  recognizer.Adapter
	pipe *pipeline.Pipeline
	sink typist.Sink

	coal  *Coalescer
	inbox chan any
	quit  chan struct{}
	done  chan struct{}
	once  sync.Once

	state   atomic.Int32
	nextID  uint64
	session *Session

	// per-session plumbing, owned by the loop goroutine
	frames      *FrameQueue
	feederStop  chan feederMode
	feederDone  chan struct{}
	procTimer   *time.Timer
	procSession uint64

	stopContinuous atomic.Bool
	disableRestart bool
	lastTyped      atomic.Int64

	// utterance in flight between the Typing entry and its completion
	// event; loop goroutine only
	pendingRaw recognizer.Event
	pendingOut string
}

type feederMode int

const (
	feederAbort feederMode = iota // discard queued frames
	feederDrain                   // feed what is queued, then flush
)

// inbox payloads
type (
	sigMsg   struct{ sig hotkey.Signal }
	typedMsg struct {
		session uint64
		chars   int
		err     error
	}
	faultMsg struct {
		kind NoteKind
		err  error
	}
	ackMsg struct{}
	endMsg struct{}
)

func New(src AudioSource, rec recognizer.Adapter, pipe *pipeline.Pipeline, sink typist.Sink, cfg Config, logger zerolog.Logger) *Controller {
	if cfg.FrameQueueBound < 1 {
		cfg.FrameQueueBound = 32
	}
	if cfg.ProcessingTimeout <= 0 {
		cfg.ProcessingTimeout = 3 * time.Second
	}
	c := &Controller{
		log:   logger,
		cfg:   cfg,
		hub:   NewHub(logger),
		src:   src,
		rec:   rec,
		pipe:  pipe,
		sink:  sink,
		coal:  NewCoalescer(rec.Events()),
		inbox: make(chan any, 64),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	c.state.Store(int32(StateIdle))
	go c.run()
	return c
}

func (c *Controller) Hub() *Hub { return c.hub }

// State is the current application state, for polling observers. The
// hub stream is the authoritative transition record.
func (c *Controller) State() State { return State(c.state.Load()) }

// Signal delivers a hotkey trigger to the controller loop.
func (c *Controller) Signal(sig hotkey.Signal) { c.send(sigMsg{sig: sig}) }

// Acknowledge clears the Error state back to Idle.
func (c *Controller) Acknowledge() { c.send(ackMsg{}) }

// EndUtterance finishes the current utterance as if the session's stop
// trigger had fired; in continuous mode the next session still starts.
// The silence watchdog uses this for its auto-stop.
func (c *Controller) EndUtterance() { c.send(endMsg{}) }

// ReportFault injects a fatal component fault from outside the session
// plumbing (e.g. the supervisor noticing a dead engine).
func (c *Controller) ReportFault(kind NoteKind, err error) {
	c.send(faultMsg{kind: kind, err: err})
}

func (c *Controller) send(msg any) {
	select {
	case c.inbox <- msg:
	case <-c.quit:
	}
}

// Close cancels any live session and stops the loop. The hub closes
// once the loop has drained, so observers see a complete stream.
func (c *Controller) Close() {
	c.once.Do(func() { close(c.quit) })
	<-c.done
}

// Controls is the port command stages drive. DeleteLast erases as many
// characters as the previous utterance typed.
func (c *Controller) Controls() pipeline.Controls { return controls{c} }

type controls struct{ c *Controller }

func (ct controls) PressEnter() error { return ct.c.sink.PressEnter() }

func (ct controls) DeleteLast() error {
	n := int(ct.c.lastTyped.Swap(0))
	if n == 0 {
		return nil
	}
	return ct.c.sink.Backspace(n)
}

func (ct controls) StopContinuous() { ct.c.stopContinuous.Store(true) }

func (c *Controller) run() {
	defer close(c.done)
	defer c.hub.Close()

	for {
		var timeoutC <-chan time.Time
		if c.procTimer != nil {
			timeoutC = c.procTimer.C
		}

		select {
		case ev, ok := <-c.coal.Events():
			if !ok {
				return
			}
			c.handleTranscript(ev)
		case msg := <-c.inbox:
			switch m := msg.(type) {
			case sigMsg:
				c.handleSignal(m.sig)
			case typedMsg:
				c.handleTyped(m)
			case faultMsg:
				c.handleFault(m.kind, m.err)
			case ackMsg:
				c.handleAck()
			case endMsg:
				if c.State() == StateListening {
					c.stopListening()
				}
			}
		case <-timeoutC:
			c.procTimer = nil
			c.handleTimeout(c.procSession)
		case <-c.quit:
			if c.session != nil {
				c.teardownSession()
				c.setState(StateIdle)
			}
			c.coal.Close()
			return
		}
	}
}

func (c *Controller) setState(to State) {
	from := State(c.state.Load())
	if from == to {
		return
	}
	c.state.Store(int32(to))
	var sid uint64
	if c.session != nil {
		sid = c.session.ID
	}
	c.log.Info().Str("from", from.String()).Str("to", to.String()).Uint64("session", sid).Msg("state")
	c.hub.Publish(Transition{From: from, To: to, SessionID: sid, At: time.Now()})
}

func (c *Controller) note(kind NoteKind, format string, args ...any) {
	var sid uint64
	if c.session != nil {
		sid = c.session.ID
	}
	c.hub.Publish(Note{Kind: kind, Message: fmt.Sprintf(format, args...), SessionID: sid})
}

func (c *Controller) handleSignal(sig hotkey.Signal) {
	st := c.State()
	switch sig.Kind {
	case hotkey.StartOrToggle:
		switch st {
		case StateIdle:
			c.startSession(sig.Mode)
		case StateListening:
			switch c.session.Mode {
			case hotkey.ModeToggle:
				c.stopListening()
			case hotkey.ModeContinuous:
				// second press disables continuous: finish this
				// utterance, do not restart
				c.disableRestart = true
				c.stopListening()
			default:
				c.rejectStart(st)
			}
		case StateError:
			// next start signal resets Error to Idle; recording
			// resumes on the press after that
			c.setState(StateIdle)
		default:
			c.rejectStart(st)
		}
	case hotkey.ReleaseForPushToTalk:
		// Only push-to-talk gestures emit this: a configured push-to-talk
		// chord, or an auto-mode press held past the threshold. Either
		// way the release ends the session, whatever mode it carries.
		if st == StateListening {
			c.stopListening()
			return
		}
		c.log.Debug().Str("state", st.String()).Msg("release ignored")
	case hotkey.Cancel:
		switch st {
		case StateListening:
			c.cancelSession()
		case StateError:
			c.setState(StateIdle)
		default:
			c.log.Debug().Str("state", st.String()).Msg("cancel ignored")
		}
	}
}

func (c *Controller) rejectStart(st State) {
	c.log.Warn().Str("state", st.String()).Msg("start rejected, session active")
	c.note(NoteRejectedStart, "start signal ignored in state %s", st)
}

func (c *Controller) startSession(mode hotkey.Mode) {
	if err := c.rec.Reset(); err != nil {
		c.log.Error().Err(err).Msg("recognizer reset failed")
		c.note(NoteRecognizerFault, "recognizer reset: %v", err)
		return
	}
	c.coal.Clear()

	c.nextID++
	c.session = &Session{ID: c.nextID, Mode: mode, StartedAt: time.Now()}
	c.disableRestart = false
	c.stopContinuous.Store(false)

	c.frames = NewFrameQueue(c.cfg.FrameQueueBound)
	c.feederStop = make(chan feederMode, 1)
	c.feederDone = make(chan struct{})
	go c.feed(c.session.ID, c.frames, c.feederStop, c.feederDone)

	q := c.frames
	sid := c.session.ID
	tap := c.cfg.FrameTap
	if err := c.src.Start(
		func(f audio.Frame) {
			if tap != nil {
				tap(f)
			}
			c.hub.Publish(Meter{SessionID: sid, Seq: f.Seq, RMS: audio.RMS(f.Samples), Span: f.Duration()})
			q.Push(f)
		},
		func(err error) { c.send(faultMsg{kind: NoteStreamError, err: err}) },
	); err != nil {
		c.stopFeeder(feederAbort)
		c.session = nil
		c.log.Error().Err(err).Msg("audio start failed")
		c.note(NoteDeviceUnavailable, "audio start: %v", err)
		return
	}

	c.log.Info().Uint64("session", c.session.ID).Str("mode", string(mode)).Msg("session start")
	c.setState(StateListening)
}

// feed is the recognizer-feeding goroutine: the only caller of Feed for
// the session, so decode-context serialization holds by construction.
func (c *Controller) feed(session uint64, q *FrameQueue, stop <-chan feederMode, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case f := <-q.C():
			if err := c.rec.Feed(f); err != nil {
				c.send(faultMsg{kind: NoteRecognizerFault, err: fmt.Errorf("feed (session %d): %w", session, err)})
				return
			}
		case mode := <-stop:
			if mode == feederAbort {
				return
			}
			// drain what capture already queued, then end the utterance
			for {
				select {
				case f := <-q.C():
					if err := c.rec.Feed(f); err != nil {
						c.send(faultMsg{kind: NoteRecognizerFault, err: fmt.Errorf("feed (session %d): %w", session, err)})
						return
					}
				default:
					if err := c.rec.Flush(); err != nil {
						c.send(faultMsg{kind: NoteRecognizerFault, err: fmt.Errorf("flush (session %d): %w", session, err)})
					}
					return
				}
			}
		}
	}
}

func (c *Controller) stopFeeder(mode feederMode) {
	if c.feederStop == nil {
		return
	}
	select {
	case c.feederStop <- mode:
	default:
	}
	<-c.feederDone
	c.feederStop = nil
	c.feederDone = nil
	c.frames = nil
}

func (c *Controller) stopListening() {
	c.src.Stop()
	c.setState(StateProcessing)
	c.stopFeeder(feederDrain)
	c.procSession = c.session.ID
	c.procTimer = time.NewTimer(c.cfg.ProcessingTimeout)
}

func (c *Controller) cancelSession() {
	c.src.Stop()
	c.stopFeeder(feederAbort)
	if err := c.rec.Reset(); err != nil {
		c.log.Warn().Err(err).Msg("recognizer reset after cancel failed")
	}
	c.coal.Clear()
	c.log.Info().Uint64("session", c.session.ID).Msg("session cancelled")
	c.setState(StateIdle)
	c.session = nil
}

func (c *Controller) disarmTimeout() {
	if c.procTimer != nil {
		c.procTimer.Stop()
		c.procTimer = nil
	}
}

func (c *Controller) handleTranscript(ev recognizer.Event) {
	st := c.State()
	if c.session == nil {
		c.log.Debug().Str("kind", ev.Kind.String()).Msg("transcript without session, dropping")
		return
	}
	switch ev.Kind {
	case recognizer.Partial:
		if st != StateListening {
			return
		}
		c.log.Debug().Str("text", ev.Text).Msg("partial")
		c.note(NotePartialTranscript, "%s", ev.Text)
	case recognizer.Final:
		if st != StateProcessing {
			c.log.Debug().Str("state", st.String()).Msg("final outside processing, dropping")
			return
		}
		c.disarmTimeout()
		c.finishUtterance(ev)
	}
}

func (c *Controller) finishUtterance(ev recognizer.Event) {
	sess := c.session
	if ev.Text == "" {
		c.log.Info().Uint64("session", sess.ID).Msg("empty utterance")
		c.note(NoteUtteranceEmpty, "nothing was said")
		c.returnToIdle()
		return
	}

	ctx := pipeline.Context{
		SessionID:  sess.ID,
		Timestamp:  time.Now(),
		Confidence: ev.Confidence,
		AppHint:    c.cfg.AppHint,
	}
	out, handled := c.pipe.Run(ev.Text, ctx)
	if handled {
		c.note(NoteCommandHandled, "%s", ev.Text)
		c.publishUtterance(sess, ev, "", true, 0)
		c.returnToIdle()
		return
	}
	if out == "" {
		c.note(NoteUtteranceEmpty, "pipeline produced no text")
		c.returnToIdle()
		return
	}

	c.pendingRaw = ev
	c.pendingOut = out
	c.setState(StateTyping)
	go func(session uint64, text string) {
		err := c.sink.Type(text)
		c.send(typedMsg{session: session, chars: len([]rune(text)), err: err})
	}(sess.ID, out)
}

func (c *Controller) handleTyped(m typedMsg) {
	if c.session == nil || c.State() != StateTyping || m.session != c.session.ID {
		c.log.Debug().Uint64("session", m.session).Msg("stale typing completion, dropping")
		return
	}
	if m.err != nil {
		c.log.Error().Err(m.err).Uint64("session", m.session).Msg("typing failed")
		c.note(NoteInjectionFailure, "typing: %v", m.err)
		c.enterError()
		return
	}
	c.lastTyped.Store(int64(m.chars))
	c.note(NoteUtteranceTyped, "%s", c.pendingOut)
	c.publishUtterance(c.session, c.pendingRaw, c.pendingOut, false, m.chars)
	c.returnToIdle()
}

func (c *Controller) publishUtterance(sess *Session, raw recognizer.Event, out string, handled bool, chars int) {
	c.hub.Publish(Utterance{
		SessionID:  sess.ID,
		Mode:       sess.Mode,
		StartedAt:  sess.StartedAt,
		FinishedAt: time.Now(),
		Raw:        raw.Text,
		Output:     out,
		Handled:    handled,
		Confidence: raw.Confidence,
		TypedChars: chars,
	})
}

// returnToIdle ends the session. In continuous mode the next session
// starts immediately unless something asked to stop.
func (c *Controller) returnToIdle() {
	mode := c.session.Mode
	c.setState(StateIdle)
	c.session = nil
	c.pendingOut = ""
	c.pendingRaw = recognizer.Event{}

	if mode == hotkey.ModeContinuous && !c.disableRestart && !c.stopContinuous.Load() {
		c.startSession(hotkey.ModeContinuous)
	}
}

func (c *Controller) handleTimeout(session uint64) {
	if c.session == nil || c.State() != StateProcessing || session != c.session.ID {
		return
	}
	c.log.Error().Uint64("session", session).Dur("timeout", c.cfg.ProcessingTimeout).Msg("no final transcript in time")
	c.note(NoteRecognizerTimeout, "no final transcript within %s", c.cfg.ProcessingTimeout)
	c.enterError()
}

func (c *Controller) handleFault(kind NoteKind, err error) {
	if c.session == nil {
		// fault outside a session: report, stay put
		c.log.Error().Err(err).Str("kind", string(kind)).Msg("component fault outside session")
		c.note(kind, "%v", err)
		return
	}
	c.log.Error().Err(err).Str("kind", string(kind)).Uint64("session", c.session.ID).Msg("fatal component fault")
	c.note(kind, "%v", err)
	c.enterError()
}

// enterError stops every active stage, discards the session, and parks
// in Error until an acknowledgement or the next start signal.
func (c *Controller) enterError() {
	c.teardownSession()
	c.setState(StateError)
	c.session = nil
}

func (c *Controller) teardownSession() {
	c.disarmTimeout()
	c.src.Stop()
	c.stopFeeder(feederAbort)
	c.sink.Cancel()
	if err := c.rec.Reset(); err != nil {
		c.log.Warn().Err(err).Msg("recognizer reset during teardown failed")
	}
	c.coal.Clear()
	c.pendingOut = ""
	c.pendingRaw = recognizer.Event{}
}

func (c *Controller) handleAck() {
	if c.State() == StateError {
		c.setState(StateIdle)
	}
}
