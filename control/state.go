package control

import (
	"time"

	"voxkey/hotkey"
)

// State is the application state. The controller goroutine is its only
// writer; everyone else observes transitions through the hub.
type State int

const (
	StateIdle State = iota
	StateListening
	StateProcessing
	StateTyping
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateProcessing:
		return "processing"
	case StateTyping:
		return "typing"
	case StateError:
		return "error"
	default:
		return "invalid"
	}
}

// Event is one observer delivery: a Transition, a Note, or an
// Utterance.
type Event interface {
	observerEvent()
}

// Transition reports one state machine edge. Every subscriber sees the
// same order.
type Transition struct {
	From      State
	To        State
	SessionID uint64
	At        time.Time
}

func (Transition) observerEvent() {}

type NoteKind string

const (
	NoteDeviceUnavailable  NoteKind = "device-unavailable"
	NoteStreamError        NoteKind = "stream-error"
	NoteRecognizerFault    NoteKind = "recognizer-fault"
	NoteRecognizerTimeout  NoteKind = "recognizer-timeout"
	NoteInjectionRejected  NoteKind = "injection-rejected"
	NoteInjectionFailure   NoteKind = "injection-failure"
	NotePipelineStageFault NoteKind = "pipeline-stage-fault"
	NoteRejectedStart      NoteKind = "rejected-start"
	NoteUtteranceEmpty     NoteKind = "utterance-empty"
	NoteCommandHandled     NoteKind = "command-handled"
	NoteSilenceWarning     NoteKind = "silence-warning"
	NotePartialTranscript  NoteKind = "partial-transcript"
	NoteUtteranceTyped     NoteKind = "utterance-typed"
)

// Note is an out-of-band observer event: faults, rejected starts,
// partial transcripts, and the empty/handled outcomes that skip Typing.
type Note struct {
	Kind      NoteKind
	Message   string
	SessionID uint64
}

func (Note) observerEvent() {}

// Meter reports one captured frame's RMS amplitude while Listening,
// for level displays and the silence watchdog.
type Meter struct {
	SessionID uint64
	Seq       uint64
	RMS       float64
	Span      time.Duration
}

func (Meter) observerEvent() {}

// Utterance is the record of one completed utterance, published for
// history and archive observers.
type Utterance struct {
	SessionID  uint64
	Mode       hotkey.Mode
	StartedAt  time.Time
	FinishedAt time.Time
	Raw        string
	Output     string
	Handled    bool
	Confidence float64
	TypedChars int
}

func (Utterance) observerEvent() {}
