package recognizer

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mattn/go-shellwords"
	"github.com/rs/zerolog"
	"voxkey/audio"
)

const (
	feedQueueDepth = 64
	feedWait       = 250 * time.Millisecond
	eventBuffer    = 32
)

// Exec runs the recognizer engine as a child process, one process per
// decode context. Raw little-endian PCM goes to its stdin; the engine
// answers with newline-delimited JSON on stdout: {"partial": "..."}
// while decoding, {"text": "...", "confidence": 0.93} once settled.
// Flush closes stdin so the engine settles and exits; Reset kills the
// process and spawns a fresh one.
type Exec struct {
	log  zerolog.Logger
	argv []string

	events chan Event

	feedMu sync.Mutex // serializes Feed/Flush against each other

	mu     sync.Mutex
	proc   *engineProc
	closed bool
}

// NewExec parses the engine command template. {model} and {rate} in the
// template expand to the model path and sample rate before shell-style
// word splitting.
func NewExec(command, modelPath string, sampleRate int, logger zerolog.Logger) (*Exec, error) {
	argv, err := buildCommand(command, modelPath, sampleRate)
	if err != nil {
		return nil, err
	}
	return &Exec{
		log:    logger,
		argv:   argv,
		events: make(chan Event, eventBuffer),
	}, nil
}

func buildCommand(template, modelPath string, rate int) ([]string, error) {
	expanded := strings.NewReplacer(
		"{model}", modelPath,
		"{rate}", strconv.Itoa(rate),
	).Replace(template)

	parser := shellwords.NewParser()
	argv, err := parser.Parse(expanded)
	if err != nil {
		return nil, fmt.Errorf("parse engine command: %w", err)
	}
	if len(argv) == 0 {
		return nil, errors.New("engine command is empty")
	}
	return argv, nil
}

func (e *Exec) Events() <-chan Event { return e.events }

// Reset tears down any live decode context and spawns a fresh engine
// process. After it returns the old process is dead and emits nothing
// further.
func (e *Exec) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if e.proc != nil {
		e.proc.stop()
		e.proc = nil
	}
	p, err := e.spawn()
	if err != nil {
		return fmt.Errorf("recognizer: start engine: %w", err)
	}
	e.proc = p
	return nil
}

// Feed enqueues one frame of audio for the engine. It fails fast on a
// concurrent Feed and blocks at most feedWait when the engine stops
// draining.
func (e *Exec) Feed(frame audio.Frame) error {
	if !e.feedMu.TryLock() {
		return ErrBusy
	}
	defer e.feedMu.Unlock()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	p := e.proc
	e.mu.Unlock()
	if p == nil || p.flushed.Load() {
		return ErrNotActive
	}
	if err := p.firstErr(); err != nil {
		return fmt.Errorf("recognizer: engine: %w", err)
	}

	buf := pcmBytes(frame.Samples)
	select {
	case p.in <- buf:
		return nil
	case <-p.quit:
		return ErrNotActive
	case <-time.After(feedWait):
		return ErrStalled
	}
}

// Flush ends the utterance: remaining queued audio drains to the engine
// and stdin closes, making it settle a Final and exit. The context
// accepts no further feeds until the next Reset.
func (e *Exec) Flush() error {
	e.feedMu.Lock()
	defer e.feedMu.Unlock()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	p := e.proc
	e.mu.Unlock()
	if p == nil {
		return ErrNotActive
	}
	if p.flushed.Swap(true) {
		return ErrNotActive
	}
	close(p.in)
	return nil
}

func (e *Exec) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	if e.proc != nil {
		e.proc.stop()
		e.proc = nil
	}
	close(e.events)
	return nil
}

type engineProc struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser

	in         chan []byte
	quit       chan struct{}
	stopOnce   sync.Once
	writerDone chan struct{}
	readerDone chan struct{}

	flushed atomic.Bool

	errMu sync.Mutex
	err   error
}

func (e *Exec) spawn() (*engineProc, error) {
	cmd := exec.Command(e.argv[0], e.argv[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	cmd.Stderr = stderrWriter{log: e.log}
	setEngineProcAttrs(cmd)

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	e.log.Debug().Str("engine", e.argv[0]).Int("pid", cmd.Process.Pid).Msg("engine started")

	p := &engineProc{
		cmd:        cmd,
		stdin:      stdin,
		in:         make(chan []byte, feedQueueDepth),
		quit:       make(chan struct{}),
		writerDone: make(chan struct{}),
		readerDone: make(chan struct{}),
	}
	go p.runWriter()
	go e.runReader(p, stdout)
	return p, nil
}

// stop kills the engine and waits for both pump goroutines. The kill
// reaches the whole process group: a surviving helper the engine forked
// would otherwise keep the stdout pipe open and the reader blocked.
func (p *engineProc) stop() {
	p.stopOnce.Do(func() { close(p.quit) })
	killEngine(p.cmd)
	<-p.readerDone
	<-p.writerDone
}

func (p *engineProc) setErr(err error) {
	p.errMu.Lock()
	if p.err == nil {
		p.err = err
	}
	p.errMu.Unlock()
}

func (p *engineProc) firstErr() error {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	return p.err
}

func (p *engineProc) runWriter() {
	defer close(p.writerDone)
	for {
		select {
		case chunk, ok := <-p.in:
			if !ok {
				// Flush path: stdin close is the end-of-utterance signal.
				if err := p.stdin.Close(); err != nil {
					p.setErr(err)
				}
				return
			}
			if _, err := p.stdin.Write(chunk); err != nil {
				p.setErr(err)
				return
			}
		case <-p.quit:
			return
		}
	}
}

func (e *Exec) runReader(p *engineProc, stdout io.Reader) {
	defer close(p.readerDone)

	sawFinal := false
	lastPartial := ""

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		ev, ok := parseEngineLine(line)
		if !ok {
			e.log.Debug().Str("line", line).Msg("unrecognized engine output")
			continue
		}
		if ev.Kind == Partial {
			if ev.Text == "" || ev.Text == lastPartial {
				continue
			}
			lastPartial = ev.Text
		} else {
			sawFinal = true
		}
		select {
		case e.events <- ev:
		case <-p.quit:
			return
		}
	}
	if err := scanner.Err(); err != nil {
		p.setErr(err)
	}

	// Reap. Safe here: all stdout reads are done.
	waitErr := p.cmd.Wait()
	if waitErr != nil {
		p.setErr(waitErr)
		select {
		case <-p.quit: // deliberate kill, not a crash
		default:
			e.log.Warn().Err(waitErr).Msg("engine exited abnormally")
		}
		return
	}

	// An engine that exits cleanly after Flush without printing a final
	// settled on silence; the utterance still gets its Final.
	if p.flushed.Load() && !sawFinal {
		select {
		case e.events <- Event{Kind: Final, Text: "", Confidence: 0}:
		case <-p.quit:
		}
	}
}

type engineLine struct {
	Partial    *string  `json:"partial"`
	Text       *string  `json:"text"`
	Confidence *float64 `json:"confidence"`
}

func parseEngineLine(line string) (Event, bool) {
	var msg engineLine
	if err := json.Unmarshal([]byte(line), &msg); err != nil {
		return Event{}, false
	}
	if msg.Text != nil {
		conf := 1.0
		if msg.Confidence != nil {
			conf = *msg.Confidence
		}
		return Event{Kind: Final, Text: strings.TrimSpace(*msg.Text), Confidence: conf}, true
	}
	if msg.Partial != nil {
		return Event{Kind: Partial, Text: strings.TrimSpace(*msg.Partial)}, true
	}
	return Event{}, false
}

func pcmBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// stderrWriter forwards engine diagnostics into the log.
type stderrWriter struct {
	log zerolog.Logger
}

func (w stderrWriter) Write(b []byte) (int, error) {
	for _, line := range strings.Split(string(b), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			w.log.Debug().Str("engine", "stderr").Msg(line)
		}
	}
	return len(b), nil
}
