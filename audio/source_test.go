package audio

import (
	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func pcmRamp(n, step int) []byte {
	out := make([]byte, n*2)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(i*step)))
	}
	return out
}

type frameSink struct {
	mu     sync.Mutex
	frames []Frame
}

func (fs *frameSink) push(f Frame) {
	fs.mu.Lock()
	fs.frames = append(fs.frames, f)
	fs.mu.Unlock()
}

func (fs *frameSink) snapshot() []Frame {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]Frame(nil), fs.frames...)
}

func TestSourceAssemblesFrames(t *testing.T) {
	fake := NewFakeContextFromPCM(pcmRamp(20000, 1), false)
	src, err := Open(fake, nil, TargetRate, 8000, zerolog.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer src.Close()

	var sink frameSink
	if err := src.Start(sink.push, nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	src.Stop()

	frames := sink.snapshot()
	if len(frames) < 2 {
		t.Fatalf("expected at least 2 frames from 20000 samples, got %d", len(frames))
	}
	for i := 0; i < 2; i++ {
		f := frames[i]
		if f.Seq != uint64(i) {
			t.Errorf("frame %d: seq %d", i, f.Seq)
		}
		if len(f.Samples) != 8000 {
			t.Fatalf("frame %d: %d samples", i, len(f.Samples))
		}
		for j, s := range f.Samples {
			if want := int16(i*8000 + j); s != want {
				t.Fatalf("frame %d sample %d: got %d, want %d", i, j, s, want)
			}
		}
	}
}

func TestSourceResamplesDeviceRate(t *testing.T) {
	// 8000 samples at a simulated 32000 Hz device shrink to about 4000
	// samples at TargetRate.
	fake := NewFakeContextFromPCM(pcmRamp(8000, 2), false)
	src, err := Open(fake, nil, 32000, 1000, zerolog.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer src.Close()

	var sink frameSink
	if err := src.Start(sink.push, nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	src.Stop()

	frames := sink.snapshot()
	if len(frames) < 3 {
		t.Fatalf("expected at least 3 resampled frames, got %d", len(frames))
	}
	first := frames[0].Samples
	for i := 1; i < len(first); i++ {
		if first[i] < first[i-1] {
			t.Fatalf("resampled ramp not monotonic at %d: %d then %d", i, first[i-1], first[i])
		}
	}
	// Ramp step roughly doubles when the rate halves.
	step := int(first[500]) - int(first[499])
	if step < 3 || step > 5 {
		t.Errorf("resampled step %d, want about 4", step)
	}
}

func TestSourceStartWhileRunning(t *testing.T) {
	fake := NewFakeContextFromPCM(pcmRamp(1000, 1), false)
	src, err := Open(fake, nil, TargetRate, 800, zerolog.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer src.Close()

	if err := src.Start(func(Frame) {}, nil); err != nil {
		t.Fatalf("first start: %v", err)
	}
	if err := src.Start(func(Frame) {}, nil); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("second start: got %v, want ErrAlreadyStarted", err)
	}
	src.Stop()
}

func TestSourceStopIdempotent(t *testing.T) {
	fake := NewFakeContextFromPCM(pcmRamp(1000, 1), false)
	src, err := Open(fake, nil, TargetRate, 800, zerolog.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer src.Close()

	src.Stop() // before any Start

	if err := src.Start(func(Frame) {}, nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	src.Stop()
	src.Stop()

	// A stopped source can be restarted and sequence numbers reset.
	var sink frameSink
	if err := src.Start(sink.push, nil); err != nil {
		t.Fatalf("restart: %v", err)
	}
	src.Stop()
	frames := sink.snapshot()
	if len(frames) == 0 {
		t.Fatal("no frames after restart")
	}
	if frames[0].Seq != 0 {
		t.Fatalf("restart seq starts at %d, want 0", frames[0].Seq)
	}
}

func TestSourceNoDeliveryAfterStop(t *testing.T) {
	fake := NewFakeContextFromPCM(pcmRamp(20000, 1), false)
	src, err := Open(fake, nil, TargetRate, 1000, zerolog.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer src.Close()

	var sink frameSink
	if err := src.Start(sink.push, nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	src.Stop()
	n := len(sink.snapshot())

	time.Sleep(20 * time.Millisecond)
	if got := len(sink.snapshot()); got != n {
		t.Fatalf("frames kept arriving after Stop: %d then %d", n, got)
	}
}

func TestSourceForwardsFaults(t *testing.T) {
	fake := NewFakeContextFromPCM(pcmRamp(1000, 1), false)
	src, err := Open(fake, nil, TargetRate, 800, zerolog.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer src.Close()

	var mu sync.Mutex
	var got []error
	onFault := func(err error) {
		mu.Lock()
		got = append(got, err)
		mu.Unlock()
	}
	if err := src.Start(func(Frame) {}, onFault); err != nil {
		t.Fatalf("start: %v", err)
	}

	boom := errors.New("device unplugged")
	fake.LastCapture().InjectFault(boom)

	mu.Lock()
	n := len(got)
	mu.Unlock()
	if n != 1 || !errors.Is(got[0], boom) {
		t.Fatalf("fault not forwarded: %v", got)
	}

	src.Stop()
	fake.LastCapture().InjectFault(errors.New("late"))
	mu.Lock()
	after := len(got)
	mu.Unlock()
	if after != 1 {
		t.Fatalf("fault delivered after Stop: %d faults", after)
	}
}

type failingContext struct{}

func (failingContext) Devices() ([]DeviceInfo, error) { return nil, nil }
func (failingContext) Close()                         {}
func (failingContext) NewCapture(*DeviceInfo, CaptureConfig) (CaptureDevice, error) {
	return nil, errors.New("no such device")
}

func TestOpenDeviceUnavailable(t *testing.T) {
	_, err := Open(failingContext{}, nil, TargetRate, 8000, zerolog.Nop())
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("got %v, want ErrDeviceUnavailable", err)
	}
}

func TestLevelBounds(t *testing.T) {
	if got := RMS(nil); got != 0 {
		t.Fatalf("RMS(nil) = %v", got)
	}
	quiet := make([]int16, 160)
	for i := range quiet {
		quiet[i] = 100
	}
	loud := make([]int16, 160)
	for i := range loud {
		loud[i] = 20000
	}
	if RMS(quiet) >= RMS(loud) {
		t.Fatal("RMS not ordered by amplitude")
	}
	if lv := Level(RMS(loud)); lv <= 0 || lv > 1 {
		t.Fatalf("Level out of bounds: %v", lv)
	}
	if lv := Level(0); lv != 0 {
		t.Fatalf("Level(0) = %v", lv)
	}
}
