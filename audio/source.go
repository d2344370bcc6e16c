package audio

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Source layers frame assembly on a platform capture device: the raw
// byte callback stream is converted to mono int16 samples, resampled to
// TargetRate when the device rate differs, and delivered as fixed-size
// immutable Frames on the capture goroutine.
type Source struct {
	log       zerolog.Logger
	capture   CaptureDevice
	device    *DeviceInfo
	devRate   int
	frameSize int

	runMu   sync.RWMutex
	started bool

	onFrame func(Frame)
	onFault func(error)

	seq      uint64
	pending  []byte
	frameBuf []int16
	res      *resampler
	startAt  time.Time
}

// Open creates the capture handle for the given device (nil for the
// platform default). The device is asked for devRate mono 16-bit audio;
// frames handed to Start's callback always hold frameSize samples at
// TargetRate.
func Open(ctx Context, device *DeviceInfo, devRate, frameSize int, logger zerolog.Logger) (*Source, error) {
	capture, err := ctx.NewCapture(device, CaptureConfig{
		SampleRate: uint32(devRate),
		Channels:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	s := &Source{
		log:       logger,
		capture:   capture,
		device:    device,
		devRate:   devRate,
		frameSize: frameSize,
	}
	return s, nil
}

func (s *Source) DeviceName() string {
	if s.device != nil {
		return s.device.Name
	}
	return "system default"
}

// Start begins capture and invokes onFrame for every assembled frame.
// onFault, if non-nil, receives mid-capture device faults from backends
// that can report them.
func (s *Source) Start(onFrame func(Frame), onFault func(error)) error {
	s.runMu.Lock()
	if s.started {
		s.runMu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.onFrame = onFrame
	s.onFault = onFault
	s.seq = 0
	s.pending = s.pending[:0]
	s.frameBuf = s.frameBuf[:0]
	s.res = newResampler(s.devRate, TargetRate)
	s.startAt = time.Now()
	s.runMu.Unlock()

	s.capture.SetCallback(s.consume)
	if fn, ok := s.capture.(FaultNotifier); ok {
		fn.SetFaultCallback(s.fault)
	}

	if err := s.capture.Start(); err != nil {
		s.capture.ClearCallback()
		s.runMu.Lock()
		s.started = false
		s.runMu.Unlock()
		return fmt.Errorf("starting capture: %w", err)
	}
	return nil
}

// Stop halts capture. It is idempotent, safe to call before Start, and
// does not return until no frame delivery is in flight.
func (s *Source) Stop() {
	s.runMu.RLock()
	started := s.started
	s.runMu.RUnlock()
	if !started {
		return
	}

	s.capture.ClearCallback()
	s.capture.Stop()

	// Taking the write lock waits out any delivery still holding the
	// read side, so callers never see onFrame after Stop returns.
	s.runMu.Lock()
	s.started = false
	s.onFrame = nil
	s.onFault = nil
	s.pending = s.pending[:0]
	s.frameBuf = s.frameBuf[:0]
	s.runMu.Unlock()
}

func (s *Source) Close() {
	s.Stop()
	s.capture.Close()
}

// consume runs on the backend's single capture goroutine; the assembly
// buffers are only ever touched here. The read lock coordinates with
// Stop, not with other consumers.
func (s *Source) consume(data []byte, _ uint32) {
	s.runMu.RLock()
	defer s.runMu.RUnlock()
	if !s.started || s.onFrame == nil {
		return
	}

	s.pending = append(s.pending, data...)
	n := len(s.pending) / 2
	if n == 0 {
		return
	}
	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(s.pending[i*2:]))
	}
	s.pending = s.pending[n*2:]

	s.frameBuf = append(s.frameBuf, s.res.process(samples)...)
	for len(s.frameBuf) >= s.frameSize {
		out := make([]int16, s.frameSize)
		copy(out, s.frameBuf[:s.frameSize])
		s.frameBuf = s.frameBuf[s.frameSize:]
		s.onFrame(Frame{Seq: s.seq, Samples: out, At: time.Now()})
		s.seq++
	}
}

func (s *Source) fault(err error) {
	s.runMu.RLock()
	defer s.runMu.RUnlock()
	if !s.started || s.onFault == nil {
		return
	}
	s.log.Error().Err(err).Str("device", s.DeviceName()).Msg("capture fault")
	s.onFault(err)
}
