package audio

import (
	"errors"
	"strings"
	"time"
)

const WAVHeaderSize = 44

// TargetRate is the sample rate the recognizer expects. Sources resample
// to this rate before delivering frames.
const TargetRate = 16000

var (
	ErrDeviceUnavailable = errors.New("audio: device unavailable")
	ErrAlreadyStarted    = errors.New("audio: capture already started")
)

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"sony wh-", "sony wf-",
	"jabra", "galaxy buds", "pixel buds", "powerbeats",
	"jbl ", "sennheiser momentum", "plantronics",
	"tozo", "anker soundcore", "skullcandy",
	"bluetooth", " bt ", " bt)", " bt]",
}

func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Frame is one fixed-size block of mono 16-bit samples at TargetRate.
// Frames are immutable once emitted; the sequence number is per capture
// run and the timestamp is monotonic.
type Frame struct {
	Seq     uint64
	Samples []int16
	At      time.Time
}

// Duration is the play time of the frame at TargetRate.
func (f Frame) Duration() time.Duration {
	return time.Duration(len(f.Samples)) * time.Second / TargetRate
}

type DataCallback func(data []byte, frameCount uint32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
}

// FaultNotifier is implemented by capture devices that can report
// mid-capture faults (device unplugged, backend stop).
type FaultNotifier interface {
	SetFaultCallback(fn func(error))
}
