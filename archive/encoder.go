package archive

import (
	"errors"
	"fmt"
)

const (
	sampleRate    = 16000
	channels      = 1
	bitsPerSample = 16
	blockSize     = 4096
)

var ErrUnknownFormat = errors.New("archive: unknown format")

// Encoder turns mono 16 kHz samples into one encoded clip. EncodeBlock
// may be called repeatedly; Bytes is valid after Close.
type Encoder interface {
	EncodeBlock(block []int16) error
	Close() error
	Bytes() []byte
}

// NewEncoder selects an encoder by config format name.
func NewEncoder(format string) (Encoder, error) {
	switch format {
	case "flac":
		return NewFlac()
	case "wav":
		return NewWav()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// Ext is the file extension for a format, without the dot.
func Ext(format string) string { return format }
