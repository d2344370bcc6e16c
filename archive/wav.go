package archive

import (
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WavEncoder wraps go-audio's wav encoder over an in-memory buffer.
type WavEncoder struct {
	buf *seekBuffer
	enc *wav.Encoder
}

func NewWav() (*WavEncoder, error) {
	buf := &seekBuffer{}
	enc := wav.NewEncoder(buf, sampleRate, bitsPerSample, channels, 1)
	return &WavEncoder{buf: buf, enc: enc}, nil
}

func (e *WavEncoder) EncodeBlock(block []int16) error {
	if len(block) == 0 {
		return nil
	}
	samples := make([]int, len(block))
	for i, s := range block {
		samples[i] = int(s)
	}
	ibuf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: bitsPerSample,
	}
	if err := e.enc.Write(ibuf); err != nil {
		return fmt.Errorf("writing wav block: %w", err)
	}
	return nil
}

func (e *WavEncoder) Close() error {
	return e.enc.Close()
}

func (e *WavEncoder) Bytes() []byte {
	return e.buf.data
}

// seekBuffer is the minimal io.WriteSeeker the wav encoder needs to
// patch chunk sizes on Close.
type seekBuffer struct {
	data []byte
	pos  int
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	if need := b.pos + len(p); need > len(b.data) {
		grown := make([]byte, need)
		copy(grown, b.data)
		b.data = grown
	}
	copy(b.data[b.pos:], p)
	b.pos += len(p)
	return len(p), nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var next int
	switch whence {
	case io.SeekStart:
		next = int(offset)
	case io.SeekCurrent:
		next = b.pos + int(offset)
	case io.SeekEnd:
		next = len(b.data) + int(offset)
	default:
		return 0, fmt.Errorf("seekBuffer: bad whence %d", whence)
	}
	if next < 0 {
		return 0, fmt.Errorf("seekBuffer: negative position")
	}
	b.pos = next
	return int64(next), nil
}
