// Package archive captures the raw audio of each utterance and writes
// one encoded clip per completed session.
package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"voxkey/audio"
)

// Archiver accumulates the frames of the session in progress. Tap runs
// on the capture goroutine; everything else runs on the observer
// goroutine, so the buffer is mutex-guarded.
type Archiver struct {
	log    zerolog.Logger
	dir    string
	format string

	mu      sync.Mutex
	session uint64
	samples []int16
}

func New(dir, format string, logger zerolog.Logger) (*Archiver, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}
	if _, err := NewEncoder(format); err != nil {
		return nil, err
	}
	return &Archiver{log: logger, dir: dir, format: format}, nil
}

// Tap receives every captured frame. Frames are immutable, so holding
// the sample slices is safe.
func (a *Archiver) Tap(f audio.Frame) {
	a.mu.Lock()
	a.samples = append(a.samples, f.Samples...)
	a.mu.Unlock()
}

// Begin marks a new session; anything buffered from the previous one
// is discarded.
func (a *Archiver) Begin(session uint64) {
	a.mu.Lock()
	a.session = session
	a.samples = a.samples[:0]
	a.mu.Unlock()
}

// Discard drops the buffered audio (cancelled or failed sessions).
func (a *Archiver) Discard() {
	a.mu.Lock()
	a.samples = a.samples[:0]
	a.mu.Unlock()
}

// Commit encodes the buffered audio to a clip file and returns its
// path. Empty sessions produce no file.
func (a *Archiver) Commit(session uint64, startedAt time.Time) (string, error) {
	a.mu.Lock()
	samples := a.samples
	a.samples = nil
	a.mu.Unlock()

	if len(samples) == 0 {
		return "", nil
	}

	enc, err := NewEncoder(a.format)
	if err != nil {
		return "", err
	}
	for off := 0; off < len(samples); off += blockSize {
		end := min(off+blockSize, len(samples))
		if err := enc.EncodeBlock(samples[off:end]); err != nil {
			return "", err
		}
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("closing encoder: %w", err)
	}

	name := fmt.Sprintf("%s-%04d.%s", startedAt.Format("20060102-150405"), session, Ext(a.format))
	path := filepath.Join(a.dir, name)
	if err := os.WriteFile(path, enc.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("writing clip: %w", err)
	}
	a.log.Debug().Str("path", path).Int("samples", len(samples)).Msg("archived utterance")
	return path, nil
}
