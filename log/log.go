package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

const fileName = "voxkey.log"

// Resolve picks the log file path: explicit path first, then the
// VOXKEY_LOG_PATH environment variable, then the platform default
// directory.
func Resolve(path string) (string, error) {
	if path == "" {
		path = os.Getenv("VOXKEY_LOG_PATH")
	}
	if path != "" {
		if !filepath.IsAbs(path) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			path = filepath.Join(wd, path)
		}
		return path, nil
	}

	dir, err := getDefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

// Open creates the log file and returns a logger writing
// console-formatted lines to it. The caller owns the closer.
func Open(path, level string) (zerolog.Logger, io.Closer, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("parsing log level: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return zerolog.Nop(), nil, err
	}

	cw := zerolog.ConsoleWriter{
		Out:        f,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	logger := zerolog.New(cw).Level(lvl).With().Timestamp().Int("pid", os.Getpid()).Logger()
	return logger, f, nil
}
