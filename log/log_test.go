package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestResolveExplicit(t *testing.T) {
	got, err := Resolve("/tmp/my.log")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/my.log" {
		t.Errorf("got %q, want /tmp/my.log", got)
	}
}

func TestResolveRelative(t *testing.T) {
	got, err := Resolve("logs/out.log")
	if err != nil {
		t.Fatal(err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(wd, "logs", "out.log")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestResolveEnv(t *testing.T) {
	t.Setenv("VOXKEY_LOG_PATH", "/tmp/voxkey-env.log")
	got, err := Resolve("")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/voxkey-env.log" {
		t.Errorf("got %q, want /tmp/voxkey-env.log", got)
	}
}

func TestResolveDefault(t *testing.T) {
	t.Setenv("VOXKEY_LOG_PATH", "")
	got, err := Resolve("")
	if err != nil {
		t.Fatal(err)
	}
	if got == "" {
		t.Error("expected non-empty default path")
	}
	if filepath.Base(got) != fileName {
		t.Errorf("expected default file name %q, got %q", fileName, got)
	}
}

func TestOpenWritesLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "voxkey.log")

	logger, closer, err := Open(path, "debug")
	if err != nil {
		t.Fatal(err)
	}
	logger.Info().Str("comp", "test").Msg("hello from test")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	if !strings.Contains(out, "hello from test") {
		t.Errorf("log file missing message, got: %q", out)
	}
	if !strings.Contains(out, "comp=test") {
		t.Errorf("log file missing field, got: %q", out)
	}
}

func TestOpenLevelFilters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voxkey.log")

	logger, closer, err := Open(path, "warn")
	if err != nil {
		t.Fatal(err)
	}
	logger.Info().Msg("quiet info")
	logger.Warn().Msg("loud warn")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	if strings.Contains(out, "quiet info") {
		t.Errorf("info line should be filtered at warn level, got: %q", out)
	}
	if !strings.Contains(out, "loud warn") {
		t.Errorf("warn line missing, got: %q", out)
	}
}

func TestOpenBadLevel(t *testing.T) {
	_, _, err := Open(filepath.Join(t.TempDir(), "voxkey.log"), "loud")
	if err == nil {
		t.Fatal("expected error for bad level")
	}
}
