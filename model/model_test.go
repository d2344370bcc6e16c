package model

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"vosk-small-en", false},
		{"vosk-en", false},
		{"whisper-large", true},
		{"", true},
	}

	for _, tt := range tests {
		e, err := Lookup(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("Lookup(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && e.URL == "" {
			t.Errorf("Lookup(%q) returned entry with empty URL", tt.name)
		}
	}
}

func TestKnownSorted(t *testing.T) {
	names := Known()
	if len(names) == 0 {
		t.Fatal("empty manifest")
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Fatalf("Known() not sorted: %v", names)
		}
	}
}

func TestInstalled(t *testing.T) {
	dir := t.TempDir()
	if Installed(dir, "m") {
		t.Error("missing model reported installed")
	}

	// empty model dir still counts as not installed
	if err := os.MkdirAll(Path(dir, "m"), 0755); err != nil {
		t.Fatal(err)
	}
	if Installed(dir, "m") {
		t.Error("empty model dir reported installed")
	}

	if err := os.WriteFile(filepath.Join(Path(dir, "m"), "am"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if !Installed(dir, "m") {
		t.Error("populated model dir reported not installed")
	}
}

func TestVerify(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "archive.zip")
	content := []byte("model bytes")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}

	sum := sha256.Sum256(content)
	if err := verify(path, hex.EncodeToString(sum[:])); err != nil {
		t.Errorf("verify with correct hash: %v", err)
	}
	bad := hex.EncodeToString(make([]byte, 32))
	if err := verify(path, bad); err == nil {
		t.Error("verify accepted wrong hash")
	}
}

func writeTestZip(t *testing.T, dir string, entries map[string]string) string {
	t.Helper()
	path := filepath.Join(dir, "model.zip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for name, body := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestUnpackStripsWrapperDir(t *testing.T) {
	dir := t.TempDir()
	zipPath := writeTestZip(t, dir, map[string]string{
		"vosk-model-small-en-us-0.15/am/final.mdl":    "acoustic",
		"vosk-model-small-en-us-0.15/conf/model.conf": "config",
	})

	dest := filepath.Join(dir, "vosk-small-en")
	if err := unpack(zipPath, dest); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(filepath.Join(dest, "am", "final.mdl"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "acoustic" {
		t.Errorf("unpacked content = %q", got)
	}
	if _, err := os.Stat(dest + ".partial"); !os.IsNotExist(err) {
		t.Error("staging directory left behind")
	}
}

func TestUnpackRejectsEscapingEntry(t *testing.T) {
	dir := t.TempDir()
	zipPath := writeTestZip(t, dir, map[string]string{
		"model/../../evil": "payload",
	})
	if err := unpack(zipPath, filepath.Join(dir, "out")); err == nil {
		t.Fatal("expected error for path traversal entry")
	}
}

func TestUnpackNoWrapperDir(t *testing.T) {
	dir := t.TempDir()
	zipPath := writeTestZip(t, dir, map[string]string{
		"first/final.mdl": "a",
		"second/conf":     "b",
	})

	dest := filepath.Join(dir, "out")
	if err := unpack(zipPath, dest); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dest, "first", "final.mdl")); err != nil {
		t.Errorf("top-level dirs should survive when there is no single wrapper: %v", err)
	}
}
