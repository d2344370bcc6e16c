package model

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// Fetch downloads, verifies and unpacks a model into modelsDir, then
// returns the installed path. Already-installed models are left alone.
func Fetch(modelsDir, name string, logger zerolog.Logger) (string, error) {
	entry, err := Lookup(name)
	if err != nil {
		return "", err
	}
	dest := Path(modelsDir, name)
	if Installed(modelsDir, name) {
		logger.Info().Str("model", name).Str("path", dest).Msg("model already installed")
		return dest, nil
	}
	if err := os.MkdirAll(modelsDir, 0755); err != nil {
		return "", fmt.Errorf("creating models directory: %w", err)
	}

	zipPath, err := download(modelsDir, entry)
	if err != nil {
		return "", err
	}
	defer os.Remove(zipPath)

	if err := verify(zipPath, entry.SHA256); err != nil {
		return "", err
	}
	if err := unpack(zipPath, dest); err != nil {
		return "", err
	}
	logger.Info().Str("model", name).Str("path", dest).Msg("model installed")
	return dest, nil
}

func download(dir string, entry Entry) (string, error) {
	tmp, err := os.CreateTemp(dir, ".model-fetch-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	resp, err := http.Get(entry.URL)
	if err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("download model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("download model: %s", resp.Status)
	}

	src := io.Reader(resp.Body)
	if resp.ContentLength > 0 {
		src = &progressReader{r: resp.Body, total: resp.ContentLength}
	}
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("write model archive: %w", err)
	}
	if resp.ContentLength > 0 {
		fmt.Fprintln(os.Stderr) // newline after progress
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", err
	}
	return tmpPath, nil
}

type progressReader struct {
	r     io.Reader
	total int64
	read  int64
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	pct := float64(p.read) / float64(p.total) * 100
	fmt.Fprintf(os.Stderr, "\r  %.0f%% (%d / %d MB)", pct, p.read/(1<<20), p.total/(1<<20))
	return n, err
}

func verify(path, expected string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return fmt.Errorf("hash model archive: %w", err)
	}
	actual := hex.EncodeToString(hasher.Sum(nil))
	if actual != expected {
		return fmt.Errorf("checksum mismatch: got %s, want %s", actual[:12], expected[:12])
	}
	return nil
}

// unpack extracts a zip into dest, stripping the single top-level
// directory most model archives wrap their contents in. Extraction
// goes to a staging directory first so a failed unpack leaves nothing
// behind.
func unpack(zipPath, dest string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return fmt.Errorf("open model archive: %w", err)
	}
	defer r.Close()

	staging := dest + ".partial"
	if err := os.RemoveAll(staging); err != nil {
		return err
	}
	if err := os.MkdirAll(staging, 0755); err != nil {
		return err
	}

	prefix := commonPrefix(r.File)
	for _, f := range r.File {
		rel := strings.TrimPrefix(f.Name, prefix)
		if rel == "" {
			continue
		}
		target := filepath.Join(staging, filepath.Clean(rel))
		if !strings.HasPrefix(target, staging+string(os.PathSeparator)) {
			return fmt.Errorf("archive entry escapes destination: %q", f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		}
		if err := extractFile(f, target); err != nil {
			return err
		}
	}

	if err := os.RemoveAll(dest); err != nil {
		return err
	}
	return os.Rename(staging, dest)
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// commonPrefix returns the shared "name/" directory all entries sit
// under, or "" when the archive has no single wrapper.
func commonPrefix(files []*zip.File) string {
	var prefix string
	for _, f := range files {
		i := strings.Index(f.Name, "/")
		if i < 0 {
			return ""
		}
		top := f.Name[:i+1]
		if prefix == "" {
			prefix = top
		} else if prefix != top {
			return ""
		}
	}
	return prefix
}
