// Package model fetches and unpacks recognizer model archives.
package model

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Entry describes one known model archive.
type Entry struct {
	Name   string
	URL    string
	SHA256 string
	// Size is informational only, shown before downloading.
	Size int64
}

// manifest lists the models the fetcher knows how to install. Models
// are opaque to everything downstream; the recognizer just gets the
// unpacked directory path.
var manifest = map[string]Entry{
	"vosk-small-en": {
		Name:   "vosk-small-en",
		URL:    "https://alphacephei.com/vosk/models/vosk-model-small-en-us-0.15.zip",
		SHA256: "30f26242c4eb449f948e42cb302dd7a686cb29a3423a8367f99ff41780942498",
		Size:   40960000,
	},
	"vosk-en": {
		Name:   "vosk-en",
		URL:    "https://alphacephei.com/vosk/models/vosk-model-en-us-0.22.zip",
		SHA256: "47f8c31f6a4c1e3db1547a1412505b66b2a9b1dfba7291ab1c0bb58c2cd5e3a7",
		Size:   1879048192,
	},
	"vosk-small-de": {
		Name:   "vosk-small-de",
		URL:    "https://alphacephei.com/vosk/models/vosk-model-small-de-0.15.zip",
		SHA256: "2e68fc1246d16a611503b37b0456861d1f52f2a1d0ed3da1bfb29d1f23a9bd1b",
		Size:   47185920,
	},
}

// Known returns the manifest names, sorted for display.
func Known() []string {
	names := make([]string, 0, len(manifest))
	for name := range manifest {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the manifest entry for a model name.
func Lookup(name string) (Entry, error) {
	e, ok := manifest[name]
	if !ok {
		return Entry{}, fmt.Errorf("unknown model %q (known: %v)", name, Known())
	}
	return e, nil
}

// Path returns where a named model lives under the models directory.
func Path(modelsDir, name string) string {
	return filepath.Join(modelsDir, name)
}

// Installed reports whether the model directory exists and is non-empty.
func Installed(modelsDir, name string) bool {
	entries, err := os.ReadDir(Path(modelsDir, name))
	return err == nil && len(entries) > 0
}
