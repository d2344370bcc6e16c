package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeRules(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "voxkey.rules")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRulesLiteralAndSed(t *testing.T) {
	path := writeRules(t, `
# literal, case-insensitive
pull request => PR
s/\bvox\s*key\b/VoxKey/gi
`)
	r, err := NewRules(path, 0)
	if err != nil {
		t.Fatalf("NewRules: %v", err)
	}
	if r.Len() != 2 {
		t.Fatalf("Len = %d", r.Len())
	}
	got, err := r.Transform("vox key Pull Request", Context{})
	if err != nil {
		t.Fatal(err)
	}
	if got != "VoxKey PR" {
		t.Fatalf("got %q", got)
	}
}

func TestRulesIterateUntilStable(t *testing.T) {
	path := writeRules(t, "a => b\nb => c\n")
	r, err := NewRules(path, 5)
	if err != nil {
		t.Fatal(err)
	}
	got, err := r.Transform("a", Context{})
	if err != nil {
		t.Fatal(err)
	}
	if got != "c" {
		t.Fatalf("got %q, want c", got)
	}
}

func TestRulesLoopLimitStopsGrowth(t *testing.T) {
	path := writeRules(t, "a => aa\n")
	r, err := NewRules(path, 3)
	if err != nil {
		t.Fatal(err)
	}
	got, err := r.Transform("a", Context{})
	if err != nil {
		t.Fatal(err)
	}
	// Doubles once per pass, three passes allowed.
	if got != strings.Repeat("a", 8) {
		t.Fatalf("got %d a's, want 8", len(got))
	}
}

func TestRulesFirstOccurrenceVsGlobal(t *testing.T) {
	path := writeRules(t, "s/x/y/\n")
	r, err := NewRules(path, 1)
	if err != nil {
		t.Fatal(err)
	}
	got, _ := r.Transform("x and x", Context{})
	if got != "y and x" {
		t.Fatalf("non-global rule replaced more than first: %q", got)
	}

	path = writeRules(t, "s/x/y/g\n")
	r, err = NewRules(path, 1)
	if err != nil {
		t.Fatal(err)
	}
	got, _ = r.Transform("x and x", Context{})
	if got != "y and y" {
		t.Fatalf("global rule: %q", got)
	}
}

func TestRulesSedCaseFlag(t *testing.T) {
	path := writeRules(t, "s/acme/Acme/\n")
	r, err := NewRules(path, 1)
	if err != nil {
		t.Fatal(err)
	}
	got, _ := r.Transform("ACME", Context{})
	if got != "ACME" {
		t.Fatalf("case-sensitive rule matched: %q", got)
	}

	path = writeRules(t, "s/acme/Acme/i\n")
	r, err = NewRules(path, 1)
	if err != nil {
		t.Fatal(err)
	}
	got, _ = r.Transform("ACME", Context{})
	if got != "Acme" {
		t.Fatalf("case-insensitive rule: %q", got)
	}
}

func TestRulesAlternateDelimiter(t *testing.T) {
	path := writeRules(t, "s|foo/bar|baz|\n")
	r, err := NewRules(path, 1)
	if err != nil {
		t.Fatal(err)
	}
	got, _ := r.Transform("foo/bar", Context{})
	if got != "baz" {
		t.Fatalf("got %q", got)
	}
}

func TestRulesMissingFileIsEmpty(t *testing.T) {
	r, err := NewRules(filepath.Join(t.TempDir(), "absent.rules"), 0)
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	got, _ := r.Transform("untouched", Context{})
	if got != "untouched" {
		t.Fatalf("got %q", got)
	}
}

func TestRulesParseErrors(t *testing.T) {
	for _, tt := range []struct{ name, line string }{
		{"unsupported format", "just some words"},
		{"bad flag", "s/a/b/q"},
		{"unterminated", "s/a/b"},
		{"empty literal source", "=> to"},
		{"bad regex", `s/(/x/`},
	} {
		t.Run(tt.name, func(t *testing.T) {
			path := writeRules(t, tt.line+"\n")
			if _, err := NewRules(path, 0); err == nil {
				t.Errorf("rule %q accepted", tt.line)
			}
		})
	}
}
