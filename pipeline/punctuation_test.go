package pipeline

import "testing"

func TestPunctuation(t *testing.T) {
	p := NewPunctuation()
	for _, tt := range []struct {
		name, in, want string
	}{
		{"terminal period", "hello world", "Hello world."},
		{"spoken comma and question", "hello comma world question mark", "Hello, world?"},
		{"sentence capitalization", "first period second", "First. Second."},
		{"exclamation point", "watch out exclamation point", "Watch out!"},
		{"exclamation mark", "watch out exclamation mark", "Watch out!"},
		{"colon and semicolon", "note colon one semicolon two", "Note: one; two."},
		{"new paragraph", "one new paragraph two", "One\n\nTwo."},
		{"new line", "one new line two", "One\nTwo."},
		{"open close quote", "open quote hi close quote", `" hi "`},
		{"already uppercase input", "HELLO WORLD PERIOD", "Hello world."},
		{"no double period", "done period", "Done."},
		{"ends in digit", "the answer is 42", "The answer is 42."},
		{"empty", "", ""},
	} {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Transform(tt.in, Context{})
			if err != nil {
				t.Fatalf("transform: %v", err)
			}
			if got != tt.want {
				t.Errorf("Transform(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestPunctuationMarkerInsideWordUntouched(t *testing.T) {
	p := NewPunctuation()
	got, err := p.Transform("periodic table", Context{})
	if err != nil {
		t.Fatal(err)
	}
	if got != "Periodic table." {
		t.Errorf("got %q", got)
	}
}
