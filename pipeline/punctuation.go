package pipeline

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

var punctuationMarkers = map[string]string{
	"period":            ".",
	"comma":             ",",
	"question mark":     "?",
	"exclamation point": "!",
	"exclamation mark":  "!",
	"colon":             ":",
	"semicolon":         ";",
	"dash":              "-",
	"hyphen":            "-",
	"apostrophe":        "'",
	"open quote":        `"`,
	"close quote":       `"`,
	"quote":             `"`,
	"open parenthesis":  "(",
	"close parenthesis": ")",
	"new line":          "\n",
	"new paragraph":     "\n\n",
}

var (
	spaceBeforePunct = regexp.MustCompile(`\s+([.,!?;:])`)
	missingSpace     = regexp.MustCompile(`([.,!?;:])([^\s.,!?;:])`)
	spacedNewline    = regexp.MustCompile(`[ \t]*\n[ \t]*`)
)

type punctMarker struct {
	re    *regexp.Regexp
	glyph string
}

// Punctuation turns spoken punctuation into glyphs, tidies the spacing
// around them, capitalizes sentence starts, and closes the utterance
// with a period when it ends mid-word.
type Punctuation struct {
	markers []punctMarker
}

func NewPunctuation() *Punctuation {
	phrases := make([]string, 0, len(punctuationMarkers))
	for phrase := range punctuationMarkers {
		phrases = append(phrases, phrase)
	}
	// Longest phrase first so "open quote" wins over "quote".
	sort.Slice(phrases, func(i, j int) bool {
		if len(phrases[i]) != len(phrases[j]) {
			return len(phrases[i]) > len(phrases[j])
		}
		return phrases[i] < phrases[j]
	})

	p := &Punctuation{}
	for _, phrase := range phrases {
		p.markers = append(p.markers, punctMarker{
			re:    regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(phrase) + `\b`),
			glyph: punctuationMarkers[phrase],
		})
	}
	return p
}

func (p *Punctuation) Transform(text string, _ Context) (string, error) {
	out := strings.ToLower(text)

	for _, m := range p.markers {
		out = m.re.ReplaceAllString(out, m.glyph)
	}

	out = spaceBeforePunct.ReplaceAllString(out, "$1")
	out = missingSpace.ReplaceAllString(out, "$1 $2")
	out = spacedNewline.ReplaceAllString(out, "\n")
	out = strings.TrimSpace(out)

	out = capitalizeSentences(out)

	if r := lastRune(out); unicode.IsLetter(r) || unicode.IsDigit(r) {
		out += "."
	}
	return out, nil
}

func capitalizeSentences(text string) string {
	runes := []rune(text)
	capNext := true
	for i, r := range runes {
		switch {
		case r == '.' || r == '!' || r == '?' || r == '\n':
			capNext = true
		case unicode.IsSpace(r):
			// keep pending capitalization across whitespace
		case capNext:
			runes[i] = unicode.ToUpper(r)
			capNext = false
		default:
		}
	}
	return string(runes)
}

func lastRune(s string) rune {
	var last rune
	for _, r := range s {
		last = r
	}
	return last
}
