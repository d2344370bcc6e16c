package pipeline

import (
	"regexp"
	"sort"
)

var emojiPhrases = map[string]string{
	"smiley face":   "\U0001F60A",
	"happy face":    "\U0001F60A",
	"sad face":      "\U0001F622",
	"crying face":   "\U0001F62D",
	"laughing face": "\U0001F602",
	"heart":         "❤️",
	"thumbs up":     "\U0001F44D",
	"thumbs down":   "\U0001F44E",
	"fire":          "\U0001F525",
	"star":          "⭐",
	"check mark":    "✓",
	"warning":       "⚠️",
	"rocket":        "\U0001F680",
	"party popper":  "\U0001F389",
}

type emojiRule struct {
	re    *regexp.Regexp
	emoji string
}

// Emoji replaces spoken phrases with emoji. Matching is word-bounded
// and case-insensitive; longer phrases win over their substrings.
type Emoji struct {
	rules []emojiRule
}

func NewEmoji() *Emoji {
	phrases := make([]string, 0, len(emojiPhrases))
	for phrase := range emojiPhrases {
		phrases = append(phrases, phrase)
	}
	sort.Slice(phrases, func(i, j int) bool {
		if len(phrases[i]) != len(phrases[j]) {
			return len(phrases[i]) > len(phrases[j])
		}
		return phrases[i] < phrases[j]
	})

	e := &Emoji{}
	for _, phrase := range phrases {
		e.rules = append(e.rules, emojiRule{
			re:    regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(phrase) + `\b`),
			emoji: emojiPhrases[phrase],
		})
	}
	return e
}

func (e *Emoji) Transform(text string, _ Context) (string, error) {
	out := text
	for _, r := range e.rules {
		out = r.re.ReplaceAllString(out, r.emoji)
	}
	return out, nil
}
