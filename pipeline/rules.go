package pipeline

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

const defaultRuleLoopLimit = 30

// Rules applies user-defined replacements from a rules file. Two forms,
// one per line:
//
//	from => to            literal, case-insensitive, all occurrences
//	s/pattern/repl/flags  regex; flags: i (ignore case), g (global)
//
// Blank lines and #-comments are skipped. Rules run in file order,
// repeating until no rule changes the text or the loop limit is hit.
type Rules struct {
	rules     []rule
	loopLimit int
}

type rule interface {
	apply(input string) (string, bool)
}

// NewRules loads a rules file. An empty path or a missing file yields an
// engine with no rules, which passes text through untouched.
func NewRules(path string, loopLimit int) (*Rules, error) {
	if loopLimit <= 0 {
		loopLimit = defaultRuleLoopLimit
	}
	r := &Rules{loopLimit: loopLimit}

	if strings.TrimSpace(path) == "" {
		return r, nil
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return r, nil
		}
		return nil, fmt.Errorf("read rules file %q: %w", path, err)
	}

	for i, raw := range strings.Split(string(contents), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parsed, err := parseRule(line)
		if err != nil {
			return nil, fmt.Errorf("rules file %q line %d: %w", path, i+1, err)
		}
		r.rules = append(r.rules, parsed)
	}
	return r, nil
}

func (r *Rules) Len() int { return len(r.rules) }

func (r *Rules) Transform(text string, _ Context) (string, error) {
	if len(r.rules) == 0 {
		return text, nil
	}
	out := text
	for i := 0; i < r.loopLimit; i++ {
		changed := false
		for _, rl := range r.rules {
			next, c := rl.apply(out)
			if c {
				out = next
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return out, nil
}

func parseRule(line string) (rule, error) {
	if isSedRule(line) {
		return parseSedRule(line)
	}
	if strings.Contains(line, "=>") {
		return parseLiteralRule(line)
	}
	return nil, errors.New("unsupported rule format")
}

type literalRule struct {
	re   *regexp.Regexp
	repl string
}

func parseLiteralRule(line string) (rule, error) {
	parts := strings.SplitN(line, "=>", 2)
	from := strings.TrimSpace(parts[0])
	to := strings.TrimSpace(parts[1])
	if from == "" {
		return nil, errors.New("literal rule has empty source")
	}
	re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(from))
	if err != nil {
		return nil, err
	}
	return literalRule{re: re, repl: to}, nil
}

func (r literalRule) apply(input string) (string, bool) {
	out := r.re.ReplaceAllLiteralString(input, r.repl)
	return out, out != input
}

type sedRule struct {
	re     *regexp.Regexp
	repl   string
	global bool
}

func isSedRule(line string) bool {
	if len(line) < 2 || line[0] != 's' {
		return false
	}
	d := line[1]
	return !(d >= 'a' && d <= 'z' || d >= 'A' && d <= 'Z' || d >= '0' && d <= '9' || d == ' ' || d == '\t')
}

func parseSedRule(line string) (rule, error) {
	delim := line[1]
	pattern, pos, err := scanDelimited(line, 2, delim)
	if err != nil {
		return nil, fmt.Errorf("pattern: %w", err)
	}
	repl, pos, err := scanDelimited(line, pos, delim)
	if err != nil {
		return nil, fmt.Errorf("replacement: %w", err)
	}

	var ignoreCase, global bool
	for _, f := range strings.TrimSpace(line[pos:]) {
		switch f {
		case 'i':
			ignoreCase = true
		case 'g':
			global = true
		default:
			return nil, fmt.Errorf("unsupported flag %q", f)
		}
	}
	if ignoreCase {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return sedRule{re: re, repl: repl, global: global}, nil
}

func (r sedRule) apply(input string) (string, bool) {
	if r.global {
		out := r.re.ReplaceAllString(input, r.repl)
		return out, out != input
	}
	loc := r.re.FindStringIndex(input)
	if loc == nil {
		return input, false
	}
	out := input[:loc[0]] + r.re.ReplaceAllString(input[loc[0]:loc[1]], r.repl) + input[loc[1]:]
	return out, out != input
}

// scanDelimited reads up to the next unescaped delimiter, keeping
// backslash escapes for the regex compiler.
func scanDelimited(line string, start int, delim byte) (string, int, error) {
	if start >= len(line) {
		return "", 0, errors.New("unexpected end of rule")
	}
	var b strings.Builder
	escaped := false
	for i := start; i < len(line); i++ {
		c := line[i]
		if escaped {
			b.WriteByte(c)
			escaped = false
			continue
		}
		if c == '\\' {
			escaped = true
			b.WriteByte(c)
			continue
		}
		if c == delim {
			return b.String(), i + 1, nil
		}
		b.WriteByte(c)
	}
	return "", 0, errors.New("unterminated rule")
}
