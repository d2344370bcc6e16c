package pipeline

import "strings"

// Controls is the narrow port command stages drive. The controller
// supplies an implementation wired to the typist and its own mode state.
type Controls interface {
	// PressEnter emits a single Enter keystroke.
	PressEnter() error
	// DeleteLast erases the previously typed utterance.
	DeleteLast() error
	// StopContinuous leaves continuous mode after the current utterance.
	StopContinuous()
}

type commandAction func(Controls) error

var builtinCommands = map[string]commandAction{
	"new line":    func(c Controls) error { return c.PressEnter() },
	"delete that": func(c Controls) error { return c.DeleteLast() },
	"stop listening": func(c Controls) error {
		c.StopContinuous()
		return nil
	},
}

// Commands consumes exact spoken commands instead of typing them.
type Commands struct {
	controls Controls
}

func NewCommands(controls Controls) *Commands {
	return &Commands{controls: controls}
}

func normalizeCommand(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

func (c *Commands) Matches(text string) bool {
	_, ok := builtinCommands[normalizeCommand(text)]
	return ok
}

func (c *Commands) Execute(text string, _ Context) (bool, error) {
	action, ok := builtinCommands[normalizeCommand(text)]
	if !ok {
		return false, nil
	}
	if err := action(c.controls); err != nil {
		return false, err
	}
	return true, nil
}
