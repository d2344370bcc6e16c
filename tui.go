package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"voxkey/audio"
	"voxkey/control"
)

// TUI message types, sent from the hub observer goroutine.
type (
	tuiStateMsg struct {
		state   control.State
		session uint64
	}
	tuiMeterMsg     struct{ rms float64 }
	tuiPartialMsg   struct{ text string }
	tuiUtteranceMsg struct {
		text     string
		duration time.Duration
		handled  bool
	}
	tuiNoteMsg struct {
		kind    control.NoteKind
		message string
	}
	tuiTickMsg time.Time
)

var (
	styleTitle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("231"))
	styleDim     = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	styleIdle    = lipgloss.NewStyle().Foreground(lipgloss.Color("249"))
	styleListen  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	styleBusy    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	styleError   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	styleMeter   = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	stylePartial = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("245"))
	styleOutput  = lipgloss.NewStyle().Foreground(lipgloss.Color("231"))
	styleWarn    = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
)

const meterWidth = 30

type tuiModel struct {
	state   control.State
	session uint64
	since   time.Time

	level float64
	peak  float64

	partial  string
	last     string
	lastDur  time.Duration
	handled  bool
	faultMsg string
	warnMsg  string

	width int
}

func newTUIProgram() *tea.Program {
	return tea.NewProgram(tuiModel{state: control.StateIdle}, tea.WithAltScreen())
}

func tuiTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tuiTickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}

	case tuiStateMsg:
		if msg.state == control.StateListening && m.state != control.StateListening {
			m.since = time.Now()
			m.peak = 0
			m.partial = ""
			m.faultMsg = ""
			m.warnMsg = ""
		}
		if msg.state == control.StateIdle {
			m.level = 0
			m.warnMsg = ""
		}
		m.state = msg.state
		m.session = msg.session

	case tuiMeterMsg:
		m.level = audio.Level(msg.rms)
		if m.level > m.peak {
			m.peak = m.level
		}

	case tuiPartialMsg:
		m.partial = msg.text

	case tuiUtteranceMsg:
		m.last = msg.text
		m.lastDur = msg.duration
		m.handled = msg.handled
		m.partial = ""

	case tuiNoteMsg:
		switch msg.kind {
		case control.NoteSilenceWarning:
			m.warnMsg = msg.message
		case control.NotePartialTranscript:
			m.partial = msg.message
		default:
			m.faultMsg = fmt.Sprintf("%s: %s", msg.kind, msg.message)
		}

	case tuiTickMsg:
		// decay so the meter falls between frames
		m.level *= 0.85
		return m, tuiTick()
	}
	return m, nil
}

func (m tuiModel) stateLine() string {
	switch m.state {
	case control.StateListening:
		elapsed := time.Since(m.since).Seconds()
		return styleListen.Render(fmt.Sprintf("● listening  %.1fs", elapsed))
	case control.StateProcessing:
		return styleBusy.Render("◌ processing")
	case control.StateTyping:
		return styleBusy.Render("◌ typing")
	case control.StateError:
		return styleError.Render("✗ error (press hotkey to retry)")
	default:
		return styleIdle.Render("○ idle")
	}
}

func (m tuiModel) meterLine() string {
	filled := int(m.level * meterWidth)
	if filled > meterWidth {
		filled = meterWidth
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", meterWidth-filled)
	peakMark := ""
	if m.peak > 0 {
		peakMark = fmt.Sprintf("  peak %2.0f%%", m.peak*100)
	}
	return styleMeter.Render(bar) + styleDim.Render(peakMark)
}

func (m tuiModel) View() string {
	var b strings.Builder

	b.WriteString(styleTitle.Render("voxkey"))
	b.WriteString(styleDim.Render("  offline dictation"))
	b.WriteString("\n\n")

	b.WriteString("  " + m.stateLine() + "\n")
	if m.state == control.StateListening {
		b.WriteString("  " + m.meterLine() + "\n")
	}
	if m.warnMsg != "" {
		b.WriteString("  " + styleWarn.Render("⚠ "+m.warnMsg) + "\n")
	}
	b.WriteString("\n")

	if m.partial != "" {
		b.WriteString("  " + stylePartial.Render(wrapText(m.partial, m.contentWidth())) + "\n\n")
	}
	if m.last != "" {
		label := fmt.Sprintf("last (%.1fs)", m.lastDur.Seconds())
		if m.handled {
			label += ", command"
		}
		b.WriteString("  " + styleDim.Render(label) + "\n")
		b.WriteString("  " + styleOutput.Render(wrapText(m.last, m.contentWidth())) + "\n\n")
	}
	if m.faultMsg != "" {
		b.WriteString("  " + styleError.Render(wrapText(m.faultMsg, m.contentWidth())) + "\n\n")
	}

	b.WriteString(styleDim.Render("  q quit"))
	return b.String()
}

func (m tuiModel) contentWidth() int {
	if m.width <= 4 {
		return 76
	}
	return m.width - 4
}

func wrapText(s string, width int) string {
	if width < 10 {
		width = 10
	}
	words := strings.Fields(s)
	if len(words) == 0 {
		return s
	}
	var lines []string
	line := words[0]
	for _, w := range words[1:] {
		if len(line)+1+len(w) > width {
			lines = append(lines, line)
			line = w
			continue
		}
		line += " " + w
	}
	lines = append(lines, line)
	return strings.Join(lines, "\n  ")
}
