package ui

import (
	"errors"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// ErrPromptInterrupted is returned when the operator presses Ctrl+C or Esc at a prompt.
var ErrPromptInterrupted = errors.New("prompt interrupted")

// promptModel reads one line of input in raw mode.
type promptModel struct {
	message string
	input   []rune

	submitted bool
	aborted   bool
}

func newPromptModel(message string) promptModel {
	return promptModel{message: message}
}

func (m promptModel) Init() tea.Cmd {
	return nil
}

func (m promptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.Type {
	case tea.KeyCtrlC, tea.KeyEsc, tea.KeyCtrlD:
		m.aborted = true
		return m, tea.Quit
	case tea.KeyEnter, tea.KeyCtrlJ:
		m.submitted = true
		return m, tea.Quit
	case tea.KeyBackspace, tea.KeyCtrlH:
		if len(m.input) > 0 {
			m.input = m.input[:len(m.input)-1]
		}
	case tea.KeyCtrlU:
		m.input = nil
	case tea.KeySpace:
		m.input = append(m.input, ' ')
	case tea.KeyRunes:
		m.input = append(m.input, key.Runes...)
	}
	return m, nil
}

func (m promptModel) View() string {
	cursor := keyStyle.Render("_")
	if m.submitted || m.aborted {
		cursor = ""
	}
	return infoStyle.Render(m.message) + string(m.input) + cursor + "\n"
}

// Value is the trimmed answer.
func (m promptModel) Value() string {
	return strings.TrimSpace(string(m.input))
}
