package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/script-bridge/bridge"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

const historyLimit = 20

type replEntry struct {
	input  string
	output string
	failed bool
}

type replModel struct {
	err        error
	ctx        *bridge.Context
	engineName string
	input      textinput.Model
	history    []replEntry
}

func newReplModel(engineName string) *replModel {
	ti := textinput.New()
	ti.Prompt = engineName + "> "
	ti.Width = 72
	ti.Focus()
	return &replModel{
		engineName: engineName,
		input:      ti,
	}
}

type startedMsg struct {
	err error
	ctx *bridge.Context
}

type evalResultMsg struct {
	input  string
	output string
	failed bool
}

func (m *replModel) Init() tea.Cmd {
	return m.start
}

func (m *replModel) start() tea.Msg {
	eng, err := newEngine(m.engineName)
	if err != nil {
		return startedMsg{err: err}
	}
	return startedMsg{ctx: bridge.New(eng)}
}

func (m *replModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "ctrl+d":
			if m.ctx != nil {
				m.ctx.Close()
			}
			return m, tea.Quit

		case "enter":
			src := strings.TrimSpace(m.input.Value())
			if src == "" || m.ctx == nil {
				return m, nil
			}
			m.input.Reset()
			return m, m.evaluate(src)
		}

	case startedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.ctx = msg.ctx

	case evalResultMsg:
		m.history = append(m.history, replEntry{
			input:  msg.input,
			output: msg.output,
			failed: msg.failed,
		})
		if len(m.history) > historyLimit {
			m.history = m.history[len(m.history)-historyLimit:]
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *replModel) evaluate(src string) tea.Cmd {
	return func() tea.Msg {
		result, err := bridge.Evaluate[any](m.ctx, src)
		if err != nil {
			return evalResultMsg{input: src, output: err.Error(), failed: true}
		}
		if err := m.ctx.DrainPendingAsyncQueue(); err != nil {
			return evalResultMsg{input: src, output: err.Error(), failed: true}
		}
		return evalResultMsg{input: src, output: formatResult(m.ctx, result)}
	}
}

func (m *replModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress ctrl+c to quit.", m.err))
	}
	if m.ctx == nil {
		return "Starting engine..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Script Bridge"))
	b.WriteString(" ")
	b.WriteString(m.engineName)
	b.WriteString("\n\n")

	for _, e := range m.history {
		b.WriteString(promptStyle.Render(m.engineName + "> "))
		b.WriteString(e.input)
		b.WriteString("\n")
		if e.output != "" {
			if e.failed {
				b.WriteString(errorStyle.Render(e.output))
			} else {
				b.WriteString(resultStyle.Render(e.output))
			}
			b.WriteString("\n")
		}
	}

	b.WriteString(m.input.View())
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render("enter evaluate • ctrl+c quit"))
	return b.String()
}

func runInteractive(engineName string) error {
	p := tea.NewProgram(newReplModel(engineName), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
