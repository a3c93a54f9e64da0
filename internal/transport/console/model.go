package console

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575"))

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4"))
)

// chrome is the number of rows used by the header and the input line.
const chrome = 4

type Model struct {
	Title    string
	Status   string
	Log      []string
	Input    textinput.Model
	Viewport viewport.Model
	Busy     bool
	Quitting bool
	Ready    bool

	ctx     context.Context
	session *Session
}

// execMsg carries the result of one executed line.
type execMsg struct {
	replies []string
	quit    bool
}

func NewModel(ctx context.Context, title string, s *Session) Model {
	in := textinput.New()
	in.Placeholder = "/start"
	in.Prompt = promptStyle.Render("> ")
	in.Focus()

	return Model{
		Title:   title,
		Status:  "Ready",
		Input:   in,
		ctx:     ctx,
		session: s,
	}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.Quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			line := strings.TrimSpace(m.Input.Value())
			m.Input.Reset()
			if line == "" || m.Busy {
				return m, nil
			}
			m.appendLog("> " + line)
			m.Busy = true
			m.Status = "Working..."
			return m, m.exec(line)
		}

	case tea.WindowSizeMsg:
		if !m.Ready {
			m.Viewport = viewport.New(msg.Width, msg.Height-chrome)
			m.Viewport.SetContent(strings.Join(m.Log, "\n"))
			m.Ready = true
		} else {
			m.Viewport.Width = msg.Width
			m.Viewport.Height = msg.Height - chrome
		}
		m.Input.Width = msg.Width - 4

	case execMsg:
		m.Busy = false
		m.Status = "Ready"
		for _, r := range msg.replies {
			m.appendLog(r)
		}
		if msg.quit {
			m.Quitting = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.Input, cmd = m.Input.Update(msg)
	cmds = append(cmds, cmd)
	m.Viewport, cmd = m.Viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *Model) appendLog(line string) {
	m.Log = append(m.Log, line)
	m.Viewport.SetContent(strings.Join(m.Log, "\n"))
	m.Viewport.GotoBottom()
}

func (m Model) exec(line string) tea.Cmd {
	ctx, s := m.ctx, m.session
	return func() tea.Msg {
		replies, quit := s.Exec(ctx, line)
		return execMsg{replies: replies, quit: quit}
	}
}

func (m Model) View() string {
	if !m.Ready {
		return "\n  Initializing..."
	}

	header := titleStyle.Render(fmt.Sprintf(" %s ", m.Title))
	status := infoStyle.Render(fmt.Sprintf(" %s ", m.Status))

	view := fmt.Sprintf("%s%s\n\n%s\n%s", header, status, m.Viewport.View(), m.Input.View())
	if m.Quitting {
		return view + "\n  Quitting...\n"
	}
	return view
}

// Run starts the interactive console and blocks until the user quits.
func Run(ctx context.Context, title string, s *Session) error {
	p := tea.NewProgram(NewModel(ctx, title, s), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
