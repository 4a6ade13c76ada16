// Package tui is the full-screen chat front end built on bubbletea.
package tui

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/ragchat/internal/chat"
	"github.com/felixgeelhaar/ragchat/internal/observe"
	"github.com/felixgeelhaar/ragchat/internal/provider"
)

// TUI forwards controller callbacks to a running program.
type TUI struct {
	program *tea.Program
}

func NewTUI(p *tea.Program) *TUI {
	return &TUI{program: p}
}

func (t *TUI) UpdateStatus(status string) {
	t.program.Send(StatusMsg(status))
}

func (t *TUI) Stream(chunk string) {
	t.program.Send(ChunkMsg(chunk))
}

func (t *TUI) Log(msg string) {
	t.program.Send(LogMsg(msg))
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000"))

	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#04B575"))
)

type LogMsg string
type StatusMsg string
type ChunkMsg string

// outcomeMsg carries a finished command and the settings it left behind,
// read on the command goroutine so View never touches the live session.
type outcomeMsg struct {
	outcome chat.Outcome
	topN    int
}

type Model struct {
	Title    string
	Status   string
	Pending  string
	Notices  []string
	Input    textinput.Model
	Viewport viewport.Model
	Busy     bool
	Quitting bool
	Ready    bool
	Width    int
	Height   int
	TopN     int
	UserID   string

	ctrl   *chat.Controller
	obs    *observe.Observer
	ctx    context.Context
	cancel context.CancelFunc
}

// NewModel must be called before the program starts, while nothing else
// touches the controller's session.
func NewModel(ctx context.Context, title string, ctrl *chat.Controller, obs *observe.Observer) Model {
	ti := textinput.New()
	ti.Placeholder = "Ask something, or h for help"
	session := ctrl.Session()
	ti.Prompt = session.UserID + "> "
	ti.Focus()
	return Model{
		Title:  title,
		Status: "idle",
		Input:  ti,
		TopN:   session.TopN,
		UserID: session.UserID,
		ctrl:   ctrl,
		obs:    observe.OrDiscard(obs),
		ctx:    ctx,
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
		case tea.KeyCtrlC:
			if m.Busy && m.cancel != nil {
				m.cancel()
				return m, nil
			}
			m.Quitting = true
			return m, tea.Quit
		case tea.KeyEsc:
			m.Quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			if m.Busy {
				return m, nil
			}
			return m.submit()
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		if !m.Ready {
			m.Viewport = viewport.New(msg.Width, msg.Height-4)
			m.Ready = true
		} else {
			m.Viewport.Width = msg.Width
			m.Viewport.Height = msg.Height - 4
		}
		m.Input.Width = msg.Width - 4

	case LogMsg:
		m.Notices = append(m.Notices, string(msg))

	case StatusMsg:
		m.Status = string(msg)

	case ChunkMsg:
		m.Pending += string(msg)

	case outcomeMsg:
		m.Busy = false
		m.Pending = ""
		if m.cancel != nil {
			m.cancel()
			m.cancel = nil
		}
		m.TopN = msg.topN
		if msg.outcome.Kind == chat.KindQuit {
			m.Quitting = true
			return m, tea.Quit
		}
		m.Notices = append(m.Notices, describe(msg.outcome)...)
	}

	m.refresh()

	var cmd tea.Cmd
	m.Input, cmd = m.Input.Update(msg)
	cmds = append(cmds, cmd)
	m.Viewport, cmd = m.Viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	line := m.Input.Value()
	m.Input.Reset()
	m.Notices = nil
	m.Busy = true

	ctx, cancel := context.WithCancel(m.ctx)
	m.cancel = cancel
	ctrl, obs, topN := m.ctrl, m.obs, m.TopN
	m.refresh()
	return m, func() (msg tea.Msg) {
		defer func() {
			if r := recover(); r != nil {
				obs.Log().Error().
					Str("session", ctrl.ID()).
					Str("panic", fmt.Sprint(r)).
					Str("stack", string(debug.Stack())).
					Msg("recovered from unexpected error")
				msg = outcomeMsg{
					outcome: chat.Outcome{Kind: chat.KindError, Message: fmt.Sprintf("An error occurred: %v", r)},
					topN:    topN,
				}
			}
		}()
		outcome := ctrl.Handle(ctx, line)
		return outcomeMsg{outcome: outcome, topN: ctrl.Session().TopN}
	}
}

// describe turns a command outcome into transcript notices.
func describe(o chat.Outcome) []string {
	switch o.Kind {
	case chat.KindContinue, chat.KindRedraw, chat.KindNew, chat.KindBack:
		return nil
	case chat.KindHelp:
		return []string{o.Message}
	case chat.KindFoundDocuments:
		lines := make([]string, 0, len(o.Results))
		for _, r := range o.Results {
			lines = append(lines, fmt.Sprintf("Document %s (distance: %.2f)", r.ID, r.Distance))
		}
		return lines
	case chat.KindError:
		return []string{errorStyle.Render(o.Message)}
	default:
		return []string{o.Message}
	}
}

func (m *Model) refresh() {
	var sb strings.Builder
	for _, msg := range m.ctrl.History() {
		writeTurn(&sb, m.UserID, msg.Role, msg.Content)
	}
	if m.Busy && m.Pending != "" {
		writeTurn(&sb, "", provider.RoleAssistant, m.Pending)
	}
	for _, n := range m.Notices {
		sb.WriteString(infoStyle.Render(n))
		sb.WriteString("\n")
	}
	m.Viewport.SetContent(sb.String())
	m.Viewport.GotoBottom()
}

func writeTurn(sb *strings.Builder, userID, role, content string) {
	label := assistantStyle.Render("Assistant:")
	if role == provider.RoleUser {
		label = userStyle.Render(userID + ":")
	}
	sb.WriteString(label)
	sb.WriteString(" ")
	sb.WriteString(content)
	sb.WriteString("\n\n")
}

func (m Model) View() string {
	if !m.Ready {
		return "\n  Initializing..."
	}

	header := titleStyle.Render(" " + m.Title + " ")
	status := infoStyle.Render(fmt.Sprintf(" Status: %s ", m.Status))
	info := fmt.Sprintf(" Turns: %d  Top N: %d ", len(m.ctrl.History())/2, m.TopN)

	view := fmt.Sprintf("%s%s%s\n%s\n%s",
		header, status, info,
		m.Viewport.View(),
		m.Input.View())

	if m.Quitting {
		return view + "\n  Quitting...\n"
	}

	return view
}
