package tui

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/Iron-Ham/hostbridge/internal/api"
	"github.com/Iron-Ham/hostbridge/internal/lifecycle"
	"github.com/Iron-Ham/hostbridge/internal/session"
	"github.com/Iron-Ham/hostbridge/internal/util"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// maxTitleRunes bounds session titles derived from a first message.
const maxTitleRunes = 32

const helpText = "enter send · /new [title] · /list · /use <n> · /delete [id] · esc cancel · ctrl+c quit"

// Model is the chat UI state
type Model struct {
	backend   Backend
	workspace string

	input   textinput.Model
	spinner spinner.Model
	width   int
	height  int

	state      lifecycle.State
	connection session.Status
	token      api.Token

	current      *api.Session
	sessions     []api.Session
	showSessions bool
	transcript   []api.Message

	pending map[string]bool
	queued  string // first message, sent once its session exists
	notice  string
	err     error

	quitting bool
}

// NewModel creates a chat model that starts calls through backend.
func NewModel(backend Backend, workspace string) Model {
	ti := textinput.New()
	ti.Placeholder = "Type a message or /help"
	ti.CharLimit = 4000
	ti.Prompt = "› "
	ti.Focus()

	sp := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(PrimaryColor)),
	)

	return Model{
		backend:   backend,
		workspace: workspace,
		input:     ti,
		spinner:   sp,
		state:     lifecycle.StateStopped,
		pending:   make(map[string]bool),
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(msg.Width-6, 10)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		if !m.busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case stateMsg:
		m.state = msg.state
		if msg.state != lifecycle.StateStarted {
			// Stopping disposes every call; nothing pending will report back
			clear(m.pending)
			m.queued = ""
		}
		return m, nil

	case connectionMsg:
		m.connection = msg.status
		return m, nil

	case tokenMsg:
		m.token = msg.token
		return m, nil

	case authInvalidMsg:
		m.notice = fmt.Sprintf("credentials rejected for %s: %s", msg.workspace, msg.reason)
		return m, nil

	case sessionCreatedMsg:
		delete(m.pending, OpCreateSession)
		s := msg.session
		m.current = &s
		m.transcript = nil
		m.sessions = append(m.sessions, s)
		m.notice = fmt.Sprintf("session %q created", s.Title)
		if m.queued != "" {
			text := m.queued
			m.queued = ""
			return m.send(text)
		}
		return m, nil

	case replyMsg:
		delete(m.pending, OpSendMessage)
		if m.current != nil && msg.message.SessionID == m.current.ID {
			m.transcript = append(m.transcript, msg.message)
		}
		return m, nil

	case sessionsMsg:
		delete(m.pending, OpListSessions)
		m.sessions = msg.sessions
		m.showSessions = true
		return m, nil

	case sessionDeletedMsg:
		delete(m.pending, OpDeleteSession)
		m.sessions = slices.DeleteFunc(m.sessions, func(s api.Session) bool { return s.ID == msg.id })
		if m.current != nil && m.current.ID == msg.id {
			m.current = nil
			m.transcript = nil
		}
		m.notice = "session deleted"
		return m, nil

	case callFailedMsg:
		delete(m.pending, msg.op)
		if msg.op == OpCreateSession {
			m.queued = ""
		}
		m.err = fmt.Errorf("%s: %w", msg.op, msg.err)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Sequence(m.do(m.backend.Cancel), tea.Quit)

	case "esc":
		if !m.busy() {
			m.showSessions = false
			return m, nil
		}
		clear(m.pending)
		m.queued = ""
		m.notice = "cancelled"
		return m, m.do(m.backend.Cancel)

	case "enter":
		text := strings.TrimSpace(m.input.Value())
		m.input.Reset()
		if text == "" {
			return m, nil
		}
		m.err = nil
		m.notice = ""
		if strings.HasPrefix(text, "/") {
			return m.command(text)
		}
		return m.send(text)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// send posts text to the current session, creating one first if needed.
func (m Model) send(text string) (tea.Model, tea.Cmd) {
	if m.current == nil {
		m.queued = text
		return m.start(OpCreateSession, func() { m.backend.CreateSession(titleFrom(text)) })
	}

	req := api.MessageRequest{SessionID: m.current.ID, Content: text}
	m.transcript = append(m.transcript, api.Message{
		SessionID: req.SessionID,
		Role:      api.RoleUser,
		Content:   text,
	})
	return m.start(OpSendMessage, func() { m.backend.SendMessage(req) })
}

func (m Model) command(line string) (tea.Model, tea.Cmd) {
	name, arg, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "new":
		if arg == "" {
			arg = "untitled"
		}
		return m.start(OpCreateSession, func() { m.backend.CreateSession(arg) })

	case "list":
		return m.start(OpListSessions, m.backend.ListSessions)

	case "use":
		s, ok := m.lookup(arg)
		if !ok {
			m.err = fmt.Errorf("no session %q; run /list", arg)
			return m, nil
		}
		m.current = &s
		m.transcript = nil
		m.showSessions = false
		m.notice = fmt.Sprintf("using session %q", s.Title)
		return m, nil

	case "delete":
		id := arg
		if id == "" && m.current != nil {
			id = m.current.ID
		}
		if id == "" {
			m.err = fmt.Errorf("no session to delete")
			return m, nil
		}
		return m.start(OpDeleteSession, func() { m.backend.DeleteSession(id) })

	case "cancel":
		clear(m.pending)
		m.queued = ""
		return m, m.do(m.backend.Cancel)

	case "quit":
		m.quitting = true
		return m, tea.Sequence(m.do(m.backend.Cancel), tea.Quit)

	case "help":
		m.notice = helpText
		return m, nil
	}

	m.err = fmt.Errorf("unknown command /%s", name)
	return m, nil
}

// start marks op pending and returns a command that hands it to the backend.
func (m Model) start(op string, fn func()) (tea.Model, tea.Cmd) {
	if m.state != lifecycle.StateStarted {
		m.err = fmt.Errorf("%s: bridge is %s", op, m.state)
		m.queued = ""
		return m, nil
	}
	wasBusy := m.busy()
	m.pending[op] = true
	if wasBusy {
		return m, m.do(fn)
	}
	return m, tea.Batch(m.do(fn), m.spinner.Tick)
}

// do wraps a backend call as a command producing no message.
func (m Model) do(fn func()) tea.Cmd {
	return func() tea.Msg {
		fn()
		return nil
	}
}

// lookup resolves a session by 1-based index into the last listing or by ID.
func (m Model) lookup(arg string) (api.Session, bool) {
	if n, err := strconv.Atoi(arg); err == nil && n >= 1 && n <= len(m.sessions) {
		return m.sessions[n-1], true
	}
	for _, s := range m.sessions {
		if s.ID == arg {
			return s, true
		}
	}
	return api.Session{}, false
}

func (m Model) busy() bool {
	return len(m.pending) > 0
}

// titleFrom derives a session title from its first message.
func titleFrom(text string) string {
	return util.Truncate(util.CollapseSpace(text), maxTitleRunes)
}

// View implements tea.Model
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")
	if m.showSessions {
		b.WriteString(m.renderSessions())
	} else {
		b.WriteString(m.renderTranscript())
	}
	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString(HelpBar.Render(helpText))
	return b.String()
}

func (m Model) renderHeader() string {
	parts := []string{
		Title.Render("hostbridge"),
		Muted.Render(m.workspace),
		StateBadge(m.state),
		ConnectionBadge(m.connection),
	}
	if !m.token.IsZero() {
		parts = append(parts, Muted.Render("token until "+m.token.ExpiresAt.Format("15:04:05")))
	}
	if m.current != nil {
		parts = append(parts, Muted.Render("· "+m.current.Title))
	}
	return strings.Join(parts, " ")
}

func (m Model) renderTranscript() string {
	if len(m.transcript) == 0 {
		return Muted.Render("No messages yet.")
	}

	lines := make([]string, 0, len(m.transcript))
	for _, msg := range m.transcript {
		label := UserLabel.Render("you")
		if msg.Role == api.RoleAssistant {
			label = AssistantLabel.Render("remote")
		}
		line := label + " " + msg.Content
		if m.width > 8 {
			line = util.TruncateWidth(line, m.width-8)
		}
		lines = append(lines, line)
	}

	// Keep the newest lines that fit above the status and input rows
	if limit := m.height - 8; limit > 0 && len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}
	style := Transcript
	if m.width > 4 {
		style = style.Width(m.width - 4)
	}
	return style.Render(strings.Join(lines, "\n"))
}

func (m Model) renderSessions() string {
	if len(m.sessions) == 0 {
		return Muted.Render("No sessions.")
	}
	lines := make([]string, 0, len(m.sessions))
	for i, s := range m.sessions {
		marker := "  "
		if m.current != nil && m.current.ID == s.ID {
			marker = "● "
		}
		lines = append(lines, fmt.Sprintf("%s%d. %s %s", marker, i+1, s.Title, Muted.Render(s.ID)))
	}
	return Transcript.Render(strings.Join(lines, "\n"))
}

func (m Model) renderStatus() string {
	switch {
	case m.err != nil:
		return Error.Render(m.err.Error())
	case m.busy():
		ops := make([]string, 0, len(m.pending))
		for op := range m.pending {
			ops = append(ops, op)
		}
		slices.Sort(ops)
		return m.spinner.View() + " " + Muted.Render(strings.Join(ops, ", "))
	case m.notice != "":
		return Muted.Render(m.notice)
	}
	return ""
}
