package tui

import (
	"context"

	"github.com/Iron-Ham/hostbridge/internal/api"
	"github.com/Iron-Ham/hostbridge/internal/bridge"
	"github.com/Iron-Ham/hostbridge/internal/errors"
	"github.com/Iron-Ham/hostbridge/internal/event"
	"github.com/Iron-Ham/hostbridge/internal/lifecycle"
	"github.com/Iron-Ham/hostbridge/internal/session"
	tea "github.com/charmbracelet/bubbletea"
)

// App wraps the Bubbletea program and the bridge it drives
type App struct {
	bridge    *bridge.Bridge
	workspace string
	opts      []tea.ProgramOption
}

// New creates a chat application for a started bridge.
func New(b *bridge.Bridge, workspace string, opts ...tea.ProgramOption) *App {
	return &App{
		bridge:    b,
		workspace: workspace,
		opts:      opts,
	}
}

// Run starts the TUI and blocks until the user quits or ctx is done.
// Subscriptions and calls created here are disposed before Run returns.
func (a *App) Run(ctx context.Context) error {
	backend := &bridgeBackend{}
	model := NewModel(backend, a.workspace)

	opts := append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, a.opts...)
	program := tea.NewProgram(model, opts...)

	// Bridge callbacks run on delivery goroutines; Send hands them to the
	// program's event loop and returns once the program has exited.
	send := program.Send
	backend.bind(a.bridge, send)
	defer backend.dispose()

	states := a.bridge.States()
	states.Subscribe(func(s lifecycle.State) { send(stateMsg{state: s}) })
	defer states.Dispose()

	conn := a.bridge.Connection()
	conn.Subscribe(func(s session.Status) { send(connectionMsg{status: s}) })
	defer conn.Dispose()

	token := a.bridge.WorkspaceToken()
	token.Subscribe(func(t api.Token) { send(tokenMsg{token: t}) })
	defer token.Dispose()

	auth := a.bridge.AuthInvalid()
	auth.Subscribe(func(e event.AuthInvalidEvent) {
		send(authInvalidMsg{workspace: e.Workspace, reason: e.Reason})
	})
	defer auth.Dispose()

	_, err := program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// bridgeBackend implements Backend with one Call per operation. Results are
// forwarded to the program as messages.
type bridgeBackend struct {
	send func(tea.Msg)

	create *bridge.Call[string, api.Session]
	reply  *bridge.Call[api.MessageRequest, api.Message]
	list   *bridge.Call[struct{}, []api.Session]
	remove *bridge.Action[string]
}

func (b *bridgeBackend) bind(br *bridge.Bridge, send func(tea.Msg)) {
	b.send = send
	b.create = br.CreateSession()
	b.reply = br.SendMessage()
	b.list = br.ListSessions()
	b.remove = br.DeleteSession()
}

func (b *bridgeBackend) failed(op string) func(error) {
	return func(err error) { b.send(callFailedMsg{op: op, err: err}) }
}

func (b *bridgeBackend) CreateSession(title string) {
	b.create.Start(title, func(s api.Session) {
		b.send(sessionCreatedMsg{session: s})
	}, b.failed(OpCreateSession))
}

func (b *bridgeBackend) SendMessage(req api.MessageRequest) {
	b.reply.Start(req, func(m api.Message) {
		b.send(replyMsg{message: m})
	}, b.failed(OpSendMessage))
}

func (b *bridgeBackend) ListSessions() {
	b.list.Start(struct{}{}, func(s []api.Session) {
		b.send(sessionsMsg{sessions: s})
	}, b.failed(OpListSessions))
}

func (b *bridgeBackend) DeleteSession(id string) {
	b.remove.Start(id, func() {
		b.send(sessionDeletedMsg{id: id})
	}, b.failed(OpDeleteSession))
}

func (b *bridgeBackend) Cancel() {
	b.create.Cancel()
	b.reply.Cancel()
	b.list.Cancel()
	b.remove.Cancel()
}

func (b *bridgeBackend) dispose() {
	b.create.Dispose()
	b.reply.Dispose()
	b.list.Dispose()
	b.remove.Dispose()
}
