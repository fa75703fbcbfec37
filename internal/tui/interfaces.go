// Package tui provides the chat host: a bubbletea program that drives the
// bridge's calls and renders its subscriptions.
//
// The Model never touches the bridge directly. It asks a Backend to start
// calls, and results come back as messages, so Update can be exercised with
// a fake Backend and no running program.
package tui

import "github.com/Iron-Ham/hostbridge/internal/api"

// Operation names, as used in pending indicators and failure messages.
const (
	OpCreateSession = "create_session"
	OpSendMessage   = "send_message"
	OpListSessions  = "list_sessions"
	OpDeleteSession = "delete_session"
)

// Backend starts bridge calls on behalf of the Model. Every method returns
// immediately; the outcome arrives later as a message.
type Backend interface {
	CreateSession(title string)
	SendMessage(req api.MessageRequest)
	ListSessions()
	DeleteSession(id string)

	// Cancel cancels every call in flight. Cancelled calls send nothing.
	Cancel()
}
