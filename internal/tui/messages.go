package tui

import (
	"github.com/Iron-Ham/hostbridge/internal/api"
	"github.com/Iron-Ham/hostbridge/internal/lifecycle"
	"github.com/Iron-Ham/hostbridge/internal/session"
)

// Messages sent into the program by bridge callbacks.

// stateMsg carries a graph state change
type stateMsg struct {
	state lifecycle.State
}

// connectionMsg carries a session connection status
type connectionMsg struct {
	status session.Status
}

// tokenMsg carries the current workspace token
type tokenMsg struct {
	token api.Token
}

// authInvalidMsg is sent when the remote rejects the workspace credentials
type authInvalidMsg struct {
	workspace string
	reason    string
}

// sessionCreatedMsg is the result of CreateSession
type sessionCreatedMsg struct {
	session api.Session
}

// replyMsg is the result of SendMessage
type replyMsg struct {
	message api.Message
}

// sessionsMsg is the result of ListSessions
type sessionsMsg struct {
	sessions []api.Session
}

// sessionDeletedMsg is the result of DeleteSession
type sessionDeletedMsg struct {
	id string
}

// callFailedMsg reports a failed bridge call
type callFailedMsg struct {
	op  string
	err error
}
