package api

import (
	"net/url"
	"strings"
	"time"

	"github.com/Iron-Ham/hostbridge/internal/errors"
)

// Endpoint identifies the remote workspace the bridge talks to.
type Endpoint struct {
	URL       string `mapstructure:"url" yaml:"url"`
	Workspace string `mapstructure:"workspace" yaml:"workspace"`
	APIKey    string `mapstructure:"api_key" yaml:"api_key"`
}

// IsZero reports whether no endpoint was configured.
func (e Endpoint) IsZero() bool {
	return e.URL == "" && e.Workspace == "" && e.APIKey == ""
}

// Scheme returns the lower-cased URL scheme, or "" if the URL does not parse.
func (e Endpoint) Scheme() string {
	u, err := url.Parse(e.URL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Scheme)
}

// Validate checks that the endpoint can be dialed.
func (e Endpoint) Validate() error {
	if strings.TrimSpace(e.URL) == "" {
		return errors.NewValidationError("url is required").WithField("endpoint.url")
	}
	u, err := url.Parse(e.URL)
	if err != nil {
		return errors.NewValidationError("url does not parse").
			WithField("endpoint.url").
			WithValue(e.URL).
			WithCause(err)
	}
	if u.Scheme == "" {
		return errors.NewValidationError("url has no scheme").
			WithField("endpoint.url").
			WithValue(e.URL)
	}
	if !Registered(u.Scheme) {
		return errors.NewValidationError("unsupported scheme").
			WithField("endpoint.url").
			WithValue(u.Scheme)
	}
	if strings.TrimSpace(e.Workspace) == "" {
		return errors.NewValidationError("workspace is required").WithField("endpoint.workspace")
	}
	return nil
}

// Redacted returns a copy safe to log or display.
func (e Endpoint) Redacted() Endpoint {
	if e.APIKey != "" {
		e.APIKey = "****"
	}
	return e
}

// Session is a conversation on the remote.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MessageRequest is the input of SendMessage.
type MessageRequest struct {
	SessionID string `json:"session_id"`
	Content   string `json:"content"`
}

// Validate checks that the request can be sent.
func (r MessageRequest) Validate() error {
	if r.SessionID == "" {
		return errors.NewValidationError("session id is required").WithField("session_id")
	}
	if strings.TrimSpace(r.Content) == "" {
		return errors.NewValidationError("content is empty").WithField("content")
	}
	return nil
}

// Message is one entry of a session transcript.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Token is a short-lived workspace credential.
type Token struct {
	Value     string    `json:"value"`
	Workspace string    `json:"workspace"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsZero reports whether no token has been fetched yet.
func (t Token) IsZero() bool {
	return t.Value == ""
}

// Expired reports whether the token is unusable at now.
func (t Token) Expired(now time.Time) bool {
	return t.IsZero() || !now.Before(t.ExpiresAt)
}
