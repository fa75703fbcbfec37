package session

// Status is the connection status of a session manager.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusReady        Status = "ready"
	StatusUnauthorized Status = "unauthorized"
	StatusStopped      Status = "stopped"
)

// String returns the status name.
func (s Status) String() string {
	return string(s)
}
