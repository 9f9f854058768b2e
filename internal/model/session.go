package model

// SessionState tracks the lifecycle of a transport connection
type SessionState string

const (
	SessionConnecting   SessionState = "connecting"
	SessionConnected    SessionState = "connected"
	SessionDisconnected SessionState = "disconnected"
)

// ChatSession is the one active conversation session per authenticated
// user. It borrows the transport channel handle for its lifetime; the
// handle is owned by the transport client.
type ChatSession struct {
	User      User         `json:"user"`
	Partner   User         `json:"partner"`
	ChannelID string       `json:"channel_id"`
	State     SessionState `json:"state"`
}
