package transport

import (
	"context"

	"github.com/coachlink/coachlink/internal/model"
)

// EventHandler receives one typed channel event. Handlers run on the
// transport's reader goroutine; they must not block on unrelated work.
type EventHandler func(event model.ChannelEvent)

// Transport is the external chat provider. The wire protocol is the
// provider's business; this interface is the full surface the session
// layer is allowed to touch.
type Transport interface {
	// Connect authenticates with a server-issued token and opens the
	// single connection for this user. Connecting while already connected
	// is an error; callers disconnect first.
	Connect(ctx context.Context, user model.ChatUser, token string) error

	// Channel resolves the channel with the given id, creating it if
	// needed. Creation is idempotent on the provider side: two devices
	// racing on the same id converge on one channel.
	Channel(ctx context.Context, channelID string, memberIDs []string) (Channel, error)

	// Disconnect releases the connection. Listeners must already be
	// unbound by the caller; events stop immediately either way.
	Disconnect(ctx context.Context) error
}

// Channel is one conversation thread on the transport
type Channel interface {
	ID() string

	// SendMessage publishes text to the channel
	SendMessage(ctx context.Context, text string) (*model.ChatMessage, error)

	// Messages returns the channel's recent history, newest first
	Messages(ctx context.Context, limit int) ([]model.ChatMessage, error)

	// On binds a handler for one event type, replacing any previous one
	On(t model.EventType, h EventHandler)

	// Off unbinds the handler for one event type. After Off returns the
	// handler will not be invoked again.
	Off(t model.EventType)
}
