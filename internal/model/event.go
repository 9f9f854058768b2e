package model

// EventType is the closed set of transport events the session layer
// projects. Anything else coming off the wire is dropped at the transport
// boundary rather than leaking an untyped payload upward.
type EventType string

const (
	EventMessageNew     EventType = "message.new"
	EventMessageUpdated EventType = "message.updated"
	EventMessageDeleted EventType = "message.deleted"
	EventTypingStart    EventType = "typing.start"
	EventTypingStop     EventType = "typing.stop"
)

// EventTypes lists every variant a session binds listeners for.
// Disconnect must unbind all of them before releasing the connection.
var EventTypes = []EventType{
	EventMessageNew,
	EventMessageUpdated,
	EventMessageDeleted,
	EventTypingStart,
	EventTypingStop,
}

// ChannelEvent is one typed event from the transport. Message is set for
// the message.* variants, User for the typing.* variants.
type ChannelEvent struct {
	Type      EventType    `json:"type"`
	ChannelID string       `json:"channel_id"`
	Message   *ChatMessage `json:"message,omitempty"`
	User      *ChatUser    `json:"user,omitempty"`
}
