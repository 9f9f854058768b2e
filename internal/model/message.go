package model

import "time"

// ChatUser is the sender identity carried on transport events. IDs are
// opaque strings on the wire; the transport owns their format.
type ChatUser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
}

// ChatMessage is a message as seen on the transport's event stream
type ChatMessage struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channel_id"`
	Text      string    `json:"text"`
	Sender    ChatUser  `json:"user"`
	CreatedAt time.Time `json:"created_at"`
}
