package service

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/coachlink/coachlink/internal/model"
	"github.com/coachlink/coachlink/internal/transport"
	"github.com/google/uuid"
)

// TokenSource exchanges a user identity for a transport token. Tokens are
// always server-issued; nothing on this side mints credentials.
type TokenSource interface {
	StreamToken(ctx context.Context, user model.User) (string, error)
}

// MessageSink consumes message.new events for possible notification
type MessageSink interface {
	HandleIncomingMessage(ctx context.Context, recipient model.User, msg model.ChatMessage, sender model.ChatUser)
}

// incomingQueueCap bounds the hand-off between the transport read pump and
// the notification worker. A full queue drops the evaluation rather than
// stalling event delivery.
const incomingQueueCap = 64

type incomingMessage struct {
	recipient model.User
	msg       model.ChatMessage
	sender    model.ChatUser
}

// ChannelID derives the canonical conversation identifier for a coaching
// pair. Role fixes the slot - student first, coach second - so both sides
// derive the identical id no matter who resolves first. The two UUIDs are
// cut to their first eight characters to stay under the transport's
// 64-character limit; within one coaching deployment a fixed pair cannot
// collide with itself.
func ChannelID(studentID, coachID uuid.UUID) string {
	return fmt.Sprintf("coaching-%.8s-%.8s", studentID.String(), coachID.String())
}

// SessionManager owns the one transport session per authenticated user:
// connection, canonical channel, listener bindings, and local projections
// of the conversation state.
type SessionManager struct {
	transport transport.Transport
	tokens    TokenSource
	sink      MessageSink

	mu       sync.RWMutex
	session  *model.ChatSession
	channel  transport.Channel
	incoming chan incomingMessage
	messages []model.ChatMessage
	typing   map[string]bool
}

func NewSessionManager(t transport.Transport, tokens TokenSource, sink MessageSink) *SessionManager {
	return &SessionManager{
		transport: t,
		tokens:    tokens,
		sink:      sink,
		typing:    make(map[string]bool),
	}
}

// Initialize authenticates and connects the transport for a user. Exactly
// one session exists at a time: initializing for a different user tears
// the previous one down first; re-initializing for the same user is a
// no-op.
func (m *SessionManager) Initialize(ctx context.Context, user model.User) (*model.ChatSession, error) {
	m.mu.RLock()
	existing := m.session
	m.mu.RUnlock()

	if existing != nil {
		if existing.User.ID == user.ID && existing.State == model.SessionConnected {
			return existing, nil
		}
		// Different user: the previous socket must go before a new one
		// opens, or we leak duplicate connections.
		if err := m.Disconnect(ctx); err != nil {
			log.Printf("⚠️  Failed to tear down previous session: %v", err)
		}
	}

	token, err := m.tokens.StreamToken(ctx, user)
	if err != nil {
		return nil, &TransportError{Op: "token exchange", Err: err}
	}

	session := &model.ChatSession{User: user, State: model.SessionConnecting}
	m.mu.Lock()
	m.session = session
	m.mu.Unlock()

	chatUser := model.ChatUser{ID: user.ID.String(), Name: user.Name, Role: string(user.Role)}
	if err := m.transport.Connect(ctx, chatUser, token); err != nil {
		m.mu.Lock()
		m.session = nil
		m.mu.Unlock()
		return nil, &TransportError{Op: "connect", Err: err}
	}

	m.mu.Lock()
	session.State = model.SessionConnected
	queue := make(chan incomingMessage, incomingQueueCap)
	m.incoming = queue
	m.mu.Unlock()

	go m.notifyLoop(queue)

	log.Printf("✅ Chat session initialized: user=%s (%s)", user.Name, user.Role)
	return session, nil
}

// notifyLoop feeds queued messages to the sink one at a time, preserving
// arrival order per session. The sink's slow paths, permission waits and
// push retries, run here instead of on the transport read pump, so event
// projection and request replies never wait on a notification evaluation.
func (m *SessionManager) notifyLoop(queue chan incomingMessage) {
	for in := range queue {
		m.sink.HandleIncomingMessage(context.Background(), in.recipient, in.msg, in.sender)
	}
}

// ResolveChannel derives the canonical channel id for the pair and gets or
// creates it on the transport. Get-or-create is idempotent provider-side,
// so two devices racing on the same pair converge on one channel. All five
// event listeners are bound before this returns.
func (m *SessionManager) ResolveChannel(ctx context.Context, studentID, coachID uuid.UUID) (transport.Channel, error) {
	m.mu.RLock()
	session := m.session
	m.mu.RUnlock()
	if session == nil || session.State != model.SessionConnected {
		return nil, ErrNotConnected
	}

	channelID := ChannelID(studentID, coachID)
	channel, err := m.transport.Channel(ctx, channelID, []string{studentID.String(), coachID.String()})
	if err != nil {
		return nil, &TransportError{Op: "channel resolve", Err: err}
	}

	m.bindListeners(channel)

	m.mu.Lock()
	m.channel = channel
	m.session.ChannelID = channelID
	m.messages = nil
	m.typing = make(map[string]bool)
	m.mu.Unlock()

	log.Printf("✅ Channel resolved: %s", channelID)
	return channel, nil
}

// SendMessage publishes text to the session's channel
func (m *SessionManager) SendMessage(ctx context.Context, channelID, text string) (*model.ChatMessage, error) {
	m.mu.RLock()
	channel := m.channel
	m.mu.RUnlock()
	if channel == nil || channel.ID() != channelID {
		return nil, ErrNotConnected
	}

	msg, err := channel.SendMessage(ctx, text)
	if err != nil {
		return nil, &TransportError{Op: "send message", Err: err}
	}
	return msg, nil
}

// Messages returns the local projection of the conversation, newest first
func (m *SessionManager) Messages() []model.ChatMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.ChatMessage, len(m.messages))
	copy(out, m.messages)
	return out
}

// TypingUsers returns ids of users currently typing
func (m *SessionManager) TypingUsers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for id, on := range m.typing {
		if on {
			out = append(out, id)
		}
	}
	return out
}

// setPartner records the other half of the coaching pair on the session
func (m *SessionManager) setPartner(partner model.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != nil {
		m.session.Partner = partner
	}
}

// Session returns the current session, or nil
func (m *SessionManager) Session() *model.ChatSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

// Disconnect unbinds every listener, then releases the transport
// connection. Order matters: a callback firing against a torn-down client
// is a dangling listener bug. In-flight persistence writes are left alone.
func (m *SessionManager) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	channel := m.channel
	session := m.session
	queue := m.incoming
	m.channel = nil
	m.session = nil
	m.incoming = nil
	m.messages = nil
	m.typing = make(map[string]bool)
	m.mu.Unlock()

	// The worker drains whatever was already queued, then exits
	if queue != nil {
		close(queue)
	}

	if channel != nil {
		for _, t := range model.EventTypes {
			channel.Off(t)
		}
	}
	if session == nil {
		return nil
	}

	if err := m.transport.Disconnect(ctx); err != nil {
		return &TransportError{Op: "disconnect", Err: err}
	}
	return nil
}

// bindListeners projects the five transport events onto local state.
// message.new additionally hands the message to the notification worker,
// whether or not any UI is showing the conversation.
func (m *SessionManager) bindListeners(channel transport.Channel) {
	channel.On(model.EventMessageNew, func(event model.ChannelEvent) {
		if event.Message == nil {
			return
		}
		msg := *event.Message

		m.mu.Lock()
		m.messages = append([]model.ChatMessage{msg}, m.messages...)
		session := m.session
		queue := m.incoming
		if session == nil || queue == nil || msg.Sender.ID == session.User.ID.String() {
			m.mu.Unlock()
			return
		}
		// Queued under the lock so Disconnect cannot close the channel
		// mid-send. The send itself never blocks the read pump.
		select {
		case queue <- incomingMessage{recipient: session.User, msg: msg, sender: msg.Sender}:
		default:
			log.Printf("⚠️  Notification queue full, dropping evaluation for message %s", msg.ID)
		}
		m.mu.Unlock()
	})

	channel.On(model.EventMessageUpdated, func(event model.ChannelEvent) {
		if event.Message == nil {
			return
		}
		m.mu.Lock()
		for i := range m.messages {
			if m.messages[i].ID == event.Message.ID {
				m.messages[i] = *event.Message
				break
			}
		}
		m.mu.Unlock()
	})

	channel.On(model.EventMessageDeleted, func(event model.ChannelEvent) {
		if event.Message == nil {
			return
		}
		m.mu.Lock()
		for i := range m.messages {
			if m.messages[i].ID == event.Message.ID {
				m.messages = append(m.messages[:i], m.messages[i+1:]...)
				break
			}
		}
		m.mu.Unlock()
	})

	channel.On(model.EventTypingStart, func(event model.ChannelEvent) {
		if event.User == nil {
			return
		}
		m.mu.Lock()
		m.typing[event.User.ID] = true
		m.mu.Unlock()
	})

	channel.On(model.EventTypingStop, func(event model.ChannelEvent) {
		if event.User == nil {
			return
		}
		m.mu.Lock()
		delete(m.typing, event.User.ID)
		m.mu.Unlock()
	})
}
