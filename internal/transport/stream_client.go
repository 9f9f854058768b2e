package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/coachlink/coachlink/internal/model"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192
)

// ErrAlreadyConnected is returned when Connect is called on a live client
var ErrAlreadyConnected = errors.New("transport already connected")

// ErrClosed is returned for operations on a disconnected client
var ErrClosed = errors.New("transport connection closed")

// Config for the stream client
type Config struct {
	WSURL        string
	DialTimeout  time.Duration
	MaxReconnect time.Duration
}

// wireFrame is the transport gateway's JSON frame. Requests carry a
// request_id the gateway echoes back; frames without one are events.
type wireFrame struct {
	Type      string              `json:"type"`
	RequestID string              `json:"request_id,omitempty"`
	ChannelID string              `json:"channel_id,omitempty"`
	Members   []string            `json:"members,omitempty"`
	Text      string              `json:"text,omitempty"`
	Limit     int                 `json:"limit,omitempty"`
	Message   *model.ChatMessage  `json:"message,omitempty"`
	Messages  []model.ChatMessage `json:"messages,omitempty"`
	User      *model.ChatUser     `json:"user,omitempty"`
	Error     string              `json:"error,omitempty"`
}

// StreamClient is the websocket implementation of Transport. One client
// holds exactly one connection for one authenticated user; read and write
// run in their own pumps, and dropped connections are redialed with
// exponential backoff until Disconnect.
type StreamClient struct {
	cfg Config

	mu       sync.RWMutex
	conn     *websocket.Conn
	send     chan []byte
	handlers map[string]map[model.EventType]EventHandler
	pending  map[string]chan wireFrame
	user     model.ChatUser
	token    string
	closed   bool
	done     chan struct{}
}

// NewStreamClient creates a disconnected client
func NewStreamClient(cfg Config) *StreamClient {
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if cfg.MaxReconnect == 0 {
		cfg.MaxReconnect = 30 * time.Second
	}
	return &StreamClient{
		cfg:      cfg,
		handlers: make(map[string]map[model.EventType]EventHandler),
		pending:  make(map[string]chan wireFrame),
	}
}

// Connect dials the transport and starts the read/write pumps
func (c *StreamClient) Connect(ctx context.Context, user model.ChatUser, token string) error {
	c.mu.Lock()
	if c.conn != nil && !c.closed {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.user = user
	c.token = token
	c.closed = false
	c.mu.Unlock()

	conn, err := c.dial(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to chat transport: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.send = make(chan []byte, 256)
	c.done = make(chan struct{})
	c.mu.Unlock()

	go c.writePump(conn, c.send, c.done)
	go c.readPump(conn)

	log.Printf("✅ Transport connected: user=%s", user.ID)
	return nil
}

func (c *StreamClient) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(c.cfg.WSURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("token", c.token)
	u.RawQuery = q.Encode()

	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, u.String(), nil)
	return conn, err
}

// Channel resolves or creates a channel on the gateway
func (c *StreamClient) Channel(ctx context.Context, channelID string, memberIDs []string) (Channel, error) {
	_, err := c.request(ctx, wireFrame{
		Type:      "channel.get_or_create",
		ChannelID: channelID,
		Members:   memberIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("channel get-or-create failed: %w", err)
	}
	return &streamChannel{client: c, id: channelID}, nil
}

// Disconnect closes the connection. Pending requests fail with ErrClosed;
// no events are delivered after this returns.
func (c *StreamClient) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.conn = nil
	if c.done != nil {
		close(c.done)
	}
	// Waiters unblock through done. The reply channels are never closed:
	// the read pump may still be between its map lookup and its send.
	c.pending = make(map[string]chan wireFrame)
	c.handlers = make(map[string]map[model.EventType]EventHandler)
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		if err := conn.Close(); err != nil {
			return err
		}
	}
	log.Println("🔌 Transport disconnected")
	return nil
}

// request sends a frame and waits for the gateway's reply
func (c *StreamClient) request(ctx context.Context, frame wireFrame) (wireFrame, error) {
	frame.RequestID = uuid.NewString()
	reply := make(chan wireFrame, 1)

	c.mu.Lock()
	if c.closed || c.conn == nil {
		c.mu.Unlock()
		return wireFrame{}, ErrClosed
	}
	c.pending[frame.RequestID] = reply
	send := c.send
	done := c.done
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, frame.RequestID)
		c.mu.Unlock()
	}()

	data, err := json.Marshal(frame)
	if err != nil {
		return wireFrame{}, err
	}

	select {
	case send <- data:
	case <-done:
		return wireFrame{}, ErrClosed
	case <-ctx.Done():
		return wireFrame{}, ctx.Err()
	}

	select {
	case resp := <-reply:
		if resp.Error != "" {
			return wireFrame{}, errors.New(resp.Error)
		}
		return resp, nil
	case <-done:
		return wireFrame{}, ErrClosed
	case <-ctx.Done():
		return wireFrame{}, ctx.Err()
	}
}

// readPump pumps frames from the connection, routing replies to waiting
// requests and events to bound handlers. On a dropped connection it
// redials with backoff unless the client was disconnected.
func (c *StreamClient) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("⚠️  Transport read error: %v", err)
			}
			c.reconnect()
			return
		}

		var frame wireFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			log.Printf("⚠️  Transport: dropping malformed frame: %v", err)
			continue
		}

		if frame.RequestID != "" {
			c.mu.RLock()
			reply, ok := c.pending[frame.RequestID]
			c.mu.RUnlock()
			if ok {
				reply <- frame
			}
			continue
		}

		c.dispatch(frame)
	}
}

// dispatch routes one event frame to the handler bound for its channel and
// type. Unknown event types are dropped at this boundary.
func (c *StreamClient) dispatch(frame wireFrame) {
	eventType := model.EventType(frame.Type)
	known := false
	for _, t := range model.EventTypes {
		if t == eventType {
			known = true
			break
		}
	}
	if !known {
		return
	}

	c.mu.RLock()
	var handler EventHandler
	if byType, ok := c.handlers[frame.ChannelID]; ok {
		handler = byType[eventType]
	}
	c.mu.RUnlock()

	if handler == nil {
		return
	}

	handler(model.ChannelEvent{
		Type:      eventType,
		ChannelID: frame.ChannelID,
		Message:   frame.Message,
		User:      frame.User,
	})
}

// writePump pumps queued frames to the connection and keeps it alive with
// pings
func (c *StreamClient) writePump(conn *websocket.Conn, send chan []byte, done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-done:
			return
		}
	}
}

// reconnect redials after a dropped connection, keeping handler bindings
func (c *StreamClient) reconnect() {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = c.cfg.MaxReconnect
	bo.MaxElapsedTime = 0

	err := backoff.Retry(func() error {
		c.mu.RLock()
		closed := c.closed
		c.mu.RUnlock()
		if closed {
			return backoff.Permanent(ErrClosed)
		}

		conn, err := c.dial(context.Background())
		if err != nil {
			log.Printf("⚠️  Transport reconnect failed, retrying: %v", err)
			return err
		}

		c.mu.Lock()
		if c.closed {
			// Disconnect won the race while we were dialing
			c.mu.Unlock()
			_ = conn.Close()
			return backoff.Permanent(ErrClosed)
		}
		if c.done != nil {
			close(c.done)
		}
		c.conn = conn
		c.send = make(chan []byte, 256)
		c.done = make(chan struct{})
		send, done := c.send, c.done
		c.mu.Unlock()

		go c.writePump(conn, send, done)
		go c.readPump(conn)
		log.Println("🔄 Transport reconnected")
		return nil
	}, bo)

	if err != nil && !errors.Is(err, ErrClosed) {
		log.Printf("❌ Transport reconnect gave up: %v", err)
	}
}

// bind and unbind back streamChannel.On/Off

func (c *StreamClient) bind(channelID string, t model.EventType, h EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.handlers[channelID]; !ok {
		c.handlers[channelID] = make(map[model.EventType]EventHandler)
	}
	c.handlers[channelID][t] = h
}

func (c *StreamClient) unbind(channelID string, t model.EventType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if byType, ok := c.handlers[channelID]; ok {
		delete(byType, t)
		if len(byType) == 0 {
			delete(c.handlers, channelID)
		}
	}
}

// streamChannel is the borrowed handle for one conversation thread
type streamChannel struct {
	client *StreamClient
	id     string
}

func (ch *streamChannel) ID() string { return ch.id }

func (ch *streamChannel) SendMessage(ctx context.Context, text string) (*model.ChatMessage, error) {
	resp, err := ch.client.request(ctx, wireFrame{
		Type:      "message.send",
		ChannelID: ch.id,
		Text:      text,
	})
	if err != nil {
		return nil, fmt.Errorf("send message failed: %w", err)
	}
	if resp.Message == nil {
		return nil, errors.New("transport returned no message")
	}
	return resp.Message, nil
}

func (ch *streamChannel) Messages(ctx context.Context, limit int) ([]model.ChatMessage, error) {
	resp, err := ch.client.request(ctx, wireFrame{
		Type:      "channel.history",
		ChannelID: ch.id,
		Limit:     limit,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch history failed: %w", err)
	}
	return resp.Messages, nil
}

func (ch *streamChannel) On(t model.EventType, h EventHandler) {
	ch.client.bind(ch.id, t, h)
}

func (ch *streamChannel) Off(t model.EventType) {
	ch.client.unbind(ch.id, t)
}
