package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/coachlink/coachlink/internal/model"
	"github.com/coachlink/coachlink/internal/service"
	"github.com/coachlink/coachlink/internal/transport"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	id string

	mu       sync.Mutex
	handlers map[model.EventType]transport.EventHandler
	offCalls []model.EventType
	sendErr  error
	sent     []string
}

func newFakeChannel(id string) *fakeChannel {
	return &fakeChannel{id: id, handlers: make(map[model.EventType]transport.EventHandler)}
}

func (c *fakeChannel) ID() string { return c.id }

func (c *fakeChannel) SendMessage(_ context.Context, text string) (*model.ChatMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return nil, c.sendErr
	}
	c.sent = append(c.sent, text)
	return &model.ChatMessage{ID: uuid.NewString(), ChannelID: c.id, Text: text, CreatedAt: time.Now()}, nil
}

func (c *fakeChannel) Messages(_ context.Context, _ int) ([]model.ChatMessage, error) {
	return nil, nil
}

func (c *fakeChannel) On(t model.EventType, h transport.EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[t] = h
}

func (c *fakeChannel) Off(t model.EventType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handlers, t)
	c.offCalls = append(c.offCalls, t)
}

// fire simulates a gateway event arriving on the channel
func (c *fakeChannel) fire(event model.ChannelEvent) {
	c.mu.Lock()
	h := c.handlers[event.Type]
	c.mu.Unlock()
	if h != nil {
		h(event)
	}
}

func (c *fakeChannel) boundTypes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handlers)
}

type fakeTransport struct {
	mu          sync.Mutex
	connected   bool
	connects    int
	disconnects int
	connectErr  error
	channelErr  error
	channel     *fakeChannel
	lastUser    model.ChatUser
}

func (t *fakeTransport) Connect(_ context.Context, user model.ChatUser, _ string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.connectErr != nil {
		return t.connectErr
	}
	t.connected = true
	t.connects++
	t.lastUser = user
	return nil
}

func (t *fakeTransport) Channel(_ context.Context, channelID string, _ []string) (transport.Channel, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.channelErr != nil {
		return nil, t.channelErr
	}
	t.channel = newFakeChannel(channelID)
	return t.channel, nil
}

func (t *fakeTransport) Disconnect(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connected = false
	t.disconnects++
	return nil
}

type fakeTokenSource struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeTokenSource) StreamToken(_ context.Context, user model.User) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.calls++
	return "stream-token-" + user.ID.String(), nil
}

type recordingSink struct {
	mu       sync.Mutex
	messages []model.ChatMessage
}

func (s *recordingSink) HandleIncomingMessage(_ context.Context, _ model.User, msg model.ChatMessage, _ model.ChatUser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func (s *recordingSink) ids() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, m := range s.messages {
		out = append(out, m.ID)
	}
	return out
}

// blockingSink holds every delivery until the gate opens
type blockingSink struct {
	recordingSink
	gate chan struct{}
}

func (s *blockingSink) HandleIncomingMessage(ctx context.Context, recipient model.User, msg model.ChatMessage, sender model.ChatUser) {
	<-s.gate
	s.recordingSink.HandleIncomingMessage(ctx, recipient, msg, sender)
}

func TestChannelIDIsRoleStableAndBounded(t *testing.T) {
	student := uuid.MustParse("b7f8a3a0-1111-4222-8333-444455556666")
	coach := uuid.MustParse("c9e1d2f3-7777-4888-9999-aaaabbbbcccc")

	id := service.ChannelID(student, coach)

	assert.Equal(t, "coaching-b7f8a3a0-c9e1d2f3", id)
	assert.LessOrEqual(t, len(id), 64)
	// Same pair, same id, no matter which side derives it first
	assert.Equal(t, id, service.ChannelID(student, coach))
}

func setupSession(t *testing.T) (*service.SessionManager, *fakeTransport, *fakeTokenSource, *recordingSink, model.User) {
	t.Helper()
	tr := &fakeTransport{}
	ts := &fakeTokenSource{}
	sink := &recordingSink{}
	m := service.NewSessionManager(tr, ts, sink)
	user := model.User{ID: uuid.New(), Name: "Student Sam", Role: model.RoleStudent}
	return m, tr, ts, sink, user
}

func TestInitializeIsIdempotentForSameUser(t *testing.T) {
	m, tr, ts, _, user := setupSession(t)

	first, err := m.Initialize(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, model.SessionConnected, first.State)

	second, err := m.Initialize(context.Background(), user)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, tr.connects)
	assert.Equal(t, 1, ts.calls)
}

func TestInitializeSwitchingUserTearsDownPreviousSession(t *testing.T) {
	m, tr, _, _, user := setupSession(t)

	_, err := m.Initialize(context.Background(), user)
	require.NoError(t, err)

	other := model.User{ID: uuid.New(), Name: "Student Pat", Role: model.RoleStudent}
	_, err = m.Initialize(context.Background(), other)
	require.NoError(t, err)

	assert.Equal(t, 1, tr.disconnects)
	assert.Equal(t, 2, tr.connects)
	assert.Equal(t, other.ID, m.Session().User.ID)
}

func TestInitializeWrapsTokenExchangeFailure(t *testing.T) {
	tr := &fakeTransport{}
	ts := &fakeTokenSource{err: errors.New("token endpoint down")}
	m := service.NewSessionManager(tr, ts, &recordingSink{})

	_, err := m.Initialize(context.Background(), model.User{ID: uuid.New(), Role: model.RoleStudent})

	var transportErr *service.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Nil(t, m.Session())
	assert.Equal(t, 0, tr.connects)
}

func TestResolveChannelRequiresConnection(t *testing.T) {
	m, _, _, _, _ := setupSession(t)

	_, err := m.ResolveChannel(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, service.ErrNotConnected)
}

func TestResolveChannelBindsAllListeners(t *testing.T) {
	m, tr, _, _, user := setupSession(t)
	coach := uuid.New()

	_, err := m.Initialize(context.Background(), user)
	require.NoError(t, err)
	_, err = m.ResolveChannel(context.Background(), user.ID, coach)
	require.NoError(t, err)

	assert.Equal(t, len(model.EventTypes), tr.channel.boundTypes())
	assert.Equal(t, service.ChannelID(user.ID, coach), m.Session().ChannelID)
}

func TestIncomingMessageFeedsSink(t *testing.T) {
	m, tr, _, sink, user := setupSession(t)
	coach := uuid.New()

	_, err := m.Initialize(context.Background(), user)
	require.NoError(t, err)
	_, err = m.ResolveChannel(context.Background(), user.ID, coach)
	require.NoError(t, err)

	incoming := model.ChatMessage{
		ID:     uuid.NewString(),
		Text:   "keep it up!",
		Sender: model.ChatUser{ID: coach.String(), Name: "Coach"},
	}
	tr.channel.fire(model.ChannelEvent{Type: model.EventMessageNew, Message: &incoming})

	// Notification evaluation runs on the worker, not the event callback
	require.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, 5*time.Millisecond)
	msgs := m.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, incoming.ID, msgs[0].ID)
}

func TestOwnMessagesAreNotDispatched(t *testing.T) {
	m, tr, _, sink, user := setupSession(t)

	_, err := m.Initialize(context.Background(), user)
	require.NoError(t, err)
	_, err = m.ResolveChannel(context.Background(), user.ID, uuid.New())
	require.NoError(t, err)

	own := model.ChatMessage{
		ID:     uuid.NewString(),
		Text:   "thanks coach",
		Sender: model.ChatUser{ID: user.ID.String(), Name: user.Name},
	}
	fromPartner := model.ChatMessage{
		ID:     uuid.NewString(),
		Text:   "any time",
		Sender: model.ChatUser{ID: uuid.NewString(), Name: "Coach"},
	}
	tr.channel.fire(model.ChannelEvent{Type: model.EventMessageNew, Message: &own})
	tr.channel.fire(model.ChannelEvent{Type: model.EventMessageNew, Message: &fromPartner})

	// Both projected locally; only the partner's reaches the sink
	require.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{fromPartner.ID}, sink.ids())
	assert.Len(t, m.Messages(), 2)
}

func TestSlowSinkDoesNotStallEventDelivery(t *testing.T) {
	tr := &fakeTransport{}
	sink := &blockingSink{gate: make(chan struct{})}
	m := service.NewSessionManager(tr, &fakeTokenSource{}, sink)
	user := model.User{ID: uuid.New(), Name: "Student Sam", Role: model.RoleStudent}
	coach := model.ChatUser{ID: uuid.NewString(), Name: "Coach"}

	_, err := m.Initialize(context.Background(), user)
	require.NoError(t, err)
	_, err = m.ResolveChannel(context.Background(), user.ID, uuid.New())
	require.NoError(t, err)

	first := model.ChatMessage{ID: uuid.NewString(), Text: "one", Sender: coach}
	second := model.ChatMessage{ID: uuid.NewString(), Text: "two", Sender: coach}
	tr.channel.fire(model.ChannelEvent{Type: model.EventMessageNew, Message: &first})

	// The worker is now parked on the first message. Further events must
	// still return promptly from the handler and land in the projection.
	tr.channel.fire(model.ChannelEvent{Type: model.EventMessageNew, Message: &second})
	tr.channel.fire(model.ChannelEvent{Type: model.EventTypingStart, User: &coach})

	assert.Len(t, m.Messages(), 2)
	assert.Equal(t, []string{coach.ID}, m.TypingUsers())
	assert.Equal(t, 0, sink.count())

	close(sink.gate)

	// Arrival order survives the hand-off
	require.Eventually(t, func() bool { return sink.count() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{first.ID, second.ID}, sink.ids())
}

func TestProjectionTracksUpdatesAndDeletes(t *testing.T) {
	m, tr, _, _, user := setupSession(t)

	_, err := m.Initialize(context.Background(), user)
	require.NoError(t, err)
	_, err = m.ResolveChannel(context.Background(), user.ID, uuid.New())
	require.NoError(t, err)

	first := model.ChatMessage{ID: "m1", Text: "one", Sender: model.ChatUser{ID: "c"}}
	second := model.ChatMessage{ID: "m2", Text: "two", Sender: model.ChatUser{ID: "c"}}
	tr.channel.fire(model.ChannelEvent{Type: model.EventMessageNew, Message: &first})
	tr.channel.fire(model.ChannelEvent{Type: model.EventMessageNew, Message: &second})

	// Newest first
	msgs := m.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "m2", msgs[0].ID)

	edited := model.ChatMessage{ID: "m1", Text: "one, edited", Sender: model.ChatUser{ID: "c"}}
	tr.channel.fire(model.ChannelEvent{Type: model.EventMessageUpdated, Message: &edited})
	msgs = m.Messages()
	assert.Equal(t, "one, edited", msgs[1].Text)

	tr.channel.fire(model.ChannelEvent{Type: model.EventMessageDeleted, Message: &second})
	msgs = m.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "m1", msgs[0].ID)
}

func TestTypingEventsToggleState(t *testing.T) {
	m, tr, _, _, user := setupSession(t)

	_, err := m.Initialize(context.Background(), user)
	require.NoError(t, err)
	_, err = m.ResolveChannel(context.Background(), user.ID, uuid.New())
	require.NoError(t, err)

	coach := model.ChatUser{ID: "coach-1", Name: "Coach"}
	tr.channel.fire(model.ChannelEvent{Type: model.EventTypingStart, User: &coach})
	assert.Equal(t, []string{"coach-1"}, m.TypingUsers())

	tr.channel.fire(model.ChannelEvent{Type: model.EventTypingStop, User: &coach})
	assert.Empty(t, m.TypingUsers())
}

func TestSendMessageRequiresResolvedChannel(t *testing.T) {
	m, _, _, _, user := setupSession(t)

	_, err := m.Initialize(context.Background(), user)
	require.NoError(t, err)

	_, err = m.SendMessage(context.Background(), "coaching-none", "hi")
	assert.ErrorIs(t, err, service.ErrNotConnected)
}

func TestDisconnectUnbindsListenersBeforeTransportTeardown(t *testing.T) {
	m, tr, _, _, user := setupSession(t)

	_, err := m.Initialize(context.Background(), user)
	require.NoError(t, err)
	_, err = m.ResolveChannel(context.Background(), user.ID, uuid.New())
	require.NoError(t, err)
	channel := tr.channel

	require.NoError(t, m.Disconnect(context.Background()))

	assert.ElementsMatch(t, model.EventTypes, channel.offCalls)
	assert.Equal(t, 0, channel.boundTypes())
	assert.Equal(t, 1, tr.disconnects)
	assert.Nil(t, m.Session())
	assert.Empty(t, m.Messages())
}
