package service

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/coachlink/coachlink/internal/model"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const activityChannel = "coachlink:activity"

// ActivityStore persists activity records
type ActivityStore interface {
	Upsert(activity *model.UserActivity) error
	Get(userID uuid.UUID) (*model.UserActivity, error)
}

type activityEntry struct {
	inChat     bool
	platform   model.Platform
	observedAt time.Time
}

// ActivityTracker is the single source of truth for suppression decisions.
// The in-memory cache is what the dispatcher reads on the hot notification
// path; the database row and the Redis fan-out are best-effort mirrors.
// It uses Redis Pub/Sub so every instance converges on the same flag.
type ActivityTracker struct {
	store ActivityStore
	rdb   *redis.Client

	mu    sync.RWMutex
	cache map[uuid.UUID]activityEntry
}

// NewActivityTracker creates a tracker. rdb may be nil in tests; fan-out
// is then disabled.
func NewActivityTracker(store ActivityStore, rdb *redis.Client) *ActivityTracker {
	return &ActivityTracker{
		store: store,
		rdb:   rdb,
		cache: make(map[uuid.UUID]activityEntry),
	}
}

// Run subscribes to the activity fan-out and applies remote updates until
// the context is cancelled
func (t *ActivityTracker) Run(ctx context.Context) {
	if t.rdb == nil {
		return
	}

	pubsub := t.rdb.Subscribe(ctx, activityChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	log.Println("📡 Activity fan-out subscriber started")

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-ch:
			var b model.ActivityBroadcast
			if err := json.Unmarshal([]byte(msg.Payload), &b); err != nil {
				log.Printf("⚠️  Activity fan-out: dropping malformed payload: %v", err)
				continue
			}
			t.apply(b.UserID, b.IsInChat, b.Platform, time.Unix(0, b.ObservedAt))
		}
	}
}

// SetActivity records whether the user is viewing the chat screen. Screen
// mount/unmount and app-lifecycle transitions both land here; the most
// recent signal wins. The in-memory flag is updated before anything else,
// so suppression correctness never depends on the database or Redis being
// reachable. The returned error is telemetry only.
func (t *ActivityTracker) SetActivity(ctx context.Context, userID uuid.UUID, platform model.Platform, inChat bool) error {
	now := time.Now()
	t.apply(userID, inChat, platform, now)

	t.publish(ctx, model.ActivityBroadcast{
		UserID:     userID,
		IsInChat:   inChat,
		Platform:   platform,
		ObservedAt: now.UnixNano(),
	})

	err := t.store.Upsert(&model.UserActivity{
		UserID:       userID,
		IsInChat:     inChat,
		LastActivity: now,
		Platform:     platform,
	})
	if err != nil {
		log.Printf("⚠️  Failed to persist activity for %s: %v", userID, err)
		return &NetworkError{Op: "activity upsert", Err: err}
	}
	return nil
}

// IsInChat returns the latest known flag for a user. Cache only, never a
// round trip. Unknown users are not in chat.
func (t *ActivityTracker) IsInChat(userID uuid.UUID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cache[userID].inChat
}

// LastPlatform returns the platform of the user's most recent activity
// signal, or empty when unknown
func (t *ActivityTracker) LastPlatform(userID uuid.UUID) model.Platform {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cache[userID].platform
}

// Prime warms the cache from persisted state. Called during session
// bootstrap, off the notification hot path. A user with no record is
// simply left unknown.
func (t *ActivityTracker) Prime(ctx context.Context, userID uuid.UUID) {
	activity, err := t.store.Get(userID)
	if err != nil || activity == nil {
		return
	}
	t.apply(userID, activity.IsInChat, activity.Platform, activity.LastActivity)
}

// apply writes the cache entry unless a newer observation is already there.
// The guard keeps last_activity monotonically non-decreasing per user even
// when local writes race the Redis fan-out.
func (t *ActivityTracker) apply(userID uuid.UUID, inChat bool, platform model.Platform, observedAt time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.cache[userID]; ok && existing.observedAt.After(observedAt) {
		return
	}
	t.cache[userID] = activityEntry{inChat: inChat, platform: platform, observedAt: observedAt}
}

func (t *ActivityTracker) publish(ctx context.Context, b model.ActivityBroadcast) {
	if t.rdb == nil {
		return
	}
	data, err := json.Marshal(b)
	if err != nil {
		log.Printf("⚠️  Failed to marshal activity broadcast: %v", err)
		return
	}
	if err := t.rdb.Publish(ctx, activityChannel, data).Err(); err != nil {
		log.Printf("⚠️  Failed to publish activity broadcast: %v", err)
	}
}
