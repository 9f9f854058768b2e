package service

import (
	"context"
	"log"
	"sync"

	"github.com/coachlink/coachlink/internal/model"
	"github.com/google/uuid"
)

// Bootstrapper keeps a chat session alive for a user who has no chat
// screen mounted, so incoming-message events still reach the dispatcher
// while the app is backgrounded but the process lives.
type Bootstrapper struct {
	sessions *SessionManager
	activity *ActivityTracker

	mu       sync.RWMutex
	ready    bool
	readyFor uuid.UUID
}

func NewBootstrapper(sessions *SessionManager, activity *ActivityTracker) *Bootstrapper {
	return &Bootstrapper{sessions: sessions, activity: activity}
}

// Ensure initializes the background session for the coaching pair.
// Idempotent: re-running for the same user id while ready is a no-op.
func (b *Bootstrapper) Ensure(ctx context.Context, user, partner model.User) error {
	b.mu.RLock()
	if b.ready && b.readyFor == user.ID {
		b.mu.RUnlock()
		log.Printf("🔄 Background session already initialized for %s", user.ID)
		return nil
	}
	b.mu.RUnlock()

	if _, err := b.sessions.Initialize(ctx, user); err != nil {
		return err
	}
	b.sessions.setPartner(partner)

	// Role decides the slot, not who bootstrapped first
	studentID, coachID := user.ID, partner.ID
	if user.Role == model.RoleCoach {
		studentID, coachID = partner.ID, user.ID
	}

	if _, err := b.sessions.ResolveChannel(ctx, studentID, coachID); err != nil {
		return err
	}

	// Warm the suppression cache off the hot path
	if b.activity != nil {
		b.activity.Prime(ctx, user.ID)
	}

	b.mu.Lock()
	b.ready = true
	b.readyFor = user.ID
	b.mu.Unlock()

	log.Printf("✅ Background session ready: user=%s partner=%s", user.Name, partner.Name)
	return nil
}

// IsReady reports whether a background session is live (diagnostics)
func (b *Bootstrapper) IsReady() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ready
}

// Shutdown tears the background session down
func (b *Bootstrapper) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	b.ready = false
	b.readyFor = uuid.Nil
	b.mu.Unlock()
	return b.sessions.Disconnect(ctx)
}
