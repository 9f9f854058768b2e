package service

import (
	"context"
	"sync"
	"time"

	"github.com/coachlink/coachlink/internal/model"
	"github.com/google/uuid"
)

// PermissionStatus is the per-user notification permission state
type PermissionStatus string

const (
	PermissionUndetermined PermissionStatus = "undetermined"
	PermissionPending      PermissionStatus = "pending"
	PermissionGranted      PermissionStatus = "granted"
	PermissionDenied       PermissionStatus = "denied"
)

// TokenProvider is the slice of the registry the permission check needs
type TokenProvider interface {
	ActiveTokens(ctx context.Context, userID uuid.UUID) ([]model.NotificationToken, error)
}

// DevicePermissions tracks notification permission per user. The OS-level
// prompt happens on the device; what this side observes is whether a
// registration arrived. A denied user stays denied - no repeated prompting
// - until Reset, which a fresh registration triggers.
type DevicePermissions struct {
	tokens       TokenProvider
	pollInterval time.Duration

	mu    sync.Mutex
	state map[uuid.UUID]PermissionStatus
}

func NewDevicePermissions(tokens TokenProvider) *DevicePermissions {
	return &DevicePermissions{
		tokens:       tokens,
		pollInterval: 500 * time.Millisecond,
		state:        make(map[uuid.UUID]PermissionStatus),
	}
}

// Status reports the current permission state without prompting
func (p *DevicePermissions) Status(ctx context.Context, userID uuid.UUID) (PermissionStatus, error) {
	p.mu.Lock()
	cached := p.state[userID]
	p.mu.Unlock()

	if cached == PermissionDenied {
		return PermissionDenied, nil
	}

	tokens, err := p.tokens.ActiveTokens(ctx, userID)
	if err != nil {
		return cached, err
	}
	if len(tokens) > 0 {
		p.set(userID, PermissionGranted)
		return PermissionGranted, nil
	}
	if cached == "" {
		return PermissionUndetermined, nil
	}
	return cached, nil
}

// Request waits, bounded by ctx, for a registration to appear. A user
// already marked denied is not re-prompted; callers clear that with Reset.
func (p *DevicePermissions) Request(ctx context.Context, userID uuid.UUID) (PermissionStatus, error) {
	p.mu.Lock()
	if p.state[userID] == PermissionDenied {
		p.mu.Unlock()
		return PermissionDenied, nil
	}
	p.state[userID] = PermissionPending
	p.mu.Unlock()

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		tokens, err := p.tokens.ActiveTokens(ctx, userID)
		if err == nil && len(tokens) > 0 {
			p.set(userID, PermissionGranted)
			return PermissionGranted, nil
		}

		select {
		case <-ctx.Done():
			p.set(userID, PermissionDenied)
			return PermissionDenied, nil
		case <-ticker.C:
		}
	}
}

// Reset forgets a user's cached state so the next message may re-request.
// Invoked after a successful registration.
func (p *DevicePermissions) Reset(userID uuid.UUID) {
	p.mu.Lock()
	delete(p.state, userID)
	p.mu.Unlock()
}

func (p *DevicePermissions) set(userID uuid.UUID, s PermissionStatus) {
	p.mu.Lock()
	p.state[userID] = s
	p.mu.Unlock()
}
