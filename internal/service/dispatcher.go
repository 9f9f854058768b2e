package service

import (
	"context"
	"log"
	"time"

	"github.com/coachlink/coachlink/internal/model"
	"github.com/google/uuid"
)

// ActivityReader is the dispatcher's view of the activity tracker: a
// synchronous cache read, never a round trip.
type ActivityReader interface {
	IsInChat(userID uuid.UUID) bool
	LastPlatform(userID uuid.UUID) model.Platform
}

// LogStore appends notification outcomes
type LogStore interface {
	Create(entry *model.NotificationLog) error
}

// Permissions is the dispatcher's view of per-user notification permission
type Permissions interface {
	Status(ctx context.Context, userID uuid.UUID) (PermissionStatus, error)
	Request(ctx context.Context, userID uuid.UUID) (PermissionStatus, error)
}

// RemotePusher delivers a system-level alert through the remote push
// transport (FCM). Send returns nil only on confirmed dispatch.
type RemotePusher interface {
	Send(ctx context.Context, tokens []string, content model.NotificationContent) error
}

// LocalNotifier schedules a device-displayed alert directly (the Expo
// gateway, trigger delay zero). Returns the scheduling receipt id.
type LocalNotifier interface {
	Schedule(ctx context.Context, tokens []string, content model.NotificationContent) (string, error)
}

// maxBodyLen is the notification body cap; longer message text is cut and
// marked with an ellipsis.
const maxBodyLen = 100

// Dispatcher decides, for every incoming chat event, whether to suppress,
// rely on remote push, or schedule a local alert - and records every
// outcome. It is the only writer of notification_logs.
type Dispatcher struct {
	activity          ActivityReader
	registry          TokenProvider
	perms             Permissions
	logs              LogStore
	remote            RemotePusher // nil when no remote push path is configured
	local             LocalNotifier
	permissionTimeout time.Duration
}

func NewDispatcher(
	activity ActivityReader,
	registry TokenProvider,
	perms Permissions,
	logs LogStore,
	remote RemotePusher,
	local LocalNotifier,
	permissionTimeout time.Duration,
) *Dispatcher {
	if permissionTimeout <= 0 {
		permissionTimeout = 10 * time.Second
	}
	return &Dispatcher{
		activity:          activity,
		registry:          registry,
		perms:             perms,
		logs:              logs,
		remote:            remote,
		local:             local,
		permissionTimeout: permissionTimeout,
	}
}

// HandleIncomingMessage evaluates one incoming message for the recipient
// and writes exactly one log entry for the outcome. It never returns or
// panics past this boundary: an unhandled failure here would desynchronize
// the transport listener state.
//
// The activity flag is read once, up front. If it flips to true between
// that read and scheduling, the notification is still shown: a spurious
// alert beats a silently dropped one, suppression is a nicety not a
// safety property.
func (d *Dispatcher) HandleIncomingMessage(ctx context.Context, recipient model.User, msg model.ChatMessage, sender model.ChatUser) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ Dispatcher: recovered from panic handling message %s: %v", msg.ID, r)
		}
	}()

	content := model.NotificationContent{
		Title: sender.Name,
		Body:  truncateBody(msg.Text, maxBodyLen),
		Data: map[string]string{
			"type":       model.NotificationTypeChatMessage,
			"channel_id": msg.ChannelID,
			"message_id": msg.ID,
			"sender_id":  sender.ID,
		},
	}

	// Outcomes logged before the token lookup still get a platform when the
	// activity cache knows one
	platform := d.activity.LastPlatform(recipient.ID)

	if d.activity.IsInChat(recipient.ID) {
		d.logOutcome(recipient.ID, platform, content, model.OutcomeSuppressed, "")
		return
	}

	status, err := d.perms.Status(ctx, recipient.ID)
	if err != nil {
		log.Printf("⚠️  Dispatcher: permission check failed for %s: %v", recipient.ID, err)
	}
	if status != PermissionGranted {
		reqCtx, cancel := context.WithTimeout(ctx, d.permissionTimeout)
		status, _ = d.perms.Request(reqCtx, recipient.ID)
		cancel()
	}
	if status != PermissionGranted {
		d.logOutcome(recipient.ID, platform, content, model.OutcomeFailed, ErrPermissionDenied.Error())
		return
	}

	tokens, err := d.registry.ActiveTokens(ctx, recipient.ID)
	if err != nil {
		d.logOutcome(recipient.ID, platform, content, model.OutcomeFailed, err.Error())
		return
	}

	var remoteTokens, localTokens []string
	for i, t := range tokens {
		if i == 0 {
			platform = t.Platform
		}
		switch t.TokenType {
		case model.TokenKindFCM:
			remoteTokens = append(remoteTokens, t.Token)
		default:
			localTokens = append(localTokens, t.Token)
		}
	}

	// Prefer the remote push transport: the system alert arrives without a
	// local duplicate, and "sent" is logged only on its confirmed ack.
	var remoteErr error
	if d.remote != nil && len(remoteTokens) > 0 {
		if remoteErr = d.remote.Send(ctx, remoteTokens, content); remoteErr == nil {
			d.logOutcome(recipient.ID, platform, content, model.OutcomeSent, "")
			return
		}
		log.Printf("⚠️  Dispatcher: remote push failed for %s, falling back to local: %v", recipient.ID, remoteErr)
	}

	if len(localTokens) == 0 {
		switch {
		case len(tokens) == 0:
			d.logOutcome(recipient.ID, platform, content, model.OutcomeFailed, "no active device registration")
		case remoteErr != nil:
			d.logOutcome(recipient.ID, platform, content, model.OutcomeFailed, "remote push failed: "+remoteErr.Error())
		default:
			d.logOutcome(recipient.ID, platform, content, model.OutcomeFailed, "no local-capable registration")
		}
		return
	}

	if _, err := d.local.Schedule(ctx, localTokens, content); err != nil {
		schedErr := &SchedulingError{Err: err}
		d.logOutcome(recipient.ID, platform, content, model.OutcomeFailed, schedErr.Error())
		return
	}

	d.logOutcome(recipient.ID, platform, content, model.OutcomeDelivered, "")
}

// logOutcome appends the single log entry for one evaluation. Log failures
// are telemetry loss, not delivery failures; they are reported and dropped.
func (d *Dispatcher) logOutcome(userID uuid.UUID, platform model.Platform, content model.NotificationContent, status model.Outcome, errText string) {
	entry := &model.NotificationLog{
		UserID:       userID,
		Type:         model.NotificationTypeChatMessage,
		Title:        content.Title,
		Body:         content.Body,
		Status:       status,
		Platform:     platform,
		ErrorMessage: errText,
		SentAt:       time.Now(),
	}
	if err := d.logs.Create(entry); err != nil {
		log.Printf("⚠️  Dispatcher: failed to write notification log for %s: %v", userID, err)
	}
}

// truncateBody cuts message text to max characters, marking the cut with
// an ellipsis. Counts runes, not bytes.
func truncateBody(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
