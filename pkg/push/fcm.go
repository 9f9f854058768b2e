package push

import (
	"context"
	"fmt"
	"log"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/coachlink/coachlink/internal/model"
	"github.com/sony/gobreaker/v2"
	"google.golang.org/api/option"
)

// FCMService is the remote push path. A circuit breaker guards the FCM
// API: once it trips, dispatch attempts fail fast and the dispatcher
// falls back to the local path instead of stalling on a dead upstream.
type FCMService struct {
	client  *messaging.Client
	breaker *gobreaker.CircuitBreaker[*messaging.BatchResponse]
}

// NewFCMService creates the FCM push sender. Missing or broken credentials
// disable remote push rather than blocking startup.
func NewFCMService(credentialsFile string) (*FCMService, error) {
	if credentialsFile == "" {
		log.Println("⚠️ Firebase credentials not provided, remote push disabled")
		return nil, nil
	}

	opt := option.WithCredentialsFile(credentialsFile)
	app, err := firebase.NewApp(context.Background(), nil, opt)
	if err != nil {
		log.Printf("⚠️ Failed to initialize Firebase app: %v (remote push disabled)", err)
		return nil, nil
	}

	client, err := app.Messaging(context.Background())
	if err != nil {
		log.Printf("⚠️ Failed to get messaging client: %v", err)
		return nil, nil
	}

	breaker := gobreaker.NewCircuitBreaker[*messaging.BatchResponse](gobreaker.Settings{
		Name:    "fcm",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("⚠️ FCM circuit breaker: %s -> %s", from, to)
		},
	})

	log.Println("✅ Firebase FCM initialized")
	return &FCMService{client: client, breaker: breaker}, nil
}

// Send dispatches a multicast push to the given FCM tokens. Returns nil
// only when at least one token was accepted - the dispatcher logs "sent"
// strictly on confirmed dispatch.
func (s *FCMService) Send(ctx context.Context, tokens []string, content model.NotificationContent) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("fcm not configured")
	}
	if len(tokens) == 0 {
		return fmt.Errorf("no fcm tokens")
	}

	message := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: content.Title,
			Body:  content.Body,
		},
		Data: content.Data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound: "default",
				},
			},
		},
	}

	br, err := s.breaker.Execute(func() (*messaging.BatchResponse, error) {
		return s.client.SendEachForMulticast(ctx, message)
	})
	if err != nil {
		return fmt.Errorf("error sending multicast message: %w", err)
	}

	if br.FailureCount > 0 {
		for idx, resp := range br.Responses {
			if !resp.Success {
				log.Printf("⚠️ FCM failure for token %s: %v", tokens[idx], resp.Error)
			}
		}
	}
	if br.SuccessCount == 0 {
		return fmt.Errorf("fcm rejected all %d tokens", len(tokens))
	}

	return nil
}
