package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/coachlink/coachlink/internal/model"
)

// expoMessage is one entry of the Expo push API request body
type expoMessage struct {
	To    []string          `json:"to"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
	Sound string            `json:"sound"`
}

type expoTicket struct {
	Status  string `json:"status"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
}

type expoResponse struct {
	Data []expoTicket `json:"data"`
}

// ExpoSender schedules device-displayed alerts through the Expo push
// gateway - the local-notification path when no remote push transport is
// configured for the recipient. Transient gateway failures are retried
// with exponential backoff inside the caller's context.
type ExpoSender struct {
	baseURL string
	client  *http.Client
}

func NewExpoSender(baseURL string, timeout time.Duration) *ExpoSender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ExpoSender{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Schedule sends the alert immediately (trigger delay zero) and returns
// the gateway's ticket id for the first accepted receipt.
func (s *ExpoSender) Schedule(ctx context.Context, tokens []string, content model.NotificationContent) (string, error) {
	if len(tokens) == 0 {
		return "", fmt.Errorf("no push tokens to schedule against")
	}

	payload, err := json.Marshal(expoMessage{
		To:    tokens,
		Title: content.Title,
		Body:  content.Body,
		Data:  content.Data,
		Sound: "default",
	})
	if err != nil {
		return "", err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	bo.MaxElapsedTime = 0

	var ticketID string
	operation := func() error {
		id, err := s.post(ctx, payload)
		if err != nil {
			return err
		}
		ticketID = id
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, 3), ctx)); err != nil {
		return "", err
	}
	return ticketID, nil
}

func (s *ExpoSender) post(ctx context.Context, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(payload))
	if err != nil {
		return "", backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return "", fmt.Errorf("expo gateway returned %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		errText, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", backoff.Permanent(fmt.Errorf("expo gateway returned %d: %s", resp.StatusCode, string(errText)))
	}

	var parsed expoResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", backoff.Permanent(fmt.Errorf("invalid expo response: %w", err))
	}
	for _, ticket := range parsed.Data {
		if ticket.Status == "ok" {
			return ticket.ID, nil
		}
	}
	if len(parsed.Data) > 0 {
		return "", backoff.Permanent(fmt.Errorf("expo rejected notification: %s", parsed.Data[0].Message))
	}
	return "", backoff.Permanent(fmt.Errorf("expo returned no tickets"))
}
