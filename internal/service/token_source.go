package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/coachlink/coachlink/internal/model"
)

// HTTPTokenSource obtains transport tokens from the token-exchange
// endpoint (POST /api/stream-token). Calls are bounded by the client
// timeout; an indefinite hang here would stall session initialization.
type HTTPTokenSource struct {
	url    string
	client *http.Client
}

func NewHTTPTokenSource(url string, timeout time.Duration) *HTTPTokenSource {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPTokenSource{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// StreamToken exchanges the user's identity for a signed transport token
func (s *HTTPTokenSource) StreamToken(ctx context.Context, user model.User) (string, error) {
	body, err := json.Marshal(model.StreamTokenRequest{
		UserID:    user.ID,
		UserName:  user.Name,
		UserEmail: user.Email,
		UserRole:  user.Role,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errText, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("token exchange returned %d: %s", resp.StatusCode, string(errText))
	}

	var tokenResp model.StreamTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("invalid token exchange response: %w", err)
	}
	return tokenResp.Token, nil
}
