// notifytest fires a simulated inbound chat message at a running server so
// the full suppression/delivery path can be exercised end to end without a
// chat transport.
//
// Usage:
//
//	go run ./cmd/notifytest -user <uuid> -text "hello" [-server http://localhost:8080]
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/coachlink/coachlink/internal/model"
	"github.com/google/uuid"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "server base URL")
	user := flag.String("user", "", "recipient user ID (uuid, required)")
	sender := flag.String("sender", "Test Coach", "sender display name")
	text := flag.String("text", "Test notification from notifytest", "message text")
	channel := flag.String("channel", "", "channel ID (optional)")
	flag.Parse()

	userID, err := uuid.Parse(*user)
	if err != nil {
		log.Fatalf("❌ -user must be a valid uuid: %v", err)
	}

	payload, err := json.Marshal(model.TestWebhookRequest{
		UserID:     userID,
		SenderName: *sender,
		Text:       *text,
		ChannelID:  *channel,
	})
	if err != nil {
		log.Fatalf("❌ Failed to encode request: %v", err)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(*server+"/api/notifications/test-webhook", "application/json", bytes.NewReader(payload))
	if err != nil {
		log.Fatalf("❌ Request failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if resp.StatusCode != http.StatusAccepted {
		log.Fatalf("❌ Server returned %d: %s", resp.StatusCode, string(body))
	}

	fmt.Printf("✅ Dispatch scheduled for user %s: %s\n", userID, string(body))
	fmt.Println("📋 Check /api/notifications/logs/{userId} for the recorded outcome")
}
