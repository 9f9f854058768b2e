package push_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coachlink/coachlink/internal/model"
	"github.com/coachlink/coachlink/pkg/push"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContent() model.NotificationContent {
	return model.NotificationContent{
		Title: "Coach Anna",
		Body:  "Great session today!",
		Data:  map[string]string{"type": model.NotificationTypeChatMessage},
	}
}

func TestScheduleReturnsTicketID(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"status":"ok","id":"ticket-42"}]}`))
	}))
	defer srv.Close()

	sender := push.NewExpoSender(srv.URL, 5*time.Second)
	id, err := sender.Schedule(context.Background(), []string{"ExponentPushToken[x]"}, testContent())

	require.NoError(t, err)
	assert.Equal(t, "ticket-42", id)
	assert.Equal(t, "Coach Anna", got["title"])
	assert.Equal(t, "default", got["sound"])
}

func TestScheduleRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"status":"ok","id":"ticket-7"}]}`))
	}))
	defer srv.Close()

	sender := push.NewExpoSender(srv.URL, 5*time.Second)
	id, err := sender.Schedule(context.Background(), []string{"tok"}, testContent())

	require.NoError(t, err)
	assert.Equal(t, "ticket-7", id)
	assert.Equal(t, int32(3), calls.Load())
}

func TestScheduleDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errors":[{"message":"invalid token"}]}`))
	}))
	defer srv.Close()

	sender := push.NewExpoSender(srv.URL, 5*time.Second)
	_, err := sender.Schedule(context.Background(), []string{"tok"}, testContent())

	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestScheduleRejectsDeviceNotRegistered(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"status":"error","message":"DeviceNotRegistered"}]}`))
	}))
	defer srv.Close()

	sender := push.NewExpoSender(srv.URL, 5*time.Second)
	_, err := sender.Schedule(context.Background(), []string{"tok"}, testContent())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "DeviceNotRegistered")
}

func TestScheduleRequiresTokens(t *testing.T) {
	sender := push.NewExpoSender("http://localhost:0", time.Second)
	_, err := sender.Schedule(context.Background(), nil, testContent())
	require.Error(t, err)
}
