package handler_test

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/coachlink/coachlink/internal/handler"
	"github.com/coachlink/coachlink/internal/model"
	"github.com/coachlink/coachlink/pkg/auth"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueStreamTokenRoundTrip(t *testing.T) {
	gin.SetMode(gin.TestMode)
	manager := auth.NewJWTManager("test-secret", time.Hour)
	h := handler.NewTokenHandler(manager)

	router := gin.New()
	router.POST("/api/stream-token", h.IssueStreamToken)

	userID := uuid.New()
	w := postJSON(t, router, "/api/stream-token", model.StreamTokenRequest{
		UserID:    userID,
		UserName:  "Student Sam",
		UserEmail: "sam@example.com",
		UserRole:  model.RoleStudent,
	})

	require.Equal(t, http.StatusOK, w.Code)
	var resp model.StreamTokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	claims, err := manager.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "student", claims.Role)
}

func TestIssueStreamTokenRejectsUnknownRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := handler.NewTokenHandler(auth.NewJWTManager("test-secret", time.Hour))

	router := gin.New()
	router.POST("/api/stream-token", h.IssueStreamToken)

	w := postJSON(t, router, "/api/stream-token", map[string]string{
		"userId":    uuid.NewString(),
		"userName":  "X",
		"userEmail": "x@example.com",
		"userRole":  "admin",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
