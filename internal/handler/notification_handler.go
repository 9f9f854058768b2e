package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/coachlink/coachlink/internal/model"
	"github.com/coachlink/coachlink/internal/repository"
	"github.com/coachlink/coachlink/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// NotificationHandler exposes the token registry, activity tracker and
// notification log over HTTP.
type NotificationHandler struct {
	registry   *service.RegistryService
	perms      *service.DevicePermissions
	activity   *service.ActivityTracker
	dispatcher *service.Dispatcher
	logs       *repository.NotificationLogRepository
}

func NewNotificationHandler(
	registry *service.RegistryService,
	perms *service.DevicePermissions,
	activity *service.ActivityTracker,
	dispatcher *service.Dispatcher,
	logs *repository.NotificationLogRepository,
) *NotificationHandler {
	return &NotificationHandler{
		registry:   registry,
		perms:      perms,
		activity:   activity,
		dispatcher: dispatcher,
		logs:       logs,
	}
}

// RegisterToken godoc
// @Summary Register a push token for a user and platform
// @Tags Notifications
// @Accept json
// @Produce json
// @Param body body model.RegisterTokenRequest true "Register token request"
// @Success 200 {object} model.SuccessResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 422 {object} model.ErrorResponse
// @Failure 503 {object} model.ErrorResponse
// @Router /notifications/register [post]
func (h *NotificationHandler) RegisterToken(c *gin.Context) {
	var req model.RegisterTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	if err := h.registry.Register(c.Request.Context(), req); err != nil {
		if errors.Is(err, service.ErrUnsupportedEnvironment) {
			c.JSON(http.StatusUnprocessableEntity, model.ErrorResponse{Error: err.Error()})
			return
		}
		var netErr *service.NetworkError
		if errors.As(err, &netErr) {
			c.JSON(http.StatusServiceUnavailable, model.ErrorResponse{Error: "Token registration failed", Message: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: err.Error()})
		return
	}

	// A fresh registration clears any cached permission denial so the
	// next dispatch re-evaluates device state.
	h.perms.Reset(req.UserID)

	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Token registered"})
}

// UnregisterToken godoc
// @Summary Deactivate a user's push token for a platform
// @Tags Notifications
// @Produce json
// @Param userId path string true "User ID"
// @Param platform path string true "Platform" Enums(ios, android, web)
// @Success 200 {object} model.SuccessResponse
// @Failure 400 {object} model.ErrorResponse
// @Router /notifications/tokens/{userId}/{platform} [delete]
func (h *NotificationHandler) UnregisterToken(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid user ID"})
		return
	}
	platform := model.Platform(c.Param("platform"))

	if err := h.registry.Unregister(c.Request.Context(), userID, platform); err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "Failed to unregister token"})
		return
	}

	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Token deactivated"})
}

// GetTokens godoc
// @Summary List a user's active push tokens
// @Tags Notifications
// @Produce json
// @Param userId path string true "User ID"
// @Success 200 {object} model.SuccessResponse
// @Failure 400 {object} model.ErrorResponse
// @Router /notifications/tokens/{userId} [get]
func (h *NotificationHandler) GetTokens(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid user ID"})
		return
	}

	tokens, err := h.registry.ActiveTokens(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "Failed to load tokens"})
		return
	}

	c.JSON(http.StatusOK, model.SuccessResponse{Message: "OK", Data: tokens})
}

// GetLogs godoc
// @Summary List a user's delivery history, newest first
// @Tags Notifications
// @Produce json
// @Param userId path string true "User ID"
// @Param limit query int false "Max entries (default 50, max 200)"
// @Success 200 {object} model.SuccessResponse
// @Failure 400 {object} model.ErrorResponse
// @Router /notifications/logs/{userId} [get]
func (h *NotificationHandler) GetLogs(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid user ID"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	entries, err := h.logs.ListByUser(userID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "Failed to load notification logs"})
		return
	}

	c.JSON(http.StatusOK, model.SuccessResponse{Message: "OK", Data: entries})
}

// TestWebhook godoc
// @Summary Simulate an inbound chat message to exercise the delivery path
// @Tags Notifications
// @Accept json
// @Produce json
// @Param body body model.TestWebhookRequest true "Test webhook request"
// @Success 202 {object} model.SuccessResponse
// @Failure 400 {object} model.ErrorResponse
// @Router /notifications/test-webhook [post]
func (h *NotificationHandler) TestWebhook(c *gin.Context) {
	var req model.TestWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	sender := model.ChatUser{
		ID:   uuid.NewString(),
		Name: req.SenderName,
	}
	msg := model.ChatMessage{
		ID:        uuid.NewString(),
		ChannelID: req.ChannelID,
		Text:      req.Text,
		Sender:    sender,
		CreatedAt: time.Now(),
	}
	recipient := model.User{ID: req.UserID}

	// Dispatch outlives the request, so it gets a detached context.
	go h.dispatcher.HandleIncomingMessage(context.Background(), recipient, msg, sender)

	c.JSON(http.StatusAccepted, model.SuccessResponse{Message: "Dispatch scheduled"})
}

// SetActivity godoc
// @Summary Report whether a user is actively viewing the chat screen
// @Tags Activity
// @Accept json
// @Produce json
// @Param body body model.ActivityRequest true "Activity request"
// @Success 200 {object} model.SuccessResponse
// @Failure 400 {object} model.ErrorResponse
// @Router /activity [post]
func (h *NotificationHandler) SetActivity(c *gin.Context) {
	var req model.ActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	// The in-memory flag is applied before persistence, so a storage
	// failure degrades history but never suppression accuracy.
	if err := h.activity.SetActivity(c.Request.Context(), req.UserID, req.Platform, *req.IsInChat); err != nil {
		log.Printf("⚠️ Activity persistence failed for user %s: %v", req.UserID, err)
	}

	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Activity recorded"})
}
