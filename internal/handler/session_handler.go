package handler

import (
	"errors"
	"net/http"

	"github.com/coachlink/coachlink/internal/model"
	"github.com/coachlink/coachlink/internal/service"
	"github.com/gin-gonic/gin"
)

// SessionHandler drives the background chat session over HTTP
type SessionHandler struct {
	sessions *service.SessionManager
	boot     *service.Bootstrapper
}

func NewSessionHandler(sessions *service.SessionManager, boot *service.Bootstrapper) *SessionHandler {
	return &SessionHandler{sessions: sessions, boot: boot}
}

// Bootstrap godoc
// @Summary Connect the chat transport and join the coaching channel
// @Tags Sessions
// @Accept json
// @Produce json
// @Param body body model.BootstrapRequest true "Bootstrap request"
// @Success 200 {object} model.SessionStatusResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 502 {object} model.ErrorResponse
// @Router /sessions/bootstrap [post]
func (h *SessionHandler) Bootstrap(c *gin.Context) {
	var req model.BootstrapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	partnerRole := model.RoleCoach
	if req.UserRole == model.RoleCoach {
		partnerRole = model.RoleStudent
	}

	user := model.User{ID: req.UserID, Name: req.UserName, Role: req.UserRole}
	partner := model.User{ID: req.PartnerID, Name: req.PartnerName, Role: partnerRole}

	if err := h.boot.Ensure(c.Request.Context(), user, partner); err != nil {
		var transportErr *service.TransportError
		if errors.As(err, &transportErr) {
			c.JSON(http.StatusBadGateway, model.ErrorResponse{Error: "Chat transport unavailable", Message: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, model.SessionStatusResponse{Ready: h.boot.IsReady(), Session: h.sessions.Session()})
}

// Status godoc
// @Summary Report whether the background session is connected
// @Tags Sessions
// @Produce json
// @Success 200 {object} model.SessionStatusResponse
// @Router /sessions/status [get]
func (h *SessionHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, model.SessionStatusResponse{Ready: h.boot.IsReady(), Session: h.sessions.Session()})
}

// SendMessage godoc
// @Summary Send a chat message on the active coaching channel
// @Tags Chat
// @Accept json
// @Produce json
// @Param body body model.SendMessageRequest true "Send message request"
// @Success 201 {object} model.ChatMessage
// @Failure 400 {object} model.ErrorResponse
// @Failure 409 {object} model.ErrorResponse
// @Failure 502 {object} model.ErrorResponse
// @Router /chat/messages [post]
func (h *SessionHandler) SendMessage(c *gin.Context) {
	var req model.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	msg, err := h.sessions.SendMessage(c.Request.Context(), req.ChannelID, req.Text)
	if err != nil {
		if errors.Is(err, service.ErrNotConnected) {
			c.JSON(http.StatusConflict, model.ErrorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusBadGateway, model.ErrorResponse{Error: "Failed to send message", Message: err.Error()})
		return
	}

	c.JSON(http.StatusCreated, msg)
}

// GetMessages godoc
// @Summary List messages from the active channel, newest first
// @Tags Chat
// @Produce json
// @Success 200 {object} model.SuccessResponse
// @Router /chat/messages [get]
func (h *SessionHandler) GetMessages(c *gin.Context) {
	c.JSON(http.StatusOK, model.SuccessResponse{Message: "OK", Data: h.sessions.Messages()})
}
