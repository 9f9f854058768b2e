package handler

import (
	"net/http"

	"github.com/coachlink/coachlink/internal/model"
	"github.com/coachlink/coachlink/pkg/auth"
	"github.com/gin-gonic/gin"
)

// TokenHandler issues short-lived stream tokens for the chat transport
type TokenHandler struct {
	jwtManager *auth.JWTManager
}

func NewTokenHandler(jwtManager *auth.JWTManager) *TokenHandler {
	return &TokenHandler{jwtManager: jwtManager}
}

// IssueStreamToken godoc
// @Summary Exchange user identity for a chat stream token
// @Tags Stream
// @Accept json
// @Produce json
// @Param body body model.StreamTokenRequest true "Stream token request"
// @Success 200 {object} model.StreamTokenResponse
// @Failure 400 {object} model.ErrorResponse
// @Router /stream-token [post]
func (h *TokenHandler) IssueStreamToken(c *gin.Context) {
	var req model.StreamTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	token, err := h.jwtManager.GenerateToken(req.UserID, req.UserEmail, req.UserName, string(req.UserRole))
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "Failed to issue stream token"})
		return
	}

	c.JSON(http.StatusOK, model.StreamTokenResponse{Token: token})
}
