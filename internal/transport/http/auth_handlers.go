package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/meshcall/meshcall-server/internal/auth"
)

// AuthHandlers provides HTTP handlers for identity endpoints.
type AuthHandlers struct {
	service *auth.Service
	log     *zerolog.Logger
}

// NewAuthHandlers creates a new auth handlers instance.
func NewAuthHandlers(svc *auth.Service, logger *zerolog.Logger) *AuthHandlers {
	return &AuthHandlers{service: svc, log: logger}
}

// GuestRequest is the request body for minting a guest identity.
type GuestRequest struct {
	Username string `json:"username"`
}

// GuestResponse carries the minted identity.
type GuestResponse struct {
	Token    string `json:"token"`
	Addr     string `json:"addr"`
	Username string `json:"username"`
}

// Guest mints an anonymous signaling identity.
// POST /api/auth/guest
func (h *AuthHandlers) Guest(c *gin.Context) {
	var req GuestRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	identity, err := h.service.IssueGuest(req.Username)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidUsername) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid username"})
			return
		}
		h.log.Error().Err(err).Msg("failed to issue guest identity")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusCreated, GuestResponse{
		Token:    identity.Token,
		Addr:     identity.Addr,
		Username: identity.Username,
	})
}
