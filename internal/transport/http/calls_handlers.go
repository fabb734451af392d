package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/meshcall/meshcall-server/internal/store"
)

// CallsHandlers provides HTTP handlers for call history endpoints.
type CallsHandlers struct {
	history store.Store
	log     *zerolog.Logger
}

// NewCallsHandlers creates a new calls handlers instance.
func NewCallsHandlers(history store.Store, logger *zerolog.Logger) *CallsHandlers {
	return &CallsHandlers{history: history, log: logger}
}

// CallResponse represents a call in API responses.
type CallResponse struct {
	ID             string  `json:"id"`
	ConversationID string  `json:"conversation_id"`
	Mode           string  `json:"mode"`
	Initiator      string  `json:"initiator"`
	Status         string  `json:"status"`
	StartedAt      string  `json:"started_at"`
	EndedAt        *string `json:"ended_at,omitempty"`
}

// ParticipantResponse represents a call participant in API responses.
type ParticipantResponse struct {
	ID           string  `json:"id"`
	Addr         string  `json:"addr"`
	Username     string  `json:"username,omitempty"`
	AudioEnabled bool    `json:"audio_enabled"`
	VideoEnabled bool    `json:"video_enabled"`
	JoinedAt     string  `json:"joined_at"`
	LeftAt       *string `json:"left_at,omitempty"`
}

func callToResponse(c *store.Call) CallResponse {
	resp := CallResponse{
		ID:             c.ID,
		ConversationID: c.ConversationID,
		Mode:           c.Mode,
		Initiator:      c.Initiator,
		Status:         c.Status,
		StartedAt:      c.StartedAt.Format(time.RFC3339),
	}
	if c.EndedAt != nil {
		endedAt := c.EndedAt.Format(time.RFC3339)
		resp.EndedAt = &endedAt
	}
	return resp
}

func participantToResponse(p *store.CallParticipant) ParticipantResponse {
	resp := ParticipantResponse{
		ID:           p.ID,
		Addr:         p.Address,
		Username:     p.Username,
		AudioEnabled: p.IsAudioEnabled,
		VideoEnabled: p.IsVideoEnabled,
		JoinedAt:     p.JoinedAt.Format(time.RFC3339),
	}
	if p.LeftAt != nil {
		leftAt := p.LeftAt.Format(time.RFC3339)
		resp.LeftAt = &leftAt
	}
	return resp
}

// GetCall retrieves a call with its participants.
// GET /api/calls/:id
func (h *CallsHandlers) GetCall(c *gin.Context) {
	callID := c.Param("id")
	if callID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "call id required"})
		return
	}

	call, err := h.history.GetCall(c.Request.Context(), callID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "call not found"})
			return
		}
		h.log.Error().Err(err).Str("call_id", callID).Msg("failed to get call")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	participants, err := h.history.ListParticipants(c.Request.Context(), callID)
	if err != nil {
		h.log.Error().Err(err).Str("call_id", callID).Msg("failed to list participants")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	resp := struct {
		CallResponse
		Participants []ParticipantResponse `json:"participants"`
	}{CallResponse: callToResponse(call)}
	for _, p := range participants {
		resp.Participants = append(resp.Participants, participantToResponse(p))
	}

	c.JSON(http.StatusOK, resp)
}

// ListActiveCalls lists live calls the caller participates in.
// GET /api/calls/active
func (h *CallsHandlers) ListActiveCalls(c *gin.Context) {
	addr, exists := c.Get(ContextKeyAddr)
	if !exists {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	calls, err := h.history.ListActiveCalls(c.Request.Context(), addr.(string))
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list active calls")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	resp := make([]CallResponse, 0, len(calls))
	for _, call := range calls {
		resp = append(resp, callToResponse(call))
	}
	c.JSON(http.StatusOK, resp)
}
