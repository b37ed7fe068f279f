package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/boardcall/internal/callengine"
	"github.com/vovakirdan/boardcall/internal/service/calls"
)

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// AuthRequest is the optional body of the credential endpoints.
type AuthRequest struct {
	Name string `json:"name"`
}

// AuthResponse carries the minted credential back to the browser.
type AuthResponse struct {
	ParticipantID string `json:"participantId"`
	AuthToken     string `json:"authToken"`
	MeetingID     string `json:"meetingId"`
}

// AuthHandlers provides HTTP handlers for the credential endpoints.
type AuthHandlers struct {
	service *calls.Service
	log     *zerolog.Logger
}

// NewAuthHandlers creates a new auth handlers instance.
func NewAuthHandlers(svc *calls.Service, logger *zerolog.Logger) *AuthHandlers {
	return &AuthHandlers{
		service: svc,
		log:     logger,
	}
}

// HostAuth mints a credential for the whiteboard call.
// POST /api/rtk/auth
func (h *AuthHandlers) HostAuth(c *gin.Context) {
	h.issue(c, calls.AudienceHost)
}

// AudienceAuth mints a credential for the audience participation call.
// POST /api/rtk/audience-auth
func (h *AuthHandlers) AudienceAuth(c *gin.Context) {
	h.issue(c, calls.AudienceViewer)
}

func (h *AuthHandlers) issue(c *gin.Context, audience calls.Audience) {
	var req AuthRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.log.Debug().Err(err).Msg("invalid auth request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	cred, err := h.service.IssueCredential(c.Request.Context(), audience, req.Name)
	if err != nil {
		var cfgErr *calls.ConfigError
		var upErr *callengine.UpstreamError
		switch {
		case errors.As(err, &cfgErr):
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: cfgErr.Message})
		case errors.Is(err, callengine.ErrUpstreamProtocol):
			h.log.Error().Err(err).Str("audience", string(audience)).Msg("RealtimeKit API error response")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "RealtimeKit API returned unsuccessful response"})
		case errors.As(err, &upErr):
			h.log.Error().Int("status", upErr.Status).Str("body", upErr.Message).Str("audience", string(audience)).Msg("RealtimeKit API error")
			c.JSON(upstreamStatus(upErr.Status), ErrorResponse{Error: "RealtimeKit API error: " + upErr.Message})
		default:
			h.log.Error().Err(err).Str("audience", string(audience)).Msg("failed to issue credential")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, AuthResponse{
		ParticipantID: cred.ParticipantID,
		AuthToken:     cred.AuthToken,
		MeetingID:     cred.CallID,
	})
}

// upstreamStatus passes through upstream error codes, falling back to 502 for anything unusable.
func upstreamStatus(status int) int {
	if status < 400 || status > 599 {
		return http.StatusBadGateway
	}
	return status
}
