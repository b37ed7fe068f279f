// Package realtimekit mints participant credentials through the Cloudflare
// RealtimeKit call-control API.
package realtimekit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vovakirdan/boardcall/internal/callengine"
)

const maxErrorBody = 64 << 10

// Config holds the service-level API settings.
type Config struct {
	BaseURL   string
	AccountID string
	AppID     string
	APIToken  string
	Timeout   time.Duration
}

// Engine implements callengine.Engine against RealtimeKit.
type Engine struct {
	cfg    Config
	client *http.Client
	newID  func() string
}

// New creates a RealtimeKit engine. A nil client gets a default one bounded by cfg.Timeout.
func New(cfg Config, client *http.Client) *Engine {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Engine{
		cfg:    cfg,
		client: client,
		newID:  uuid.NewString,
	}
}

// Configured reports whether the service credential is present.
func (e *Engine) Configured() bool {
	return e.cfg.APIToken != ""
}

type addParticipantRequest struct {
	Name                string `json:"name"`
	PresetName          string `json:"preset_name"`
	CustomParticipantID string `json:"custom_participant_id"`
}

type addParticipantResponse struct {
	Success bool `json:"success"`
	Data    *struct {
		ID    string `json:"id"`
		Token string `json:"token"`
	} `json:"data"`
}

// IssueCredential adds a participant to target's meeting and returns its auth token.
// Each call uses a fresh custom participant id, so repeated calls never alias.
func (e *Engine) IssueCredential(ctx context.Context, identity callengine.Identity, target callengine.CallTarget) (*callengine.Credential, error) {
	if !e.Configured() {
		return nil, callengine.ErrNotConfigured
	}

	body, err := json.Marshal(addParticipantRequest{
		Name:                identity.WithDefault(callengine.DefaultDisplayName).DisplayName,
		PresetName:          target.Preset,
		CustomParticipantID: e.newID(),
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.participantsURL(target.CallID), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+e.cfg.APIToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call realtimekit: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &callengine.UpstreamError{
			Status:  resp.StatusCode,
			Message: strings.TrimSpace(string(text)),
		}
	}

	var payload addParticipantResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &callengine.UpstreamError{
			Status:  resp.StatusCode,
			Message: "decode response: " + err.Error(),
			Err:     callengine.ErrUpstreamProtocol,
		}
	}
	if !payload.Success || payload.Data == nil || payload.Data.Token == "" {
		return nil, &callengine.UpstreamError{
			Status:  resp.StatusCode,
			Message: "success flag false or data missing",
			Err:     callengine.ErrUpstreamProtocol,
		}
	}

	return &callengine.Credential{
		ParticipantID: payload.Data.ID,
		AuthToken:     payload.Data.Token,
		CallID:        target.CallID,
	}, nil
}

func (e *Engine) participantsURL(meetingID string) string {
	return fmt.Sprintf("%s/accounts/%s/realtime/kit/%s/meetings/%s/participants",
		strings.TrimRight(e.cfg.BaseURL, "/"),
		url.PathEscape(e.cfg.AccountID),
		url.PathEscape(e.cfg.AppID),
		url.PathEscape(meetingID),
	)
}

// Ensure Engine implements callengine.Engine
var _ callengine.Engine = (*Engine)(nil)
