package session

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/boardcall/internal/authclient"
	"github.com/vovakirdan/boardcall/internal/callsdk"
	"github.com/vovakirdan/boardcall/internal/config"
)

// Diagnostics is a point-in-time view of a controller for operators.
type Diagnostics struct {
	Variant         string    `json:"variant"`
	State           State     `json:"state"`
	Attempt         uint64    `json:"attempt"`
	Error           string    `json:"error,omitempty"`
	ParticipantID   string    `json:"participant_id,omitempty"`
	CallID          string    `json:"call_id,omitempty"`
	ExpiresAt       time.Time `json:"expires_at,omitempty"`
	RosterSize      int       `json:"roster_size"`
	AudioEnabled    bool      `json:"audio_enabled"`
	VideoEnabled    bool      `json:"video_enabled"`
	CaptionsVisible bool      `json:"captions_visible"`
}

// Snapshot returns diagnostics when they are enabled in Options.
func (c *Controller) Snapshot() (Diagnostics, error) {
	if !c.opts.Diagnostics {
		return Diagnostics{}, ErrDiagnosticsDisabled
	}

	c.mu.Lock()
	v := c.view
	c.mu.Unlock()

	d := Diagnostics{
		Variant:         c.opts.Variant.Name,
		State:           v.state,
		Attempt:         v.attempt,
		ParticipantID:   v.cred.ParticipantID,
		CallID:          v.cred.CallID,
		ExpiresAt:       v.cred.ExpiresAt,
		RosterSize:      c.roster.Len(),
		AudioEnabled:    v.controls.AudioEnabled,
		VideoEnabled:    v.controls.VideoEnabled,
		CaptionsVisible: c.captions.Visible(),
	}
	if v.err != nil {
		d.Error = v.err.Error()
	}
	return d, nil
}

// OptionsFromConfig builds controller options for variant from the session config.
func OptionsFromConfig(cfg config.SessionConfig, variant Variant) Options {
	return Options{
		Variant:       variant,
		LeaveTimeout:  cfg.LeaveTimeout,
		CaptionWindow: cfg.CaptionWindow,
		Diagnostics:   cfg.Diagnostics,
	}
}

// NewFromConfig wires a controller whose credentials come from the configured
// server's endpoint for variant.
func NewFromConfig(cfg *config.Config, variant Variant, sdk callsdk.Client, httpClient *http.Client, logger *zerolog.Logger) *Controller {
	creds := authclient.New(cfg.Session.ServerURL, variant.Endpoint, variant.DefaultName, httpClient)
	return New(creds, sdk, OptionsFromConfig(cfg.Session, variant), logger)
}
