package livekit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/livekit/protocol/auth"
	"github.com/vovakirdan/boardcall/internal/callengine"
)

// AudiencePreset is the preset name that maps to a subscribe-only grant.
const AudiencePreset = "audience_preset"

// LiveKitEngine implements callengine.Engine by signing LiveKit access tokens locally.
type LiveKitEngine struct {
	apiKey    string
	apiSecret string
	ttl       time.Duration
	newID     func() string
}

// New creates a new LiveKitEngine.
func New(apiKey, apiSecret string, ttl time.Duration) *LiveKitEngine {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &LiveKitEngine{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		ttl:       ttl,
		newID:     uuid.NewString,
	}
}

// Configured reports whether key and secret are present.
func (e *LiveKitEngine) Configured() bool {
	return e.apiKey != "" && e.apiSecret != ""
}

// IssueCredential signs a room-join token for identity in target.CallID.
// The participant identity is a fresh correlation id; the display name goes into the token name.
func (e *LiveKitEngine) IssueCredential(_ context.Context, identity callengine.Identity, target callengine.CallTarget) (*callengine.Credential, error) {
	if !e.Configured() {
		return nil, callengine.ErrNotConfigured
	}

	participantID := e.newID()

	at := auth.NewAccessToken(e.apiKey, e.apiSecret)
	at.SetVideoGrant(grantFor(target)).
		SetIdentity(participantID).
		SetName(identity.WithDefault(callengine.DefaultDisplayName).DisplayName).
		SetValidFor(e.ttl)

	token, err := at.ToJWT()
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	return &callengine.Credential{
		ParticipantID: participantID,
		AuthToken:     token,
		CallID:        target.CallID,
	}, nil
}

func grantFor(target callengine.CallTarget) *auth.VideoGrant {
	grant := &auth.VideoGrant{
		RoomJoin: true,
		Room:     target.CallID,
	}
	if target.Preset == AudiencePreset {
		canPublish := false
		canPublishData := true
		grant.CanPublish = &canPublish
		grant.CanPublishData = &canPublishData
	}
	return grant
}

// Ensure LiveKitEngine implements callengine.Engine
var _ callengine.Engine = (*LiveKitEngine)(nil)
