package callengine

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultDisplayName is bound into credentials when the caller sends no name.
const DefaultDisplayName = "Anonymous"

// Common errors for credential issuing.
var (
	// ErrNotConfigured means the service credential is missing from deployment config.
	ErrNotConfigured = errors.New("call engine is not configured")
	// ErrUpstreamProtocol means the call-control API answered with an unusable payload.
	ErrUpstreamProtocol = errors.New("upstream returned unsuccessful response")
)

// Identity is the caller-supplied participant identity.
type Identity struct {
	DisplayName string
}

// WithDefault returns the identity with an empty name replaced by fallback.
// Any non-empty name, whitespace included, is kept as sent.
func (i Identity) WithDefault(fallback string) Identity {
	if i.DisplayName == "" {
		i.DisplayName = fallback
	}
	return i
}

// CallTarget is the server-chosen call and permission preset.
type CallTarget struct {
	CallID string
	Preset string
}

// Credential is a short-lived participant-scoped join token.
type Credential struct {
	ParticipantID string `json:"participantId"`
	AuthToken     string `json:"authToken"`
	CallID        string `json:"meetingId"`

	// ExpiresAt is decoded on the client from the token, when it is a JWT.
	// It is informational only and never sent over the wire.
	ExpiresAt time.Time `json:"-"`
}

// Engine abstracts the call-control backend that mints credentials.
type Engine interface {
	// IssueCredential mints a fresh credential for identity in target.
	// Implementations must not cache or persist the result.
	IssueCredential(ctx context.Context, identity Identity, target CallTarget) (*Credential, error)
}

// UpstreamError carries the status and message of a failed call-control request.
type UpstreamError struct {
	Status  int
	Message string
	// Err is ErrUpstreamProtocol for payload-level failures, nil for plain non-2xx answers.
	Err error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream %d: %s: %v", e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("upstream %d: %s", e.Status, e.Message)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
