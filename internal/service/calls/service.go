package calls

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/vovakirdan/boardcall/internal/callengine"
)

// Common errors for credential operations.
var (
	ErrUnknownAudience = errors.New("unknown call audience")
)

// Audience selects which fixed call target an endpoint binds to.
type Audience string

const (
	// AudienceHost is the whiteboard call panel.
	AudienceHost Audience = "host"
	// AudienceViewer is the audience participation page.
	AudienceViewer Audience = "audience"
)

// ConfigError reports a missing service credential.
// It wraps callengine.ErrNotConfigured and carries the operator-facing message.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}

func (e *ConfigError) Unwrap() error {
	return callengine.ErrNotConfigured
}

type configurable interface {
	Configured() bool
}

// Service binds client requests to server-chosen call targets and mints credentials.
type Service struct {
	engine         callengine.Engine
	targets        map[Audience]callengine.CallTarget
	missingMessage string
	log            *zerolog.Logger
}

// New creates a credential service.
// missingMessage is returned verbatim when the engine reports no service credential.
func New(engine callengine.Engine, targets map[Audience]callengine.CallTarget, missingMessage string, logger *zerolog.Logger) *Service {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Service{
		engine:         engine,
		targets:        targets,
		missingMessage: missingMessage,
		log:            logger,
	}
}

// Target returns the fixed call target for audience.
func (s *Service) Target(audience Audience) (callengine.CallTarget, bool) {
	t, ok := s.targets[audience]
	return t, ok
}

// IssueCredential mints a fresh credential for name in the target bound to audience.
// Nothing is cached: every call goes upstream with a new correlation id.
func (s *Service) IssueCredential(ctx context.Context, audience Audience, name string) (*callengine.Credential, error) {
	target, ok := s.targets[audience]
	if !ok {
		return nil, ErrUnknownAudience
	}

	if c, ok := s.engine.(configurable); ok && !c.Configured() {
		s.log.Error().Str("audience", string(audience)).Msg(s.missingMessage)
		return nil, &ConfigError{Message: s.missingMessage}
	}

	identity := callengine.Identity{DisplayName: name}.WithDefault(callengine.DefaultDisplayName)

	cred, err := s.engine.IssueCredential(ctx, identity, target)
	if err != nil {
		if errors.Is(err, callengine.ErrNotConfigured) {
			return nil, &ConfigError{Message: s.missingMessage}
		}
		return nil, fmt.Errorf("issue credential: %w", err)
	}

	s.log.Info().
		Str("audience", string(audience)).
		Str("call_id", cred.CallID).
		Str("participant_id", cred.ParticipantID).
		Msg("credential issued")
	return cred, nil
}
