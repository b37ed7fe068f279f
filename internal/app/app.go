package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/boardcall/internal/callengine"
	"github.com/vovakirdan/boardcall/internal/callengine/livekit"
	"github.com/vovakirdan/boardcall/internal/callengine/realtimekit"
	"github.com/vovakirdan/boardcall/internal/config"
	"github.com/vovakirdan/boardcall/internal/service/calls"
	transporthttp "github.com/vovakirdan/boardcall/internal/transport/http"
)

// Operator-facing messages returned when the service credential is absent.
const (
	MissingRealtimeKitToken   = "Missing CLOUDFLARE_API_TOKEN"
	MissingLiveKitCredentials = "Missing LIVEKIT_API_KEY or LIVEKIT_API_SECRET"
)

// App wires the credential service into the HTTP transport.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	svc, err := NewService(cfg, logger)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("engine", cfg.Engine).
		Str("host_meeting", cfg.Calls.Host.MeetingID).
		Str("audience_meeting", cfg.Calls.Audience.MeetingID).
		Msg("credential service initialized")

	return &App{
		server:          transporthttp.NewServer(svc, cfg, logger),
		shutdownTimeout: cfg.ShutdownTimeout,
		log:             logger,
	}, nil
}

// NewService builds the credential service for the configured engine.
func NewService(cfg *config.Config, logger *zerolog.Logger) (*calls.Service, error) {
	engine, missing, err := newEngine(cfg)
	if err != nil {
		return nil, err
	}
	targets := map[calls.Audience]callengine.CallTarget{
		calls.AudienceHost:   {CallID: cfg.Calls.Host.MeetingID, Preset: cfg.Calls.Host.Preset},
		calls.AudienceViewer: {CallID: cfg.Calls.Audience.MeetingID, Preset: cfg.Calls.Audience.Preset},
	}
	return calls.New(engine, targets, missing, logger), nil
}

func newEngine(cfg *config.Config) (callengine.Engine, string, error) {
	switch cfg.Engine {
	case config.EngineRealtimeKit, "":
		return realtimekit.New(realtimekit.Config{
			BaseURL:   cfg.RTK.BaseURL,
			AccountID: cfg.RTK.AccountID,
			AppID:     cfg.RTK.AppID,
			APIToken:  cfg.RTK.APIToken,
			Timeout:   cfg.RTK.Timeout,
		}, nil), MissingRealtimeKitToken, nil
	case config.EngineLiveKit:
		return livekit.New(cfg.LiveKit.APIKey, cfg.LiveKit.APISecret, cfg.LiveKit.TokenTTL), MissingLiveKitCredentials, nil
	default:
		return nil, "", fmt.Errorf("unknown engine %q", cfg.Engine)
	}
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("listening")
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-serverErr
	}
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() stdhttp.Handler {
	return a.server.Handler
}
