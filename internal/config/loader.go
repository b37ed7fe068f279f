package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envPrefix            = "BOARDCALL"
	envConfigDefaultPath = "BOARDCALL_CONFIG_DEFAULT_PATH"
	defaultConfigName    = "config.yaml"

	// legacyTokenEnv is the variable the worker deployment used for the service credential.
	legacyTokenEnv = "CLOUDFLARE_API_TOKEN"
)

// Load builds configuration from defaults, optional config file, env vars, and returns the resolved path.
// Precedence: defaults < config file < env vars < caller overrides.
func Load(logger *zerolog.Logger, explicitPath string) (Config, string, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, cfg)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("rtk.api_token", envPrefix+"_RTK_API_TOKEN", legacyTokenEnv); err != nil {
		return cfg, "", fmt.Errorf("bind env: %w", err)
	}

	configPath := resolveConfigPath(explicitPath)
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			if writeErr := writeDefaultConfig(configPath, cfg); writeErr != nil && logger != nil {
				logger.Warn().Err(writeErr).Str("path", configPath).Msg("failed to write default config")
			} else if logger != nil {
				logger.Info().Str("path", configPath).Msg("created default config")
			}
			// try reading again in case it was just written
			if readErr := v.ReadInConfig(); readErr != nil && logger != nil {
				logger.Warn().Err(readErr).Str("path", configPath).Msg("failed to read config after writing default")
			}
		} else {
			return cfg, configPath, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, configPath, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, configPath, err
	}

	return cfg, configPath, nil
}

// Validate rejects settings the server cannot start with.
// A missing service credential is not an error here: the auth endpoints report it per request.
func (c Config) Validate() error {
	switch c.Engine {
	case EngineRealtimeKit, EngineLiveKit:
	default:
		return fmt.Errorf("config: unknown engine %q", c.Engine)
	}
	if c.Calls.Host.MeetingID == "" || c.Calls.Audience.MeetingID == "" {
		return errors.New("config: calls.host.meeting_id and calls.audience.meeting_id are required")
	}
	if c.AuthRateLimit < 0 {
		return errors.New("config: auth_rate_limit must not be negative")
	}
	return nil
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("addr", cfg.Addr)
	v.SetDefault("read_header_timeout", cfg.ReadHeaderTimeout)
	v.SetDefault("shutdown_timeout", cfg.ShutdownTimeout)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_format", cfg.LogFormat)
	v.SetDefault("cors_origin", cfg.CORSOrigin)
	v.SetDefault("auth_rate_limit", cfg.AuthRateLimit)
	v.SetDefault("engine", cfg.Engine)

	v.SetDefault("rtk.base_url", cfg.RTK.BaseURL)
	v.SetDefault("rtk.account_id", cfg.RTK.AccountID)
	v.SetDefault("rtk.app_id", cfg.RTK.AppID)
	v.SetDefault("rtk.api_token", cfg.RTK.APIToken)
	v.SetDefault("rtk.timeout", cfg.RTK.Timeout)

	v.SetDefault("livekit.url", cfg.LiveKit.URL)
	v.SetDefault("livekit.api_key", cfg.LiveKit.APIKey)
	v.SetDefault("livekit.api_secret", cfg.LiveKit.APISecret)
	v.SetDefault("livekit.token_ttl", cfg.LiveKit.TokenTTL)

	v.SetDefault("calls.host.meeting_id", cfg.Calls.Host.MeetingID)
	v.SetDefault("calls.host.preset", cfg.Calls.Host.Preset)
	v.SetDefault("calls.audience.meeting_id", cfg.Calls.Audience.MeetingID)
	v.SetDefault("calls.audience.preset", cfg.Calls.Audience.Preset)

	v.SetDefault("session.server_url", cfg.Session.ServerURL)
	v.SetDefault("session.diagnostics", cfg.Session.Diagnostics)
	v.SetDefault("session.caption_window", cfg.Session.CaptionWindow)
	v.SetDefault("session.leave_timeout", cfg.Session.LeaveTimeout)
}

func resolveConfigPath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}

	if base := os.Getenv(envConfigDefaultPath); base != "" {
		if err := os.MkdirAll(base, 0o755); err == nil {
			return filepath.Join(base, defaultConfigName)
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return defaultConfigName
	}
	return filepath.Join(cwd, defaultConfigName)
}

func writeDefaultConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
