package config

import "time"

// Engine names accepted in Config.Engine.
const (
	EngineRealtimeKit = "realtimekit"
	EngineLiveKit     = "livekit"
)

// Config holds server and call-client configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat         string        `mapstructure:"log_format" yaml:"log_format"`
	CORSOrigin        string        `mapstructure:"cors_origin" yaml:"cors_origin"`
	// AuthRateLimit caps credential requests per minute. Zero disables the limit.
	AuthRateLimit int `mapstructure:"auth_rate_limit" yaml:"auth_rate_limit"`

	Engine  string            `mapstructure:"engine" yaml:"engine"`
	RTK     RealtimeKitConfig `mapstructure:"rtk" yaml:"rtk"`
	LiveKit LiveKitConfig     `mapstructure:"livekit" yaml:"livekit"`
	Calls   CallsConfig       `mapstructure:"calls" yaml:"calls"`
	Session SessionConfig     `mapstructure:"session" yaml:"session"`
}

// RealtimeKitConfig points at the Cloudflare RealtimeKit call-control API.
// APIToken is the service credential; it is never written to disk.
type RealtimeKitConfig struct {
	BaseURL   string        `mapstructure:"base_url" yaml:"base_url"`
	AccountID string        `mapstructure:"account_id" yaml:"account_id"`
	AppID     string        `mapstructure:"app_id" yaml:"app_id"`
	APIToken  string        `mapstructure:"api_token" yaml:"-"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// LiveKitConfig configures the LiveKit token engine.
type LiveKitConfig struct {
	URL       string        `mapstructure:"url" yaml:"url"`
	APIKey    string        `mapstructure:"api_key" yaml:"api_key"`
	APISecret string        `mapstructure:"api_secret" yaml:"-"`
	TokenTTL  time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`
}

// CallTarget is a server-chosen call and permission preset.
type CallTarget struct {
	MeetingID string `mapstructure:"meeting_id" yaml:"meeting_id"`
	Preset    string `mapstructure:"preset" yaml:"preset"`
}

// CallsConfig binds each auth endpoint to its fixed call target.
type CallsConfig struct {
	Host     CallTarget `mapstructure:"host" yaml:"host"`
	Audience CallTarget `mapstructure:"audience" yaml:"audience"`
}

// SessionConfig tunes the call-session client layer.
type SessionConfig struct {
	ServerURL     string        `mapstructure:"server_url" yaml:"server_url"`
	Diagnostics   bool          `mapstructure:"diagnostics" yaml:"diagnostics"`
	CaptionWindow time.Duration `mapstructure:"caption_window" yaml:"caption_window"`
	LeaveTimeout  time.Duration `mapstructure:"leave_timeout" yaml:"leave_timeout"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8787",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		LogFormat:         "console",
		CORSOrigin:        "*",
		AuthRateLimit:     60,
		Engine:            EngineRealtimeKit,
		RTK: RealtimeKitConfig{
			BaseURL:   "https://api.cloudflare.com/client/v4",
			AccountID: "d6850012d250c1600028b55d1d879b16",
			AppID:     "fad83e63-3310-4aa4-a778-2f2a29ef36c9",
			Timeout:   10 * time.Second,
		},
		LiveKit: LiveKitConfig{
			URL:      "ws://localhost:7880",
			TokenTTL: time.Hour,
		},
		Calls: CallsConfig{
			Host: CallTarget{
				MeetingID: "bbbf7132-8f91-4f57-b9b5-ad5a91fd5aa1",
				Preset:    "group_call_host",
			},
			Audience: CallTarget{
				MeetingID: "bbb821a5-bfb3-498e-aaa3-f1f0a33277f4",
				Preset:    "audience_preset",
			},
		},
		Session: SessionConfig{
			ServerURL:     "http://localhost:8787",
			CaptionWindow: 6 * time.Second,
			LeaveTimeout:  10 * time.Second,
		},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
// Only the top-level listener settings are merged; they are the ones exposed as flags.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.Engine != "" {
		c.Engine = other.Engine
	}
}
