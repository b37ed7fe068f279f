package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestLoadWritesDefaultConfig(t *testing.T) {
	logger := zerolog.Nop()
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, resolved, err := Load(&logger, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if resolved != path {
		t.Fatalf("expected path %s, got %s", path, resolved)
	}
	if cfg.Addr != Default().Addr {
		t.Fatalf("expected default addr, got %q", cfg.Addr)
	}
	if cfg.Session.CaptionWindow != 6*time.Second {
		t.Fatalf("expected 6s caption window, got %v", cfg.Session.CaptionWindow)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected default config to be written: %v", err)
	}
}

func TestLoadEnvOverridesAndSecretsStayOffDisk(t *testing.T) {
	logger := zerolog.Nop()
	path := filepath.Join(t.TempDir(), "config.yaml")

	t.Setenv("BOARDCALL_ADDR", ":9999")
	t.Setenv("CLOUDFLARE_API_TOKEN", "service-secret")

	cfg, _, err := Load(&logger, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9999" {
		t.Fatalf("expected env addr, got %q", cfg.Addr)
	}
	if cfg.RTK.APIToken != "service-secret" {
		t.Fatalf("expected api token from legacy env, got %q", cfg.RTK.APIToken)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if strings.Contains(string(data), "service-secret") {
		t.Fatal("service credential leaked into config file")
	}
}

func TestLoadPrefersPrefixedToken(t *testing.T) {
	logger := zerolog.Nop()
	path := filepath.Join(t.TempDir(), "config.yaml")

	t.Setenv("BOARDCALL_RTK_API_TOKEN", "primary")
	t.Setenv("CLOUDFLARE_API_TOKEN", "legacy")

	cfg, _, err := Load(&logger, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RTK.APIToken != "primary" {
		t.Fatalf("expected prefixed token to win, got %q", cfg.RTK.APIToken)
	}
}

func TestLoadReadsExistingFile(t *testing.T) {
	logger := zerolog.Nop()
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "engine: livekit\ncalls:\n  host:\n    meeting_id: room-a\n    preset: host\n  audience:\n    meeting_id: room-b\n    preset: viewer\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, err := Load(&logger, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Engine != EngineLiveKit {
		t.Fatalf("expected livekit engine, got %q", cfg.Engine)
	}
	if cfg.Calls.Audience.MeetingID != "room-b" || cfg.Calls.Audience.Preset != "viewer" {
		t.Fatalf("unexpected audience target: %+v", cfg.Calls.Audience)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "unknown engine", mutate: func(c *Config) { c.Engine = "jitsi" }, wantErr: true},
		{name: "missing meeting", mutate: func(c *Config) { c.Calls.Host.MeetingID = "" }, wantErr: true},
		{name: "negative rate", mutate: func(c *Config) { c.AuthRateLimit = -1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
