package session

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/boardcall/internal/authclient"
	"github.com/vovakirdan/boardcall/internal/callengine"
	"github.com/vovakirdan/boardcall/internal/callsdk/callsdktest"
	"github.com/vovakirdan/boardcall/internal/config"
)

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Session.Diagnostics = true

	opts := OptionsFromConfig(cfg.Session, AudienceVariant)
	if opts.Variant.Name != "audience" || !opts.Diagnostics {
		t.Fatalf("unexpected options %+v", opts)
	}
	if opts.CaptionWindow != 6*time.Second || opts.LeaveTimeout != 10*time.Second {
		t.Fatalf("unexpected durations %+v", opts)
	}
}

func TestNewFromConfigUsesVariantEndpoint(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
		names []string
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		paths = append(paths, r.URL.Path)
		names = append(names, body["name"])
		mu.Unlock()
		_, _ = w.Write([]byte(`{"participantId":"p-9","authToken":"opaque","meetingId":"m-9"}`))
	}))
	defer ts.Close()

	cfg := config.Default()
	cfg.Session.ServerURL = ts.URL
	cfg.Session.Diagnostics = true

	sdk := &callsdktest.Client{}
	c := NewFromConfig(&cfg, AudienceVariant, sdk, ts.Client(), nil)
	ctx := t.Context()
	go func() { _ = c.Run(ctx) }()

	if !c.Join(callengine.Identity{}) {
		t.Fatal("expected join accepted")
	}
	waitState(t, c, StateJoined)

	mu.Lock()
	defer mu.Unlock()
	if len(paths) != 1 || paths[0] != authclient.AudienceEndpoint {
		t.Fatalf("unexpected request paths %v", paths)
	}
	if names[0] != "Audience Member" {
		t.Fatalf("expected audience default name, got %q", names[0])
	}

	d, err := c.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if d.ParticipantID != "p-9" || d.CallID != "m-9" || !d.ExpiresAt.IsZero() {
		t.Fatalf("unexpected snapshot %+v", d)
	}
}
