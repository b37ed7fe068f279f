package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/boardcall/internal/callengine"
	"github.com/vovakirdan/boardcall/internal/callengine/realtimekit"
	"github.com/vovakirdan/boardcall/internal/config"
	"github.com/vovakirdan/boardcall/internal/service/calls"
)

// upstreamRecorder is a fake RealtimeKit API that records every request body.
type upstreamRecorder struct {
	mu       sync.Mutex
	requests []map[string]any
	paths    []string
	status   int
	body     string
}

func (u *upstreamRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)

	u.mu.Lock()
	u.requests = append(u.requests, body)
	u.paths = append(u.paths, r.URL.Path)
	status, resp := u.status, u.body
	u.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	if resp == "" {
		resp = `{"success":true,"data":{"id":"participant-1","token":"token-1"}}`
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(resp))
}

func (u *upstreamRecorder) count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.requests)
}

func (u *upstreamRecorder) request(i int) (map[string]any, string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.requests[i], u.paths[i]
}

// createTestRouter wires the full router against a fake upstream.
func createTestRouter(t *testing.T, upstream *upstreamRecorder, apiToken string, mutate func(*config.Config)) *gin.Engine {
	t.Helper()

	ts := httptest.NewServer(upstream)
	t.Cleanup(ts.Close)

	cfg := config.Default()
	cfg.RTK.BaseURL = ts.URL
	cfg.RTK.APIToken = apiToken
	cfg.AuthRateLimit = 0
	if mutate != nil {
		mutate(&cfg)
	}

	disabledLogger := zerolog.Nop()

	engine := realtimekit.New(realtimekit.Config{
		BaseURL:   cfg.RTK.BaseURL,
		AccountID: cfg.RTK.AccountID,
		AppID:     cfg.RTK.AppID,
		APIToken:  cfg.RTK.APIToken,
		Timeout:   time.Second,
	}, ts.Client())

	svc := calls.New(engine, map[calls.Audience]callengine.CallTarget{
		calls.AudienceHost:   {CallID: cfg.Calls.Host.MeetingID, Preset: cfg.Calls.Host.Preset},
		calls.AudienceViewer: {CallID: cfg.Calls.Audience.MeetingID, Preset: cfg.Calls.Audience.Preset},
	}, "Missing CLOUDFLARE_API_TOKEN", &disabledLogger)

	return NewRouter(svc, &cfg, &disabledLogger)
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Buffer
	if body == "" {
		reader = &bytes.Buffer{}
	} else {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp
}
