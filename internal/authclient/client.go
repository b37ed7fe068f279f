// Package authclient fetches participant credentials from the boardcall server.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vovakirdan/boardcall/internal/callengine"
)

// Endpoints served by the credential HTTP surface.
const (
	HostEndpoint     = "/api/rtk/auth"
	AudienceEndpoint = "/api/rtk/audience-auth"
)

const maxErrorBody = 64 << 10

// ErrEmptyToken means the server answered 200 without an auth token.
var ErrEmptyToken = errors.New("credential response has no auth token")

// StatusError is a non-2xx answer from the credential endpoint.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("auth failed: %d", e.Status)
	}
	return fmt.Sprintf("auth failed: %d: %s", e.Status, e.Message)
}

// Client posts identities to one credential endpoint.
type Client struct {
	baseURL     string
	endpoint    string
	defaultName string
	http        *http.Client
}

// New creates a client for endpoint on baseURL. Identities with no name are
// sent as defaultName. A nil httpClient uses http.DefaultClient.
func New(baseURL, endpoint, defaultName string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		endpoint:    endpoint,
		defaultName: defaultName,
		http:        httpClient,
	}
}

type authRequest struct {
	Name string `json:"name"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Acquire requests a fresh credential. Nothing is cached between calls.
func (c *Client) Acquire(ctx context.Context, identity callengine.Identity) (*callengine.Credential, error) {
	body, err := json.Marshal(authRequest{Name: identity.WithDefault(c.defaultName).DisplayName})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request credential: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := strings.TrimSpace(string(text))
		var er errorResponse
		if json.Unmarshal(text, &er) == nil && er.Error != "" {
			msg = er.Error
		}
		return nil, &StatusError{Status: resp.StatusCode, Message: msg}
	}

	var cred callengine.Credential
	if err := json.NewDecoder(resp.Body).Decode(&cred); err != nil {
		return nil, fmt.Errorf("decode credential: %w", err)
	}
	if cred.AuthToken == "" {
		return nil, ErrEmptyToken
	}
	if exp, ok := TokenExpiry(cred.AuthToken); ok {
		cred.ExpiresAt = exp
	}
	return &cred, nil
}

// TokenExpiry reads the exp claim of a JWT without verifying its signature.
// It reports false for opaque tokens or tokens without exp.
func TokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
