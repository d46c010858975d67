// Package backend provides adapters for the identity service boundary.
//
// The core consumes the service through [sessioncore.Backend]; this
// package keeps the wire details (endpoints, JSON shapes, status mapping)
// out of the policy core.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	sessioncore "github.com/KPpay-project/sessioncore"
)

const (
	exchangePath = "/v1/token"
	refreshPath  = "/v1/token/refresh"

	maxErrorBody = 512
)

// HTTP implements sessioncore.Backend against the identity service's JSON
// endpoints.
type HTTP struct {
	client  *http.Client
	baseURL string
	log     *zap.Logger
}

// Option customizes the adapter.
type Option func(*HTTP)

// WithClient replaces the default http.Client.
func WithClient(client *http.Client) Option {
	return func(b *HTTP) {
		if client != nil {
			b.client = client
		}
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(b *HTTP) {
		b.log = log
	}
}

// NewHTTP creates an adapter rooted at baseURL.
func NewHTTP(baseURL string, opts ...Option) *HTTP {
	b := &HTTP{
		client:  &http.Client{Timeout: 15 * time.Second},
		baseURL: baseURL,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type grantResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token,omitempty"`
	ExpiresIn        int64  `json:"expires_in"`
	RefreshExpiresIn int64  `json:"refresh_expires_in,omitempty"`
	Role             string `json:"role,omitempty"`
}

// ExchangeCredentials implements sessioncore.Backend.
func (b *HTTP) ExchangeCredentials(ctx context.Context, identifier, secret string) (*sessioncore.TokenGrant, error) {
	return b.post(ctx, exchangePath, map[string]string{
		"identifier": identifier,
		"secret":     secret,
	})
}

// RefreshToken implements sessioncore.Backend.
func (b *HTTP) RefreshToken(ctx context.Context, refreshToken string) (*sessioncore.TokenGrant, error) {
	return b.post(ctx, refreshPath, map[string]string{
		"refresh_token": refreshToken,
	})
}

func (b *HTTP) post(ctx context.Context, path string, body map[string]string) (*sessioncore.TokenGrant, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sessioncore.ErrBackendUnreachable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusInternalServerError {
		b.log.Warn("identity backend server error",
			zap.String("path", path), zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("%w: status %d", sessioncore.ErrBackendUnreachable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		// A definitive rejection, not a transport failure.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("identity backend rejected request: status %d: %s",
			resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var grant grantResponse
	if err := json.NewDecoder(resp.Body).Decode(&grant); err != nil {
		return nil, fmt.Errorf("%w: undecodable grant: %v", sessioncore.ErrInvalidGrant, err)
	}
	if grant.AccessToken == "" || grant.ExpiresIn <= 0 {
		return nil, fmt.Errorf("%w: missing token or lifetime", sessioncore.ErrInvalidGrant)
	}

	// Absolute expiry derives from the backend's stated lifetime at the
	// moment of issuance.
	now := time.Now()
	out := &sessioncore.TokenGrant{
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		ExpiresAt:    now.Add(time.Duration(grant.ExpiresIn) * time.Second),
		RoleClaim:    grant.Role,
	}
	if grant.RefreshExpiresIn > 0 {
		out.RefreshExpiresAt = now.Add(time.Duration(grant.RefreshExpiresIn) * time.Second)
	}
	return out, nil
}
