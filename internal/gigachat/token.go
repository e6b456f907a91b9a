package gigachat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// defaultTokenLifetime is assumed when the provider reports neither
// expires_at nor expires_in
const defaultTokenLifetime = 10 * time.Minute

// TokenConfig holds the provider's OAuth settings
type TokenConfig struct {
	AuthURL      string
	ClientID     string
	ClientSecret string
	Scope        string
	// RefreshReserve is subtracted from the token lifetime when deciding
	// whether a refresh is due, so a refresh always completes before the
	// token actually expires.
	RefreshReserve time.Duration
	// ForceRefreshInterval bounds how long a single token is trusted
	// regardless of the provider-declared expiry. Zero disables the bound.
	ForceRefreshInterval time.Duration
}

// token is an immutable credential snapshot. The manager replaces it as a
// whole on refresh, never mutates it in place.
type token struct {
	value           string
	expiresAt       time.Time
	forcedRefreshAt time.Time
}

// TokenManager owns the provider's bearer credential and serializes refresh
// across concurrent callers.
type TokenManager struct {
	cfg    TokenConfig
	http   *http.Client
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	current *token
}

// NewTokenManager creates a token manager. The HTTP client carries the
// process-wide request and connect timeouts.
func NewTokenManager(cfg TokenConfig, httpClient *http.Client, logger *slog.Logger) *TokenManager {
	return &TokenManager{
		cfg:    cfg,
		http:   httpClient,
		logger: logger,
		now:    time.Now,
	}
}

// EnsureValid returns a bearer token that is safe to use for the duration of
// one request, refreshing it first when the remaining lifetime is inside the
// reserve or the forced-refresh deadline has passed. Concurrent callers that
// lose the refresh race reuse the freshly installed token without issuing a
// second network call.
func (m *TokenManager) EnsureValid(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil && m.freshLocked(m.current) {
		return m.current.value, nil
	}
	return m.refreshLocked(ctx)
}

// ForceRefresh discards the current token and obtains a new one. Called
// after the chat endpoint rejects the bearer credential mid-flight. The
// rejected value lets callers that raced on the same stale token reuse the
// replacement instead of refreshing again.
func (m *TokenManager) ForceRefresh(ctx context.Context, rejected string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil && m.current.value != rejected && m.freshLocked(m.current) {
		return m.current.value, nil
	}
	m.current = nil
	m.logger.Warn("gigachat token rejected, forcing refresh")
	return m.refreshLocked(ctx)
}

func (m *TokenManager) freshLocked(t *token) bool {
	now := m.now()
	if !now.Before(t.expiresAt.Add(-m.cfg.RefreshReserve)) {
		return false
	}
	// Forced refresh triggers deterministically once the interval elapses;
	// an unset deadline never forces or suppresses anything.
	if !t.forcedRefreshAt.IsZero() && !now.Before(t.forcedRefreshAt) {
		return false
	}
	return true
}

type tokenResponse struct {
	AccessToken string      `json:"access_token"`
	ExpiresAt   json.Number `json:"expires_at"`
	ExpiresIn   json.Number `json:"expires_in"`
}

func (m *TokenManager) refreshLocked(ctx context.Context) (string, error) {
	m.logger.Info("refreshing gigachat token")

	form := url.Values{
		"scope":      {m.cfg.Scope},
		"grant_type": {"client_credentials"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.AuthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuth, err)
	}
	req.SetBasicAuth(m.cfg.ClientID, m.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("RqUID", uuid.NewString())

	resp, err := m.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuth, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: reading token response: %v", ErrAuth, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status %d: %s", ErrAuth, resp.StatusCode, snippet(body))
	}

	var parsed tokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%w: decoding token response: %v", ErrAuth, err)
	}
	if parsed.AccessToken == "" {
		return "", fmt.Errorf("%w: token response has no access_token", ErrAuth)
	}

	now := m.now()
	next := &token{
		value:     parsed.AccessToken,
		expiresAt: m.expiry(parsed, now),
	}
	if m.cfg.ForceRefreshInterval > 0 {
		next.forcedRefreshAt = now.Add(m.cfg.ForceRefreshInterval)
	}
	m.current = next
	return next.value, nil
}

func (m *TokenManager) expiry(parsed tokenResponse, now time.Time) time.Time {
	if sec, err := parsed.ExpiresAt.Float64(); err == nil && sec > 0 {
		return time.Unix(int64(sec), 0)
	}
	if in, err := parsed.ExpiresIn.Int64(); err == nil && in > 0 {
		return now.Add(time.Duration(in) * time.Second)
	}
	return now.Add(defaultTokenLifetime)
}

func snippet(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max])
	}
	return string(body)
}
