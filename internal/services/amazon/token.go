package amazon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/judyjanx-jpg/inventory-advisor-sub003/internal/config"
)

// tokenRefreshThreshold forces a re-exchange once the cached token is older
// than this, regardless of the expiry the provider reported.
const tokenRefreshThreshold = 30 * time.Minute

// TokenManager exchanges the long-lived refresh token for short-lived
// access tokens and caches the result.
type TokenManager struct {
	mu         sync.Mutex
	cfg        config.AmazonConfig
	httpClient *http.Client

	token      string
	acquiredAt time.Time
}

// NewTokenManager creates a token manager for the given credentials
func NewTokenManager(cfg config.AmazonConfig) *TokenManager {
	return &TokenManager{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// EnsureToken returns a valid access token, re-exchanging the refresh token
// once the cached one crosses the refresh threshold. A failed exchange is
// reported as a CredentialError.
func (tm *TokenManager) EnsureToken(ctx context.Context) (string, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.token != "" && time.Since(tm.acquiredAt) < tokenRefreshThreshold {
		return tm.token, nil
	}

	token, err := tm.exchange(ctx)
	if err != nil {
		return "", &CredentialError{Err: err}
	}

	tm.token = token
	tm.acquiredAt = time.Now()
	return token, nil
}

// exchange performs the LWA refresh-token grant (form-encoded POST)
func (tm *TokenManager) exchange(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", tm.cfg.RefreshToken)
	form.Set("client_id", tm.cfg.ClientID)
	form.Set("client_secret", tm.cfg.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tm.cfg.AuthEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := tm.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("token exchange returned %d: %s", resp.StatusCode, string(body))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("token response contained no access token")
	}

	return tr.AccessToken, nil
}

// Invalidate drops the cached token so the next call re-exchanges
func (tm *TokenManager) Invalidate() {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.token = ""
}
