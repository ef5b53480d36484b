package arcgis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/ericfisherdev/travelerpub/internal/domain/model"
)

// TokenExpirationMinutes is the token lifetime requested from generateToken.
const TokenExpirationMinutes = 60

// TokenManager obtains and caches a portal token for one credential. The
// cached token is handed out while now < expires; any read at or after the
// expiration instant re-acquires synchronously. Safe for concurrent use: the
// check and the refresh happen under one lock, so concurrent callers never
// issue duplicate token requests.
type TokenManager struct {
	mu         sync.Mutex
	httpClient *http.Client
	cred       model.Credential
	now        func() time.Time

	token   string
	expires time.Time
}

// TokenOption customizes TokenManager creation.
type TokenOption func(*TokenManager)

// WithTokenHTTPClient replaces the HTTP client used for token requests.
func WithTokenHTTPClient(hc *http.Client) TokenOption {
	return func(m *TokenManager) {
		m.httpClient = hc
	}
}

// WithClock replaces time.Now for expiry checks.
func WithClock(now func() time.Time) TokenOption {
	return func(m *TokenManager) {
		m.now = now
	}
}

// NewTokenManager creates a manager for cred. No request is made until the
// first call to Acquire or Token. An empty RootURI defaults to model.DefaultRootURI.
func NewTokenManager(cred model.Credential, opts ...TokenOption) *TokenManager {
	if cred.RootURI == "" {
		cred.RootURI = model.DefaultRootURI
	}
	cred.RootURI = strings.TrimRight(cred.RootURI, "/")

	m := &TokenManager{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cred:       cred,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Username returns the portal username of the managed credential.
func (m *TokenManager) Username() string {
	return m.cred.Username
}

// RootURI returns the sharing REST root without a trailing slash.
func (m *TokenManager) RootURI() string {
	return m.cred.RootURI
}

// Acquire requests a new token unconditionally and caches it.
func (m *TokenManager) Acquire(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acquireLocked(ctx)
}

// Token returns the cached token, acquiring a new one first when there is
// none or the cached one has reached its expiration.
func (m *TokenManager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token != "" && m.now().Before(m.expires) {
		return m.token, nil
	}

	if err := m.acquireLocked(ctx); err != nil {
		return "", err
	}
	return m.token, nil
}

// Expires returns the expiration of the cached token, or the zero time when
// no token has been acquired.
func (m *TokenManager) Expires() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.expires
}

// acquireLocked performs exactly one generateToken request. The caller must hold mu.
func (m *TokenManager) acquireLocked(ctx context.Context) error {
	form := url.Values{}
	form.Set("username", m.cred.Username)
	form.Set("password", m.cred.Password)
	form.Set("expiration", strconv.Itoa(TokenExpirationMinutes))
	form.Set("referer", m.cred.Referer)
	form.Set("f", "json")

	endpoint := m.cred.RootURI + "/generateToken"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("token request failed with status %d: %s", resp.StatusCode, string(body))
	}
	if !gjson.ValidBytes(body) {
		return fmt.Errorf("token response is not valid JSON: %s", truncate(body, 200))
	}

	if e := gjson.GetBytes(body, "error"); e.Exists() {
		return &model.AuthenticationError{Payload: json.RawMessage(e.Raw)}
	}

	token := gjson.GetBytes(body, "token").String()
	if token == "" {
		return fmt.Errorf("token response has no token: %s", truncate(body, 200))
	}

	expires := gjson.GetBytes(body, "expires").Int()
	if expires <= 0 {
		return fmt.Errorf("token response has no expires: %s", truncate(body, 200))
	}

	m.token = token
	m.expires = time.UnixMilli(expires)

	slog.Debug("portal token acquired",
		"username", m.cred.Username,
		"expires", m.expires.Format(time.RFC3339),
	)
	return nil
}
