// Package arcgis implements the portal ports against the ArcGIS sharing REST API.
package arcgis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/ericfisherdev/travelerpub/internal/domain/model"
	"github.com/ericfisherdev/travelerpub/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.ContentClient = (*Client)(nil)
	_ driven.JobClient     = (*Client)(nil)
)

// Client calls the content and job endpoints of a portal on behalf of the
// user the TokenManager authenticates. Every request carries a token obtained
// from the manager at send time, so long-running polls survive token expiry.
type Client struct {
	httpClient *http.Client
	tokens     *TokenManager
	rootURI    string
	username   string
	limiter    *rate.Limiter
}

// Option customizes Client creation.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client. Intended for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRateLimit paces outgoing requests with a token bucket. A non-positive
// rate disables pacing.
func WithRateLimit(requestsPerSecond float64, burst int) Option {
	return func(c *Client) {
		if requestsPerSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
}

// NewClient creates a Client for the credential held by tokens.
func NewClient(tokens *TokenManager, opts ...Option) *Client {
	c := &Client{
		// Uploads of a zipped geodatabase can take a while on slow links.
		httpClient: &http.Client{Timeout: 10 * time.Minute},
		tokens:     tokens,
		rootURI:    tokens.RootURI(),
		username:   tokens.Username(),
		limiter:    rate.NewLimiter(rate.Inf, 0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Username returns the portal user the client acts for.
func (c *Client) Username() string {
	return c.username
}

// userURL builds {root}/content/users/{username}/{parts...}.
func (c *Client) userURL(parts ...string) string {
	segments := []string{c.rootURI, "content", "users", url.PathEscape(c.username)}
	for _, p := range parts {
		if p == "" {
			continue
		}
		segments = append(segments, url.PathEscape(p))
	}
	return strings.Join(segments, "/")
}

// postForm sends an authenticated form POST and returns the JSON body.
func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values) ([]byte, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	form.Set("f", "json")
	form.Set("token", token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	return c.do(req)
}

// get sends an authenticated GET with the given query parameters.
func (c *Client) get(ctx context.Context, endpoint string, query url.Values) ([]byte, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	query.Set("f", "json")
	query.Set("token", token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	return c.do(req)
}

// postFile sends an authenticated multipart POST carrying the file at path in
// the "file" part alongside the given fields.
func (c *Client) postFile(ctx context.Context, endpoint string, fields url.Values, path string) ([]byte, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	fields.Set("f", "json")
	fields.Set("token", token)

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open upload %s: %w", path, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for key, values := range fields {
		for _, v := range values {
			if err := mw.WriteField(key, v); err != nil {
				return nil, fmt.Errorf("write field %s: %w", key, err)
			}
		}
	}
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("copy upload %s: %w", path, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	return c.do(req)
}

// do paces, executes and validates a request. Non-200 responses, bodies that
// are not JSON, and {"error": {...}} payloads are all returned as errors.
func (c *Client) do(req *http.Request) ([]byte, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, redact(req.URL), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	slog.Debug("portal api call",
		"method", req.Method,
		"endpoint", req.URL.Path,
		"status_code", resp.StatusCode,
		"response_size", len(body),
		"duration", time.Since(start).Round(time.Millisecond),
	)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s %s failed with status %d: %s", req.Method, req.URL.Path, resp.StatusCode, string(body))
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%s %s returned invalid JSON: %s", req.Method, req.URL.Path, truncate(body, 200))
	}
	if err := decodeAPIError(body); err != nil {
		return nil, err
	}

	return body, nil
}

// decodeAPIError returns an *model.APIError when body carries an error object.
func decodeAPIError(body []byte) error {
	e := gjson.GetBytes(body, "error")
	if !e.Exists() {
		return nil
	}

	apiErr := &model.APIError{
		Code:    int(e.Get("code").Int()),
		Message: e.Get("message").String(),
		Payload: json.RawMessage(e.Raw),
	}
	for _, d := range e.Get("details").Array() {
		if s := d.String(); s != "" {
			apiErr.Details = append(apiErr.Details, s)
		}
	}
	return apiErr
}

// redact strips the query string so tokens never reach logs or errors.
func redact(u *url.URL) string {
	cp := *u
	cp.RawQuery = ""
	return cp.String()
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
