// Package traveler downloads the WSDOT Traveler Information API feeds into a
// staging directory for the geodatabase builder.
package traveler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gregjones/httpcache"
	"github.com/tidwall/gjson"

	"github.com/ericfisherdev/travelerpub/internal/domain/model"
	"github.com/ericfisherdev/travelerpub/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.FeedFetcher = (*Fetcher)(nil)

var (
	// ErrAccessCodeMissing is returned when no Traveler API access code is configured.
	ErrAccessCodeMissing = errors.New("traveler API access code missing: set TRAVELERPUB_ACCESS_CODE")

	// ErrNotArray is returned when a feed body is not a JSON array.
	ErrNotArray = errors.New("feed response is not a JSON array")
)

// DefaultFeeds are the Traveler Information API endpoints fetched when no
// feeds are configured.
var DefaultFeeds = map[string]string{
	"HighwayAlerts":          "https://www.wsdot.wa.gov/Traffic/api/HighwayAlerts/HighwayAlertsREST.svc/GetAlertsAsJson",
	"HighwayCameras":         "https://www.wsdot.wa.gov/Traffic/api/HighwayCameras/HighwayCamerasREST.svc/GetCamerasAsJson",
	"MountainPassConditions": "https://www.wsdot.wa.gov/Traffic/api/MountainPassConditions/MountainPassConditionsREST.svc/GetMountainPassConditionsAsJson",
	"TrafficFlow":            "https://www.wsdot.wa.gov/Traffic/api/TrafficFlow/TrafficFlowREST.svc/GetTrafficFlowsAsJson",
	"TravelTimes":            "https://www.wsdot.wa.gov/Traffic/api/TravelTimes/TravelTimesREST.svc/GetTravelTimesAsJson",
	"WeatherInformation":     "https://www.wsdot.wa.gov/Traffic/api/WeatherInformation/WeatherInformationREST.svc/GetCurrentWeatherInformationAsJson",
}

// Option customizes Fetcher creation.
type Option func(*Fetcher)

// WithTransport sets the transport underneath the HTTP cache. Intended for tests.
func WithTransport(rt http.RoundTripper) Option {
	return func(f *Fetcher) {
		f.cache.Transport = rt
	}
}

// Fetcher downloads every configured feed. Responses are kept in an
// in-memory HTTP cache, so repeated runs revalidate with ETags instead of
// downloading unchanged feeds again.
type Fetcher struct {
	httpClient *http.Client
	cache      *httpcache.Transport
	accessCode string
	feeds      map[string]string
}

// NewFetcher creates a Fetcher for the given feeds (name to URL). An empty
// feeds map uses DefaultFeeds.
func NewFetcher(accessCode string, feeds map[string]string, opts ...Option) *Fetcher {
	if len(feeds) == 0 {
		feeds = DefaultFeeds
	}

	f := &Fetcher{
		cache:      httpcache.NewMemoryCacheTransport(),
		accessCode: accessCode,
		feeds:      feeds,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.httpClient = &http.Client{
		Transport: f.cache,
		Timeout:   2 * time.Minute,
	}
	return f
}

// Fetch downloads every feed into <stagingDir>/<name>.json, in name order.
// The first failing feed aborts the fetch.
func (f *Fetcher) Fetch(ctx context.Context, stagingDir string) ([]model.FeedResult, error) {
	if f.accessCode == "" {
		return nil, ErrAccessCodeMissing
	}
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}

	names := make([]string, 0, len(f.feeds))
	for name := range f.feeds {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]model.FeedResult, 0, len(names))
	for _, name := range names {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		result, err := f.fetchOne(ctx, name, f.feeds[name], stagingDir)
		if err != nil {
			return nil, fmt.Errorf("feed %s: %w", name, err)
		}
		results = append(results, result)
	}

	return results, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, name, rawURL, stagingDir string) (model.FeedResult, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return model.FeedResult{}, fmt.Errorf("invalid feed name %q", name)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return model.FeedResult{}, fmt.Errorf("parse URL: %w", err)
	}
	q := u.Query()
	q.Set("AccessCode", f.accessCode)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return model.FeedResult{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := f.httpClient.Do(req)
	if err != nil {
		// The URL carries the access code.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return model.FeedResult{}, fmt.Errorf("GET %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.FeedResult{}, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return model.FeedResult{}, fmt.Errorf("GET %s failed with status %d", rawURL, resp.StatusCode)
	}

	parsed := gjson.ParseBytes(body)
	if !gjson.ValidBytes(body) || !parsed.IsArray() {
		return model.FeedResult{}, ErrNotArray
	}

	path := filepath.Join(stagingDir, name+".json")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return model.FeedResult{}, fmt.Errorf("write %s: %w", path, err)
	}

	result := model.FeedResult{
		Name:    name,
		URL:     rawURL,
		Path:    path,
		Records: len(parsed.Array()),
	}

	slog.Info("feed fetched",
		"feed", name,
		"records", result.Records,
		"bytes", len(body),
		"from_cache", resp.Header.Get(httpcache.XFromCache) == "1",
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return result, nil
}
