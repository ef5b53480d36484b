package arcgis_test

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ericfisherdev/travelerpub/internal/adapter/driven/arcgis"
	"github.com/ericfisherdev/travelerpub/internal/domain/model"
)

// testPortal is an httptest portal with a token endpoint that always issues
// "test-token" and counts how often it was called.
type testPortal struct {
	mux        *http.ServeMux
	server     *httptest.Server
	tokenCalls atomic.Int32
}

func newTestPortal(t *testing.T) *testPortal {
	t.Helper()

	p := &testPortal{mux: http.NewServeMux()}
	p.mux.HandleFunc("POST /generateToken", func(w http.ResponseWriter, _ *http.Request) {
		p.tokenCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token":"test-token","expires":4102444800000,"ssl":true}`))
	})

	p.server = httptest.NewServer(p.mux)
	t.Cleanup(p.server.Close)
	return p
}

// client creates a Client for "testuser" against the test portal.
func (p *testPortal) client(opts ...arcgis.TokenOption) *arcgis.Client {
	cred := model.Credential{
		Username: "testuser",
		Password: "secret",
		Referer:  "https://example.maps.arcgis.com",
		RootURI:  p.server.URL,
	}
	opts = append([]arcgis.TokenOption{arcgis.WithTokenHTTPClient(p.server.Client())}, opts...)
	tokens := arcgis.NewTokenManager(cred, opts...)
	return arcgis.NewClient(tokens, arcgis.WithHTTPClient(p.server.Client()))
}

// fixedClock returns a clock pinned to t that tests can move with set.
type fixedClock struct {
	now atomic.Int64
}

func newFixedClock(t time.Time) *fixedClock {
	c := &fixedClock{}
	c.set(t)
	return c
}

func (c *fixedClock) set(t time.Time) { c.now.Store(t.UnixNano()) }

func (c *fixedClock) Now() time.Time { return time.Unix(0, c.now.Load()) }
