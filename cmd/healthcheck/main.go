// Command healthcheck is the container HEALTHCHECK for travelerpub serve. It
// exits 0 when the health endpoint answers 200 with status "ok".
package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/tidwall/gjson"
)

const defaultAddr = "127.0.0.1:8080"

func main() {
	os.Exit(check(os.Getenv("TRAVELERPUB_LISTEN_ADDR"), 2*time.Second))
}

func check(listenAddr string, timeout time.Duration) int {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	endpoint := "http://" + normalizeAddr(listenAddr) + "/api/v1/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 1
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 1
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 1
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil || gjson.GetBytes(body, "status").String() != "ok" {
		return 1
	}
	return 0
}

// normalizeAddr dials loopback when the service binds every interface,
// since the health check runs inside the same container.
func normalizeAddr(raw string) string {
	if raw == "" {
		return defaultAddr
	}

	host, port, err := net.SplitHostPort(raw)
	if err != nil {
		return defaultAddr
	}

	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}
