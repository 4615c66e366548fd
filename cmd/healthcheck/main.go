// Command healthcheck probes a running leakwatch server for container health
// checks. It exits 0 only when /api/v1/health answers 200 with status "ok".
package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/tidwall/gjson"
)

const defaultAddr = "127.0.0.1:8080"

func main() {
	os.Exit(check(healthURL(os.Getenv("LEAKWATCH_LISTEN_ADDR")), 2*time.Second))
}

func check(url string, timeout time.Duration) int {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 1
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 1
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil || resp.StatusCode != http.StatusOK {
		return 1
	}
	if gjson.GetBytes(body, "status").String() != "ok" {
		return 1
	}

	return 0
}

func healthURL(listenAddr string) string {
	return fmt.Sprintf("http://%s/api/v1/health", normalizeAddr(listenAddr))
}

// normalizeAddr points the probe at loopback when the server binds all
// interfaces, since the probe runs inside the same container.
func normalizeAddr(raw string) string {
	host, port, err := net.SplitHostPort(raw)
	if err != nil {
		return defaultAddr
	}

	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}

	return net.JoinHostPort(host, port)
}
