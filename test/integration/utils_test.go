package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/project-kessel/remoteclaim/internal/config"
	"github.com/project-kessel/remoteclaim/internal/server"
)

// testEnv is a running server built from configuration
type testEnv struct {
	Server   *server.Server
	Provider *config.Provider
	BaseURL  string
	Client   *http.Client
}

// startServer builds every component from cfg, starts the server on an
// ephemeral port and stops it when the test ends.
func startServer(t *testing.T, cfg *config.Config) *testEnv {
	t.Helper()

	provider := config.NewProvider(cfg)
	provider.SetLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	serverCfg, err := provider.ServerConfig()
	if err != nil {
		t.Fatalf("failed to build server config: %v", err)
	}
	serverCfg.HTTPPort = 0

	srv := server.New(serverCfg)
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Stop(ctx)
	})

	port := srv.Addr().(*net.TCPAddr).Port
	waitForServer(t, port, 5*time.Second)

	return &testEnv{
		Server:   srv,
		Provider: provider,
		BaseURL:  fmt.Sprintf("http://localhost:%d", port),
		Client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// waitForServer polls the given port until a TCP connection succeeds or timeout is reached.
// This provides a deterministic way to wait for server startup without arbitrary sleeps.
func waitForServer(t *testing.T, port int, timeout time.Duration) {
	t.Helper()

	addr := fmt.Sprintf("localhost:%d", port)
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("server on port %d did not become ready within %v", port, timeout)
}

// postJSON posts body to path and decodes the JSON response into out
func (e *testEnv) postJSON(t *testing.T, path, body string, out any) int {
	t.Helper()

	resp, err := e.Client.Post(e.BaseURL+path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s failed: %v", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
	}
	return resp.StatusCode
}

// getStatus performs a GET and returns the status and the decoded "status" field
func (e *testEnv) getStatus(t *testing.T, path string) (int, string) {
	t.Helper()

	resp, err := e.Client.Get(e.BaseURL + path)
	if err != nil {
		t.Fatalf("GET %s failed: %v", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	return resp.StatusCode, body["status"]
}
