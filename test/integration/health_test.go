package integration

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/project-kessel/remoteclaim/internal/config"
)

// TestHealthEndpoints follows the lifecycle serve uses:
//
//	Start (NOT_SERVING) → SetReady (SERVING) → Stop (NOT_SERVING)
func TestHealthEndpoints(t *testing.T) {
	env := startServer(t, &config.Config{
		Observability: &config.ObservabilityConfig{Type: "metrics"},
	})

	t.Run("liveness returns 200 before SetReady", func(t *testing.T) {
		code, status := env.getStatus(t, "/healthz/live")
		if code != http.StatusOK || status != "OK" {
			t.Errorf("expected 200 OK, got %d %q", code, status)
		}
	})

	t.Run("readiness returns 503 before SetReady", func(t *testing.T) {
		code, status := env.getStatus(t, "/healthz/ready")
		if code != http.StatusServiceUnavailable || status != "NOT_SERVING" {
			t.Errorf("expected 503 NOT_SERVING, got %d %q", code, status)
		}
	})

	env.Server.SetReady()

	t.Run("readiness returns 200 after SetReady", func(t *testing.T) {
		code, status := env.getStatus(t, "/healthz/ready")
		if code != http.StatusOK || status != "SERVING" {
			t.Errorf("expected 200 SERVING, got %d %q", code, status)
		}
	})

	t.Run("metrics are exposed", func(t *testing.T) {
		resp, err := env.Client.Get(env.BaseURL + "/metrics")
		if err != nil {
			t.Fatalf("GET /metrics failed: %v", err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(data), "go_goroutines") {
			t.Error("expected Go runtime metrics")
		}
	})

	t.Run("stop refuses new connections", func(t *testing.T) {
		if err := env.Server.Stop(context.Background()); err != nil {
			t.Fatalf("Stop() failed: %v", err)
		}
		if _, err := env.Client.Get(env.BaseURL + "/healthz/live"); err == nil {
			t.Error("expected request to fail after Stop")
		}
	})
}
