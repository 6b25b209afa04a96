package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/project-kessel/remoteclaim/internal/remote"
	"github.com/project-kessel/remoteclaim/internal/service"
	"github.com/project-kessel/remoteclaim/internal/session"
)

// records decodes every JSON log line in buf
func records(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		out = append(out, rec)
	}
	return out
}

func debugLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestLoggingObserver_TokenIssuance(t *testing.T) {
	var buf bytes.Buffer
	observer := NewLoggingObserver(debugLogger(&buf))

	identity := &session.Identity{Username: "alice", Client: &session.ClientSession{ClientID: "web"}}
	_, probe := observer.TokenIssuanceStarted(context.Background(), identity, "pass-1",
		[]service.TokenType{service.TokenTypeAccessToken})
	probe.TokenTypeIssuanceStarted(service.TokenTypeAccessToken)
	probe.TokenTypeIssuanceFailed(service.TokenTypeAccessToken, fmt.Errorf("map: %w", &remote.Error{
		Kind:       remote.KindUnexpectedStatus,
		URL:        "https://claims.example/info",
		StatusCode: 503,
		Message:    "wrong status received for remote claim - expected: 200, received: 503",
	}))
	probe.End()

	recs := records(t, &buf)
	require.Len(t, recs, 4)

	for _, rec := range recs {
		assert.Equal(t, EventTokenIssuance, rec["event"])
		assert.Equal(t, "pass-1", rec["pass_id"])
	}
	assert.Equal(t, "alice", recs[0]["username"])
	assert.Equal(t, "web", recs[0]["client_id"])

	failed := recs[2]
	assert.Equal(t, "ERROR", failed["level"])
	assert.Equal(t, "access_token", failed["token_type"])
	assert.Equal(t, "unexpected_status", failed["kind"])
	assert.Equal(t, "https://claims.example/info", failed["url"])
	assert.Equal(t, float64(503), failed["status"])
}

func TestLoggingObserver_RemoteClaim(t *testing.T) {
	var buf bytes.Buffer
	observer := NewLoggingObserver(debugLogger(&buf))

	_, probe := observer.RemoteClaimStarted(context.Background(), "authz", "https://claims.example/info")
	probe.Resolved(42)
	probe.End()

	_, probe = observer.RemoteClaimStarted(context.Background(), "authz", "https://claims.example/info")
	probe.CacheHit()
	probe.End()

	recs := records(t, &buf)
	require.Len(t, recs, 4)
	for _, rec := range recs {
		assert.Equal(t, EventRemoteClaim, rec["event"])
		assert.Equal(t, "authz", rec["source"])
	}
	assert.Equal(t, "https://claims.example/info", recs[0]["url"])
	assert.Equal(t, float64(42), recs[1]["bytes"])
	assert.Equal(t, "Remote claim served from issuance cache", recs[3]["msg"])
}

func TestErrorAttrs(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		assert.Nil(t, ErrorAttrs(nil))
	})

	t.Run("plain error", func(t *testing.T) {
		attrs := ErrorAttrs(errors.New("boom"))
		require.Len(t, attrs, 1)
		assert.Equal(t, "error", attrs[0].Key)
	})

	t.Run("remote error without status", func(t *testing.T) {
		attrs := ErrorAttrs(&remote.Error{Kind: remote.KindMalformedResponse, URL: "https://x"})
		keys := make([]string, 0, len(attrs))
		for _, a := range attrs {
			keys = append(keys, a.Key)
		}
		assert.Equal(t, []string{"error", "kind", "url"}, keys)
	})
}
