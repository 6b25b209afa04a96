package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/project-kessel/remoteclaim/internal/httpfixture"
	"github.com/project-kessel/remoteclaim/internal/session"
)

const claimsURL = "https://claims.example/info"

func alice() *session.Identity {
	return &session.Identity{
		Username:  "alice",
		Client:    &session.ClientSession{ClientID: "web"},
		ClientIDs: []string{"web", "cli", "web"},
		Attributes: map[string][]string{
			"dept":  {"eng", "ops"},
			"level": {"3"},
		},
	}
}

func TestResolver_QueryParameters(t *testing.T) {
	r := NewResolver(NewExecutor(ExecutorConfig{}))

	tests := []struct {
		name     string
		cfg      ClaimConfig
		identity *session.Identity
		want     map[string]string
		wantBare []string
	}{
		{
			name:     "configured only",
			cfg:      ClaimConfig{Parameters: "scope=all&bad"},
			identity: alice(),
			want:     map[string]string{"scope": "all"},
		},
		{
			name:     "concrete client",
			cfg:      ClaimConfig{SendClientID: true},
			identity: alice(),
			want:     map[string]string{"client_id": "web"},
		},
		{
			name: "legacy aggregates distinct client ids",
			cfg:  ClaimConfig{SendClientID: true},
			identity: &session.Identity{
				Username:  "alice",
				ClientIDs: []string{"web", "cli", "web", "admin"},
			},
			want: map[string]string{"client_id": "web,cli,admin"},
		},
		{
			name:     "username",
			cfg:      ClaimConfig{SendUsername: true},
			identity: alice(),
			want:     map[string]string{"username": "alice"},
		},
		{
			name:     "user attributes first value, missing is bare",
			cfg:      ClaimConfig{UserAttributes: "dept&level,missing"},
			identity: alice(),
			want:     map[string]string{"dept": "eng", "level": "3"},
			wantBare: []string{"missing"},
		},
		{
			name:     "missing attribute drops configured value",
			cfg:      ClaimConfig{Parameters: "missing=x&keep=1", UserAttributes: "missing,missing"},
			identity: alice(),
			want:     map[string]string{"keep": "1"},
			wantBare: []string{"missing"},
		},
		{
			name: "derived values override configured keys",
			cfg: ClaimConfig{
				Parameters:     "username=mallory&client_id=x&dept=none&keep=1",
				SendUsername:   true,
				SendClientID:   true,
				UserAttributes: "dept",
			},
			identity: alice(),
			want:     map[string]string{"username": "alice", "client_id": "web", "dept": "eng", "keep": "1"},
		},
		{
			name: "user attribute named username wins over username",
			cfg: ClaimConfig{
				SendUsername:   true,
				UserAttributes: "username",
			},
			identity: &session.Identity{
				Username:   "alice",
				Attributes: map[string][]string{"username": {"alice@corp"}},
			},
			want: map[string]string{"username": "alice@corp"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, bare := r.QueryParameters(tt.cfg, tt.identity)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantBare, bare)
		})
	}
}

func TestResolver_HeadersWithBearer(t *testing.T) {
	exec, rec := fixtureExecutor(tokenRule(200, `{"access_token":"abc"}`))
	r := NewResolver(exec)

	headers, err := r.Headers(context.Background(), ClaimConfig{
		Headers:         "X-Api-Key=k&authorization=Basic Zm9v",
		SendBearerToken: true,
		Auth:            AuthConfig{URL: tokenURL, ClientID: "cid", ClientSecret: "secret"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"X-Api-Key":     "k",
		"Authorization": "Bearer abc",
	}, headers)
	assert.Len(t, rec.Requests(), 1)
}

func TestResolver_HeadersWithoutBearer(t *testing.T) {
	exec, rec := fixtureExecutor()
	r := NewResolver(exec)

	headers, err := r.Headers(context.Background(), ClaimConfig{Headers: "Authorization=Basic Zm9v"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Authorization": "Basic Zm9v"}, headers)
	assert.Empty(t, rec.Requests())
}

func TestResolver_EndToEndUsername(t *testing.T) {
	exec, rec := fixtureExecutor(getRule(claimsURL+"?username=alice", 200, `{"roles":["admin"]}`))
	r := NewResolver(exec)

	cfg := ClaimConfig{URL: claimsURL, SendUsername: true, SendClientID: false, Headers: ""}
	got, err := r.Resolve(context.Background(), cfg, alice())
	require.NoError(t, err)
	assert.JSONEq(t, `{"roles":["admin"]}`, string(got))

	reqs := rec.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "GET", reqs[0].Method)
	assert.Equal(t, "https://claims.example/info?username=alice", reqs[0].URL)
	assert.Equal(t, "application/json", reqs[0].Header.Get("Content-Type"))
	assert.Empty(t, reqs[0].Header.Get("Authorization"))
	assert.Empty(t, reqs[0].Body)
}

func TestResolver_BearerFlow(t *testing.T) {
	exec, rec := fixtureExecutor(
		tokenRule(200, `{"access_token":"abc"}`),
		httpfixture.HTTPFixtureRule{
			Request: httpfixture.FixtureRequest{
				Method:  "GET",
				URL:     claimsURL + "?client_id=web",
				Headers: map[string]string{"Authorization": "Bearer abc"},
			},
			Response: httpfixture.Fixture{StatusCode: 200, Body: `{"ok":true}`},
		},
	)
	r := NewResolver(exec)

	cfg := ClaimConfig{
		URL:             claimsURL,
		SendClientID:    true,
		SendBearerToken: true,
		Auth:            AuthConfig{URL: tokenURL, ClientID: "cid", ClientSecret: "secret"},
	}

	got, err := r.Resolve(context.Background(), cfg, alice())
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(got))

	reqs := rec.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, tokenURL, reqs[0].URL)
	assert.Equal(t, claimsURL+"?client_id=web", reqs[1].URL)
}

func TestResolver_ExchangeFailureStopsFetch(t *testing.T) {
	exec, rec := fixtureExecutor(
		tokenRule(200, `{"token_type":"bearer"}`),
		getRule(claimsURL, 200, `{}`),
	)
	r := NewResolver(exec)

	_, err := r.Resolve(context.Background(), ClaimConfig{
		URL:             claimsURL,
		SendBearerToken: true,
		Auth:            AuthConfig{URL: tokenURL, ClientID: "cid", ClientSecret: "secret"},
	}, alice())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingAccessToken)
	assert.Equal(t, 0, rec.Count("GET", claimsURL))
}

func TestResolver_FetchErrorPropagates(t *testing.T) {
	exec, _ := fixtureExecutor(getRule(claimsURL, 404, `{"error":"nope"}`))
	r := NewResolver(exec)

	got, err := r.Resolve(context.Background(), ClaimConfig{URL: claimsURL}, alice())
	require.Error(t, err)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
}

func TestResolver_ResolveInContext(t *testing.T) {
	cfg := ClaimConfig{URL: claimsURL, SendUsername: true}
	url := claimsURL + "?username=alice"

	t.Run("shared context fetches once", func(t *testing.T) {
		exec, rec := fixtureExecutor(getRule(url, 200, `{"n":1}`))
		r := NewResolver(exec)
		issuance := session.NewIssuanceContext()

		for i := 0; i < 3; i++ {
			got, err := r.ResolveInContext(context.Background(), issuance, session.RemoteAuthorizationsAttr, cfg, alice())
			require.NoError(t, err)
			assert.JSONEq(t, `{"n":1}`, string(got))
		}
		assert.Equal(t, 1, rec.Count("GET", url))

		cached, ok := issuance.Get(session.RemoteAuthorizationsAttr)
		require.True(t, ok)
		assert.IsType(t, json.RawMessage{}, cached)
	})

	t.Run("distinct contexts fetch twice", func(t *testing.T) {
		exec, rec := fixtureExecutor(getRule(url, 200, `{"n":1}`))
		r := NewResolver(exec)

		for i := 0; i < 2; i++ {
			_, err := r.ResolveInContext(context.Background(), session.NewIssuanceContext(), session.RemoteAuthorizationsAttr, cfg, alice())
			require.NoError(t, err)
		}
		assert.Equal(t, 2, rec.Count("GET", url))
	})

	t.Run("legacy path without context always fetches", func(t *testing.T) {
		exec, rec := fixtureExecutor(getRule(url, 200, `{"n":1}`))
		r := NewResolver(exec)

		for i := 0; i < 2; i++ {
			_, err := r.ResolveInContext(context.Background(), nil, session.RemoteAuthorizationsAttr, cfg, alice())
			require.NoError(t, err)
		}
		assert.Equal(t, 2, rec.Count("GET", url))
	})

	t.Run("concurrent mappers share one fetch", func(t *testing.T) {
		exec, rec := fixtureExecutor(getRule(url, 200, `{"n":1}`))
		r := NewResolver(exec)
		issuance := session.NewIssuanceContext()

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := r.ResolveInContext(context.Background(), issuance, session.RemoteAuthorizationsAttr, cfg, alice())
				assert.NoError(t, err)
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, rec.Count("GET", url))
	})

	t.Run("failures are not cached", func(t *testing.T) {
		exec, rec := fixtureExecutor(getRule(url, 500, ``))
		r := NewResolver(exec)
		issuance := session.NewIssuanceContext()

		for i := 0; i < 2; i++ {
			_, err := r.ResolveInContext(context.Background(), issuance, session.RemoteAuthorizationsAttr, cfg, alice())
			require.Error(t, err)
		}
		assert.Equal(t, 2, rec.Count("GET", url))
		_, ok := issuance.Get(session.RemoteAuthorizationsAttr)
		assert.False(t, ok)
	})
}

func TestClaimConfig_Validate(t *testing.T) {
	assert.NoError(t, ClaimConfig{URL: claimsURL}.Validate())
	assert.ErrorIs(t, ClaimConfig{URL: "claims"}.Validate(), ErrInvalidURL)
	assert.ErrorIs(t, ClaimConfig{URL: claimsURL, SendBearerToken: true}.Validate(), ErrInvalidConfig)
	assert.NoError(t, ClaimConfig{
		URL:             claimsURL,
		SendBearerToken: true,
		Auth:            AuthConfig{URL: tokenURL, ClientID: "cid", ClientSecret: "s"},
	}.Validate())
}

func TestResolver_BearerTokenNotSentToRedirectTarget(t *testing.T) {
	var leaked atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"abc"}`))
	})
	mux.HandleFunc("/info", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	})
	mux.HandleFunc("/elsewhere", func(w http.ResponseWriter, r *http.Request) {
		leaked.Add(1)
		_, _ = w.Write([]byte(`{"stolen":true}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	r := NewResolver(NewExecutor(ExecutorConfig{}))
	got, err := r.Resolve(context.Background(), ClaimConfig{
		URL:             server.URL + "/info",
		SendBearerToken: true,
		Auth:            AuthConfig{URL: server.URL + "/token", ClientID: "cid", ClientSecret: "secret"},
	}, alice())
	require.Error(t, err)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
	assert.EqualValues(t, 0, leaked.Load())
}

func TestResolver_MissingAttributeSentBare(t *testing.T) {
	exec, rec := fixtureExecutor(getRule(claimsURL+"?dept=eng&title", 200, `{}`))
	r := NewResolver(exec)

	_, err := r.Resolve(context.Background(), ClaimConfig{URL: claimsURL, UserAttributes: "dept,title"}, alice())
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Count("GET", claimsURL+"?dept=eng&title"))
}
