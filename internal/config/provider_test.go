package config

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/project-kessel/remoteclaim/internal/remote"
	"github.com/project-kessel/remoteclaim/internal/service"
	"github.com/project-kessel/remoteclaim/internal/session"
)

func hermeticTestConfig() *Config {
	return &Config{
		IssuerURL: "https://remoteclaim.test",
		HTTP:      HTTPConfig{Timeout: "5s"},
		DataSources: []DataSourceConfig{{
			Name: "authz",
			Type: "remote",
			Remote: &RemoteClaimConfig{
				URL:             "https://claims.example/info",
				Parameters:      "scope=all",
				SendBearerToken: true,
				ClientAuth: &ClientAuthConfig{
					URL:          "https://idp.example/token",
					ClientID:     "cid",
					ClientSecret: "s",
				},
			},
		}},
		ClaimMappers: []ClaimMapperConfig{
			{Type: "identity"},
			{Type: "remote_claim", DataSource: "authz", ClaimName: "authorization", TokenTypes: []string{"access_token", "id_token"}},
			{Type: "cel", Script: `{"dept": datasource("authz").dept}`, TokenTypes: []string{"id_token"}},
		},
		Issuers: []IssuerConfig{
			{TokenType: "access_token", TTL: "10m"},
			{TokenType: "id_token", Claims: &ClaimsFilterConfig{Deny: []string{"azp"}}},
		},
		Fixtures: []FixtureConfig{
			{
				Type: "http_rule",
				Request: FixtureRequestConfig{
					Method: "POST",
					URL:    "https://idp.example/token",
					Body:   "grant_type=client_credentials&client_id=cid&client_secret=s",
				},
				Response: FixtureResponseConfig{StatusCode: 200, Body: `{"access_token":"tok","token_type":"Bearer"}`},
			},
			{
				Type: "http_rule",
				Request: FixtureRequestConfig{
					Method:  "GET",
					URL:     "https://claims.example/info?scope=all&username=alice",
					Headers: map[string]string{"Authorization": "Bearer tok"},
				},
				Response: FixtureResponseConfig{Body: `{"roles":["admin"],"dept":"eng"}`},
			},
		},
	}
}

func TestProvider_IssuesTokensHermetically(t *testing.T) {
	provider := NewProvider(hermeticTestConfig())
	observer := service.NewFakeObserver(t)
	provider.SetObserver(observer)

	ts, err := provider.TokenService()
	require.NoError(t, err)

	tokens, err := ts.IssueTokens(context.Background(), &service.IssueRequest{
		Identity:   &session.Identity{Username: "alice", Client: &session.ClientSession{ClientID: "web"}},
		TokenTypes: []service.TokenType{service.TokenTypeAccessToken, service.TokenTypeIDToken},
	})
	require.NoError(t, err)

	access := tokens[service.TokenTypeAccessToken]
	require.NotNil(t, access)
	assert.Equal(t, "https://remoteclaim.test", access.Claims["iss"])
	assert.Equal(t, "web", access.Claims["azp"])
	assert.Equal(t, map[string]any{"roles": []any{"admin"}, "dept": "eng"}, access.Claims["authorization"])
	assert.NotContains(t, access.Claims, "dept")

	id := tokens[service.TokenTypeIDToken]
	require.NotNil(t, id)
	assert.Equal(t, "eng", id.Claims["dept"])
	assert.NotContains(t, id.Claims, "azp")

	probes := observer.ProbesStartedWith("RemoteClaimStarted")
	require.Len(t, probes, 3)
	probes[0].AssertProbeSequence(service.ProbeCall("Resolved"), "End")
	probes[1].AssertProbeSequence("CacheHit", "End")
	probes[2].AssertProbeSequence("CacheHit", "End")
}

func TestProvider_RemoteFailureFailsIssuance(t *testing.T) {
	cfg := hermeticTestConfig()
	cfg.Fixtures[1].Response = FixtureResponseConfig{StatusCode: 500, Body: "oops"}

	ts, err := NewProvider(cfg).TokenService()
	require.NoError(t, err)

	_, err = ts.IssueTokens(context.Background(), &service.IssueRequest{
		Identity:   &session.Identity{Username: "alice", Client: &session.ClientSession{ClientID: "web"}},
		TokenTypes: []service.TokenType{service.TokenTypeAccessToken},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, remote.ErrUnexpectedStatus)
}

func TestProvider_DefaultIssuers(t *testing.T) {
	provider := NewProvider(&Config{})
	registry, err := provider.IssuerRegistry()
	require.NoError(t, err)

	for _, tt := range []service.TokenType{service.TokenTypeAccessToken, service.TokenTypeIDToken, service.TokenTypeUserInfo} {
		_, err := registry.GetIssuer(tt)
		assert.NoError(t, err, "issuer for %s", tt)
	}
}

func TestProvider_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{
			name:    "unknown data source type",
			mutate:  func(cfg *Config) { cfg.DataSources[0].Type = "lua" },
			wantErr: "unknown data source type",
		},
		{
			name:    "missing data source name",
			mutate:  func(cfg *Config) { cfg.DataSources[0].Name = "" },
			wantErr: "name is required",
		},
		{
			name: "duplicate data source name",
			mutate: func(cfg *Config) {
				cfg.DataSources = append(cfg.DataSources, cfg.DataSources[0])
			},
			wantErr: "duplicate data source name: authz",
		},
		{
			name:    "remote source without url",
			mutate:  func(cfg *Config) { cfg.DataSources[0].Remote.URL = "" },
			wantErr: "wrong uri syntax",
		},
		{
			name:    "missing remote section",
			mutate:  func(cfg *Config) { cfg.DataSources[0].Remote = nil },
			wantErr: "requires a remote section",
		},
		{
			name:    "incomplete client auth",
			mutate:  func(cfg *Config) { cfg.DataSources[0].Remote.ClientAuth.ClientSecret = "" },
			wantErr: "client auth configuration incomplete",
		},
		{
			name:    "mapper references unknown data source",
			mutate:  func(cfg *Config) { cfg.ClaimMappers[1].DataSource = "missing" },
			wantErr: "unknown data source: missing",
		},
		{
			name:    "unknown mapper type",
			mutate:  func(cfg *Config) { cfg.ClaimMappers[0].Type = "lua" },
			wantErr: "unknown claim mapper type",
		},
		{
			name:    "unknown mapper token type",
			mutate:  func(cfg *Config) { cfg.ClaimMappers[1].TokenTypes = []string{"refresh_token"} },
			wantErr: "unknown token type",
		},
		{
			name:    "bad ttl",
			mutate:  func(cfg *Config) { cfg.Issuers[0].TTL = "forever" },
			wantErr: "invalid ttl",
		},
		{
			name:    "duplicate issuer",
			mutate:  func(cfg *Config) { cfg.Issuers[1].TokenType = "access_token" },
			wantErr: "duplicate issuer",
		},
		{
			name:    "bad http timeout",
			mutate:  func(cfg *Config) { cfg.HTTP.Timeout = "-1s" },
			wantErr: "invalid http.timeout",
		},
		{
			name:    "unknown fixture type",
			mutate:  func(cfg *Config) { cfg.Fixtures[0].Type = "jwks" },
			wantErr: "unknown fixture type",
		},
		{
			name:    "unknown observability type",
			mutate:  func(cfg *Config) { cfg.Observability = &ObservabilityConfig{Type: "tracing"} },
			wantErr: "unknown observability type",
		},
		{
			name:    "empty composite observer",
			mutate:  func(cfg *Config) { cfg.Observability = &ObservabilityConfig{Type: "composite"} },
			wantErr: "at least one sub-observer",
		},
		{
			name:    "bad shutdown timeout",
			mutate:  func(cfg *Config) { cfg.Server.ShutdownTimeout = "soon" },
			wantErr: "invalid server.shutdown_timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := hermeticTestConfig()
			tt.mutate(cfg)

			err := NewProvider(cfg).Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestProvider_CompositeObserver(t *testing.T) {
	cfg := hermeticTestConfig()
	cfg.Observability = &ObservabilityConfig{
		Type: "composite",
		Observers: []ObservabilityConfig{
			{Type: "logging"},
			{Type: "metrics"},
		},
	}

	provider := NewProvider(cfg)
	require.NoError(t, provider.Validate())

	ts, err := provider.TokenService()
	require.NoError(t, err)
	_, err = ts.IssueTokens(context.Background(), &service.IssueRequest{
		Identity:   &session.Identity{Username: "alice", Client: &session.ClientSession{ClientID: "web"}},
		TokenTypes: []service.TokenType{service.TokenTypeAccessToken},
	})
	require.NoError(t, err)

	families, err := provider.MetricsRegistry().Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "remoteclaim_issuance_passes_total")
	assert.Contains(t, names, "remoteclaim_remote_claim_fetches_total")
}

func TestProvider_SendsUserAgent(t *testing.T) {
	userAgents := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgents <- r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	for _, tt := range []struct {
		name      string
		userAgent string
		want      string
	}{
		{name: "default", want: "remoteclaim"},
		{name: "configured", userAgent: "remoteclaim/test", want: "remoteclaim/test"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			provider := NewProvider(&Config{
				HTTP: HTTPConfig{UserAgent: tt.userAgent},
				DataSources: []DataSourceConfig{{
					Name:   "authz",
					Type:   "remote",
					Remote: &RemoteClaimConfig{URL: server.URL + "/info"},
				}},
			})
			registry, err := provider.DataSourceRegistry()
			require.NoError(t, err)
			source := registry.Get("authz")
			require.NotNil(t, source)

			_, err = source.Fetch(context.Background(), &service.DataSourceInput{Identity: &session.Identity{Username: "alice"}})
			require.NoError(t, err)
			assert.Equal(t, tt.want, <-userAgents)
		})
	}
}
