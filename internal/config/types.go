package config

// Config is the root configuration structure
type Config struct {
	// Server configures the HTTP listener
	Server ServerConfig `koanf:"server"`

	// IssuerURL is the iss claim of every issued token
	IssuerURL string `koanf:"issuer_url"`

	// HTTP configures outbound calls to claim and token endpoints
	HTTP HTTPConfig `koanf:"http"`

	// DataSources are the named remote claim sources
	DataSources []DataSourceConfig `koanf:"data_sources"`

	// ClaimMappers are shared by every issuer, in order
	ClaimMappers []ClaimMapperConfig `koanf:"claim_mappers"`

	// Issuers configures one issuer per token type
	Issuers []IssuerConfig `koanf:"issuers"`

	// Fixtures replace the network with canned responses (hermetic mode)
	Fixtures []FixtureConfig `koanf:"fixtures"`

	// Observability configures logging and metrics
	Observability *ObservabilityConfig `koanf:"observability"`
}

// ServerConfig configures the HTTP server
type ServerConfig struct {
	HTTPPort int `koanf:"http_port"`

	// ShutdownTimeout bounds graceful shutdown (e.g. "10s")
	ShutdownTimeout string `koanf:"shutdown_timeout"`
}

// HTTPConfig configures the outbound HTTP client
type HTTPConfig struct {
	// Timeout applies to each outbound call (default "30s")
	Timeout string `koanf:"timeout"`

	// UserAgent is sent on every outbound call (default "remoteclaim")
	UserAgent string `koanf:"user_agent"`
}

// DataSourceConfig configures a data source
type DataSourceConfig struct {
	Name string `koanf:"name"`

	// Type is the data source type (only "remote" is supported)
	Type string `koanf:"type"`

	Remote *RemoteClaimConfig `koanf:"remote"`
}

// RemoteClaimConfig describes one remote claim endpoint
type RemoteClaimConfig struct {
	URL string `koanf:"url"`

	// Parameters are fixed query parameters, "k=v&k2=v2"
	Parameters string `koanf:"parameters"`

	// Headers are fixed request headers, "K=v&K2=v2"
	Headers string `koanf:"headers"`

	// SendUsername defaults to true when unset
	SendUsername *bool `koanf:"send_username"`
	SendClientID bool  `koanf:"send_client_id"`

	// UserAttributes lists user attributes sent as query parameters, "a&b" or "a,b"
	UserAttributes string `koanf:"user_attributes"`

	// SendBearerToken obtains a client credentials token and sends it as Authorization
	SendBearerToken bool `koanf:"send_bearer_token"`

	ClientAuth *ClientAuthConfig `koanf:"client_auth"`
}

// ClientAuthConfig configures the client credentials grant
type ClientAuthConfig struct {
	URL          string `koanf:"url"`
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
}

// ClaimMapperConfig configures a claim mapper
type ClaimMapperConfig struct {
	// Type is one of remote_claim, cel, identity, stub
	Type string `koanf:"type"`

	// DataSource and ClaimName configure remote_claim mappers
	DataSource string `koanf:"data_source"`
	ClaimName  string `koanf:"claim_name"`

	// Script or ScriptFile configure cel mappers
	Script     string `koanf:"script"`
	ScriptFile string `koanf:"script_file"`

	// Claims configures stub mappers
	Claims map[string]any `koanf:"claims"`

	// TokenTypes restricts the mapper to these token types; empty means all
	TokenTypes []string `koanf:"token_types"`
}

// IssuerConfig configures the issuer of one token type
type IssuerConfig struct {
	// TokenType is access_token, id_token or userinfo
	TokenType string `koanf:"token_type"`

	// TTL is the token lifetime (default "5m")
	TTL string `koanf:"ttl"`

	// Claims filters the mapped claims of this token type
	Claims *ClaimsFilterConfig `koanf:"claims"`
}

// ClaimsFilterConfig restricts claims by name. Allow wins over Deny when both are set.
type ClaimsFilterConfig struct {
	Allow []string `koanf:"allow"`
	Deny  []string `koanf:"deny"`
}

// FixtureConfig configures a canned HTTP response
type FixtureConfig struct {
	// Type is the fixture type (only "http_rule" is supported)
	Type     string                `koanf:"type"`
	Request  FixtureRequestConfig  `koanf:"request"`
	Response FixtureResponseConfig `koanf:"response"`
}

// FixtureRequestConfig matches outbound requests
type FixtureRequestConfig struct {
	Method  string            `koanf:"method"`
	URL     string            `koanf:"url"`
	URLType string            `koanf:"url_type"`
	Headers map[string]string `koanf:"headers"`
	Body    string            `koanf:"body"`
}

// FixtureResponseConfig is the canned response
type FixtureResponseConfig struct {
	StatusCode int               `koanf:"status_code"`
	Headers    map[string]string `koanf:"headers"`
	Body       string            `koanf:"body"`
	Delay      string            `koanf:"delay"`
}

// ObservabilityConfig configures observers and logging
type ObservabilityConfig struct {
	// Type is one of logging, metrics, composite, noop
	Type string `koanf:"type"`

	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`

	// Per-event overrides
	TokenIssuance *EventConfig `koanf:"token_issuance"`
	RemoteClaim   *EventConfig `koanf:"remote_claim"`

	// Observers are the children of a composite observer
	Observers []ObservabilityConfig `koanf:"observers"`
}

// EventConfig overrides logging of one probe event
type EventConfig struct {
	Enabled  *bool  `koanf:"enabled"`
	LogLevel string `koanf:"log_level"`
}
