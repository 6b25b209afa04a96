package config

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/project-kessel/remoteclaim/internal/clock"
	"github.com/project-kessel/remoteclaim/internal/httpfixture"
	"github.com/project-kessel/remoteclaim/internal/probe"
	"github.com/project-kessel/remoteclaim/internal/remote"
	"github.com/project-kessel/remoteclaim/internal/server"
	"github.com/project-kessel/remoteclaim/internal/service"
)

// Provider constructs all application components from configuration.
// Components are built lazily and cached after the first call.
type Provider struct {
	config *Config
	clock  clock.Clock

	logger              *slog.Logger
	registry            *prometheus.Registry
	metrics             *probe.Metrics
	observer            service.ApplicationObserver
	httpFixtureProvider httpfixture.FixtureProvider
	httpFixtureBuilt    bool
	resolver            *remote.Resolver
	dataSourceRegistry  *service.DataSourceRegistry
	issuerRegistry      service.Registry
	tokenService        *service.TokenService
}

// NewProvider creates a new provider from configuration
func NewProvider(config *Config) *Provider {
	return &Provider{
		config: config,
		clock:  clock.NewSystemClock(),
	}
}

// SetClock replaces the time source of issuers and fixture delays.
// Must be called before any component is built.
func (p *Provider) SetClock(clk clock.Clock) {
	p.clock = clk
}

// SetLogger sets the logger shared by logging observers and the server
func (p *Provider) SetLogger(logger *slog.Logger) {
	p.logger = logger
}

// SetObserver overrides the observer built from configuration
func (p *Provider) SetObserver(observer service.ApplicationObserver) {
	p.observer = observer
}

// Logger returns the configured logger
func (p *Provider) Logger() *slog.Logger {
	if p.logger == nil {
		p.logger = NewLogger(p.config.Observability)
	}
	return p.logger
}

// MetricsRegistry returns the Prometheus registry served on /metrics
func (p *Provider) MetricsRegistry() *prometheus.Registry {
	if p.registry == nil {
		p.registry = prometheus.NewRegistry()
		p.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return p.registry
}

// Metrics returns the collectors fed by metrics observers
func (p *Provider) Metrics() *probe.Metrics {
	if p.metrics == nil {
		p.metrics = probe.NewMetrics(p.MetricsRegistry())
	}
	return p.metrics
}

// Observer returns the configured application observer
func (p *Provider) Observer() (service.ApplicationObserver, error) {
	if p.observer != nil {
		return p.observer, nil
	}

	observer, err := NewObserverWithLogger(p.config.Observability, p.Logger(), p.Metrics())
	if err != nil {
		return nil, fmt.Errorf("failed to create observer: %w", err)
	}

	p.observer = observer
	return observer, nil
}

// HTTPFixtureProvider returns the fixture provider for hermetic mode,
// or nil when no fixtures are configured.
func (p *Provider) HTTPFixtureProvider() (httpfixture.FixtureProvider, error) {
	if p.httpFixtureBuilt {
		return p.httpFixtureProvider, nil
	}

	provider, err := BuildHTTPFixtureProvider(p.config.Fixtures)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP fixture provider: %w", err)
	}

	p.httpFixtureProvider = provider
	p.httpFixtureBuilt = true
	return provider, nil
}

// HTTPTransport returns a fixture transport when fixtures are configured.
// Returns nil otherwise, and callers fall back to http.DefaultTransport.
// Hermetic mode is strict: requests without a fixture fail.
func (p *Provider) HTTPTransport() (http.RoundTripper, error) {
	fixtureProvider, err := p.HTTPFixtureProvider()
	if err != nil || fixtureProvider == nil {
		return nil, err
	}
	return httpfixture.NewTransport(httpfixture.TransportConfig{
		Provider: fixtureProvider,
		Strict:   true,
		Clock:    p.clock,
	}), nil
}

// Resolver returns the remote claim resolver shared by all data sources
func (p *Provider) Resolver() (*remote.Resolver, error) {
	if p.resolver != nil {
		return p.resolver, nil
	}

	timeout, err := parseDuration("http.timeout", p.config.HTTP.Timeout, remote.DefaultTimeout)
	if err != nil {
		return nil, err
	}
	transport, err := p.HTTPTransport()
	if err != nil {
		return nil, err
	}

	userAgent := p.config.HTTP.UserAgent
	if userAgent == "" {
		userAgent = remote.DefaultUserAgent
	}

	p.resolver = remote.NewResolver(remote.NewExecutor(remote.ExecutorConfig{
		Timeout:        timeout,
		Transport:      transport,
		RequestOptions: []remote.RequestOption{remote.UserAgent(userAgent)},
	}))
	return p.resolver, nil
}

// DataSourceRegistry returns the configured data source registry
func (p *Provider) DataSourceRegistry() (*service.DataSourceRegistry, error) {
	if p.dataSourceRegistry != nil {
		return p.dataSourceRegistry, nil
	}

	resolver, err := p.Resolver()
	if err != nil {
		return nil, err
	}
	observer, err := p.Observer()
	if err != nil {
		return nil, err
	}

	registry, err := NewDataSourceRegistry(p.config.DataSources, resolver, observer)
	if err != nil {
		return nil, fmt.Errorf("failed to create data source registry: %w", err)
	}

	p.dataSourceRegistry = registry
	return registry, nil
}

// IssuerRegistry returns the configured issuer registry
func (p *Provider) IssuerRegistry() (service.Registry, error) {
	if p.issuerRegistry != nil {
		return p.issuerRegistry, nil
	}

	sources, err := p.DataSourceRegistry()
	if err != nil {
		return nil, err
	}

	registry, err := NewIssuerRegistry(p.config, sources, p.clock)
	if err != nil {
		return nil, fmt.Errorf("failed to create issuer registry: %w", err)
	}

	p.issuerRegistry = registry
	return registry, nil
}

// TokenService returns the configured token service
func (p *Provider) TokenService() (*service.TokenService, error) {
	if p.tokenService != nil {
		return p.tokenService, nil
	}

	dataSourceRegistry, err := p.DataSourceRegistry()
	if err != nil {
		return nil, err
	}
	issuerRegistry, err := p.IssuerRegistry()
	if err != nil {
		return nil, err
	}
	observer, err := p.Observer()
	if err != nil {
		return nil, err
	}

	p.tokenService = service.NewTokenService(dataSourceRegistry, issuerRegistry, observer)
	return p.tokenService, nil
}

// ServerConfig returns the HTTP server configuration with every handler dependency built
func (p *Provider) ServerConfig() (server.Config, error) {
	tokenService, err := p.TokenService()
	if err != nil {
		return server.Config{}, err
	}
	shutdown, err := parseDuration("server.shutdown_timeout", p.config.Server.ShutdownTimeout, 10*time.Second)
	if err != nil {
		return server.Config{}, err
	}

	return server.Config{
		HTTPPort:        p.config.Server.HTTPPort,
		ShutdownTimeout: shutdown,
		TokenService:    tokenService,
		Gatherer:        p.MetricsRegistry(),
		Logger:          p.Logger(),
	}, nil
}

// Validate builds every component once so configuration errors surface at startup
func (p *Provider) Validate() error {
	_, err := p.ServerConfig()
	return err
}
