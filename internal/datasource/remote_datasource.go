package datasource

import (
	"context"
	"fmt"

	"github.com/project-kessel/remoteclaim/internal/remote"
	"github.com/project-kessel/remoteclaim/internal/service"
	"github.com/project-kessel/remoteclaim/internal/session"
)

// RemoteDataSource fetches a remote claim payload as JSON.
// Within one issuance pass the payload is fetched once and shared by every
// mapper and token type reading this source.
type RemoteDataSource struct {
	name     string
	claim    remote.ClaimConfig
	resolver *remote.Resolver
	observer service.RemoteClaimObserver
	cacheKey string
}

// RemoteDataSourceConfig configures a remote data source
type RemoteDataSourceConfig struct {
	// Name identifies this data source
	Name string

	// Claim describes the remote endpoint and what to send to it
	Claim remote.ClaimConfig

	// Resolver performs the calls. If nil, one with default settings is used.
	Resolver *remote.Resolver

	// Observer receives remote claim events. If nil, events are dropped.
	Observer service.RemoteClaimObserver
}

// NewRemoteDataSource creates a new remote data source.
// The claim configuration is validated up front so bad URLs and incomplete
// client credentials surface at startup rather than at issuance.
func NewRemoteDataSource(cfg RemoteDataSourceConfig) (*RemoteDataSource, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("data source name is required")
	}
	if err := cfg.Claim.Validate(); err != nil {
		return nil, fmt.Errorf("data source %s: %w", cfg.Name, err)
	}

	resolver := cfg.Resolver
	if resolver == nil {
		resolver = remote.NewResolver(remote.NewExecutor(remote.ExecutorConfig{}))
	}
	observer := cfg.Observer
	if observer == nil {
		observer = service.NoOpRemoteClaimObserver()
	}

	return &RemoteDataSource{
		name:     cfg.Name,
		claim:    cfg.Claim,
		resolver: resolver,
		observer: observer,
		cacheKey: CacheKey(cfg.Name),
	}, nil
}

// CacheKey is the issuance attribute a source's payload is memoized under
func CacheKey(source string) string {
	return session.RemoteAuthorizationsAttr + "/" + source
}

// Name returns the data source name
func (ds *RemoteDataSource) Name() string {
	return ds.name
}

// Fetch resolves the remote claim for the input identity.
// Every resolution failure is returned; there is no empty fallback result.
func (ds *RemoteDataSource) Fetch(ctx context.Context, input *service.DataSourceInput) (*service.DataSourceResult, error) {
	if input == nil {
		return nil, fmt.Errorf("data source %s: no input", ds.name)
	}

	ctx, probe := ds.observer.RemoteClaimStarted(ctx, ds.name, ds.claim.URL)
	defer probe.End()

	cached := false
	if input.Attributes != nil {
		_, cached = input.Attributes.Get(ds.cacheKey)
	}

	data, err := ds.resolver.ResolveInContext(ctx, input.Attributes, ds.cacheKey, ds.claim, input.Identity)
	if err != nil {
		probe.Failed(err)
		return nil, fmt.Errorf("data source %s: %w", ds.name, err)
	}

	if cached {
		probe.CacheHit()
	} else {
		probe.Resolved(len(data))
	}

	return &service.DataSourceResult{
		Data:        data,
		ContentType: service.ContentTypeJSON,
	}, nil
}
