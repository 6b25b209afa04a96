package config

import (
	"fmt"

	"github.com/project-kessel/remoteclaim/internal/datasource"
	"github.com/project-kessel/remoteclaim/internal/remote"
	"github.com/project-kessel/remoteclaim/internal/service"
)

// NewDataSourceRegistry creates a data source registry from configuration.
// Every source shares resolver and reports to observer.
func NewDataSourceRegistry(cfg []DataSourceConfig, resolver *remote.Resolver, observer service.RemoteClaimObserver) (*service.DataSourceRegistry, error) {
	registry := service.NewDataSourceRegistry()
	seen := make(map[string]bool, len(cfg))

	for i, dsCfg := range cfg {
		if dsCfg.Name == "" {
			return nil, fmt.Errorf("data source %d: name is required", i)
		}
		if seen[dsCfg.Name] {
			return nil, fmt.Errorf("duplicate data source name: %s", dsCfg.Name)
		}
		seen[dsCfg.Name] = true

		ds, err := newDataSource(dsCfg, resolver, observer)
		if err != nil {
			return nil, fmt.Errorf("failed to create data source %s: %w", dsCfg.Name, err)
		}
		registry.Register(ds)
	}

	return registry, nil
}

func newDataSource(cfg DataSourceConfig, resolver *remote.Resolver, observer service.RemoteClaimObserver) (service.DataSource, error) {
	switch cfg.Type {
	case "remote", "":
		return newRemoteDataSource(cfg, resolver, observer)
	default:
		return nil, fmt.Errorf("unknown data source type: %s (supported: remote)", cfg.Type)
	}
}

func newRemoteDataSource(cfg DataSourceConfig, resolver *remote.Resolver, observer service.RemoteClaimObserver) (service.DataSource, error) {
	if cfg.Remote == nil {
		return nil, fmt.Errorf("remote data source requires a remote section")
	}

	return datasource.NewRemoteDataSource(datasource.RemoteDataSourceConfig{
		Name:     cfg.Name,
		Claim:    ClaimConfigFrom(cfg.Remote),
		Resolver: resolver,
		Observer: observer,
	})
}

// ClaimConfigFrom converts the file representation of a remote claim
func ClaimConfigFrom(cfg *RemoteClaimConfig) remote.ClaimConfig {
	claim := remote.ClaimConfig{
		URL:             cfg.URL,
		Parameters:      cfg.Parameters,
		Headers:         cfg.Headers,
		SendUsername:    cfg.SendUsername == nil || *cfg.SendUsername,
		SendClientID:    cfg.SendClientID,
		UserAttributes:  cfg.UserAttributes,
		SendBearerToken: cfg.SendBearerToken,
	}
	if cfg.ClientAuth != nil {
		claim.Auth = remote.AuthConfig{
			URL:          cfg.ClientAuth.URL,
			ClientID:     cfg.ClientAuth.ClientID,
			ClientSecret: cfg.ClientAuth.ClientSecret,
		}
	}
	return claim
}
