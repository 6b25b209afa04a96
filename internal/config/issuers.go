package config

import (
	"fmt"
	"maps"
	"os"
	"time"

	"github.com/project-kessel/remoteclaim/internal/claims"
	"github.com/project-kessel/remoteclaim/internal/clock"
	"github.com/project-kessel/remoteclaim/internal/issuer"
	"github.com/project-kessel/remoteclaim/internal/mapper"
	"github.com/project-kessel/remoteclaim/internal/service"
)

// defaultTokenTypes are issued when no issuer is configured
var defaultTokenTypes = []service.TokenType{
	service.TokenTypeAccessToken,
	service.TokenTypeIDToken,
	service.TokenTypeUserInfo,
}

// NewIssuerRegistry creates an issuer per configured token type. All issuers
// share the claim mappers, which are checked against sources.
func NewIssuerRegistry(cfg *Config, sources *service.DataSourceRegistry, clk clock.Clock) (service.Registry, error) {
	mappers, err := NewClaimMappers(cfg.ClaimMappers, sources)
	if err != nil {
		return nil, err
	}

	issuerCfgs := cfg.Issuers
	if len(issuerCfgs) == 0 {
		for _, tt := range defaultTokenTypes {
			issuerCfgs = append(issuerCfgs, IssuerConfig{TokenType: string(tt)})
		}
	}

	registry := service.NewSimpleRegistry()
	seen := make(map[service.TokenType]bool, len(issuerCfgs))
	for i, issuerCfg := range issuerCfgs {
		tokenType, err := service.ParseTokenType(issuerCfg.TokenType)
		if err != nil {
			return nil, fmt.Errorf("issuer %d: %w", i, err)
		}
		if seen[tokenType] {
			return nil, fmt.Errorf("duplicate issuer for token type %s", tokenType)
		}
		seen[tokenType] = true

		iss, err := newUnsignedIssuer(cfg.IssuerURL, tokenType, issuerCfg, mappers, clk)
		if err != nil {
			return nil, fmt.Errorf("failed to create issuer for %s: %w", tokenType, err)
		}
		registry.Register(tokenType, iss)
	}

	return registry, nil
}

func newUnsignedIssuer(issuerURL string, tokenType service.TokenType, cfg IssuerConfig, mappers []service.ClaimMapper, clk clock.Clock) (service.Issuer, error) {
	ttl, err := parseDuration("ttl", cfg.TTL, issuer.DefaultTTL)
	if err != nil {
		return nil, err
	}

	var filter claims.Filter
	if cfg.Claims != nil {
		filter = claims.NewFilter(cfg.Claims.Allow, cfg.Claims.Deny)
	}

	return issuer.NewUnsignedIssuer(issuer.UnsignedIssuerConfig{
		IssuerURL:    issuerURL,
		TokenType:    tokenType,
		TTL:          ttl,
		ClaimMappers: mappers,
		Filter:       filter,
		Clock:        clk,
	}), nil
}

// NewClaimMappers creates the claim mappers in configuration order
func NewClaimMappers(cfgs []ClaimMapperConfig, sources *service.DataSourceRegistry) ([]service.ClaimMapper, error) {
	mappers := make([]service.ClaimMapper, 0, len(cfgs))
	for i, mapperCfg := range cfgs {
		m, err := newClaimMapper(mapperCfg, sources)
		if err != nil {
			return nil, fmt.Errorf("failed to create claim mapper %d: %w", i, err)
		}

		tokenTypes := make([]service.TokenType, 0, len(mapperCfg.TokenTypes))
		for _, s := range mapperCfg.TokenTypes {
			tt, err := service.ParseTokenType(s)
			if err != nil {
				return nil, fmt.Errorf("claim mapper %d: %w", i, err)
			}
			tokenTypes = append(tokenTypes, tt)
		}

		mappers = append(mappers, mapper.NewScopedMapper(m, tokenTypes))
	}
	return mappers, nil
}

func newClaimMapper(cfg ClaimMapperConfig, sources *service.DataSourceRegistry) (service.ClaimMapper, error) {
	switch cfg.Type {
	case "remote_claim":
		return newRemoteClaimMapper(cfg, sources)
	case "cel":
		return newCELMapper(cfg)
	case "identity":
		return service.NewIdentityMapper(), nil
	case "stub":
		return newStubMapper(cfg)
	default:
		return nil, fmt.Errorf("unknown claim mapper type: %s (supported: remote_claim, cel, identity, stub)", cfg.Type)
	}
}

func newRemoteClaimMapper(cfg ClaimMapperConfig, sources *service.DataSourceRegistry) (service.ClaimMapper, error) {
	if cfg.DataSource != "" && sources.Get(cfg.DataSource) == nil {
		return nil, fmt.Errorf("remote_claim mapper references unknown data source: %s", cfg.DataSource)
	}
	return mapper.NewRemoteClaimMapper(cfg.DataSource, cfg.ClaimName)
}

func newCELMapper(cfg ClaimMapperConfig) (service.ClaimMapper, error) {
	script := cfg.Script
	if cfg.ScriptFile != "" {
		content, err := os.ReadFile(cfg.ScriptFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read script file %s: %w", cfg.ScriptFile, err)
		}
		script = string(content)
	}

	if script == "" {
		return nil, fmt.Errorf("cel mapper requires script or script_file")
	}

	return mapper.NewCELMapper(script)
}

func newStubMapper(cfg ClaimMapperConfig) (service.ClaimMapper, error) {
	if cfg.Claims == nil {
		return nil, fmt.Errorf("stub mapper requires claims")
	}
	return service.NewStubClaimMapper(claims.Claims(maps.Clone(cfg.Claims))), nil
}

// parseDuration parses a configured duration, returning def when unset
func parseDuration(field, value string, def time.Duration) (time.Duration, error) {
	if value == "" {
		return def, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, value, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", field, value)
	}
	return d, nil
}
