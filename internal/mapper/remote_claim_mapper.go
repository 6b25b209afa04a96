package mapper

import (
	"context"
	"fmt"

	celhelpers "github.com/project-kessel/remoteclaim/internal/cel"
	"github.com/project-kessel/remoteclaim/internal/claims"
	"github.com/project-kessel/remoteclaim/internal/service"
)

// RemoteClaimMapper places the whole payload of a data source under one
// claim name. Dotted names nest ("authz.remote" yields {"authz":{"remote":...}}).
type RemoteClaimMapper struct {
	dataSource string
	claimName  string
}

// NewRemoteClaimMapper creates a mapper for the named data source
func NewRemoteClaimMapper(dataSource, claimName string) (*RemoteClaimMapper, error) {
	if dataSource == "" {
		return nil, fmt.Errorf("remote claim mapper requires a data source")
	}
	if claimName == "" {
		return nil, fmt.Errorf("remote claim mapper requires a claim name")
	}
	return &RemoteClaimMapper{dataSource: dataSource, claimName: claimName}, nil
}

// Map implements service.ClaimMapper.
// A fetch failure fails the mapping; a JSON null payload adds no claim.
func (m *RemoteClaimMapper) Map(ctx context.Context, input *service.MapperInput) (claims.Claims, error) {
	if input == nil {
		return nil, fmt.Errorf("mapper input cannot be nil")
	}

	ds := input.DataSourceRegistry.Get(m.dataSource)
	if ds == nil {
		return nil, fmt.Errorf("unknown data source %q", m.dataSource)
	}

	result, err := ds.Fetch(ctx, input.DataSourceInput)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	if result.ContentType != service.ContentTypeJSON {
		return nil, fmt.Errorf("data source %s: unsupported content type %q", m.dataSource, result.ContentType)
	}

	value, err := celhelpers.DecodeJSON(result.Data)
	if err != nil {
		return nil, fmt.Errorf("data source %s: %w", m.dataSource, err)
	}

	out := make(claims.Claims)
	out.SetPath(m.claimName, value)
	return out, nil
}

// ClaimName returns the claim the payload is placed under
func (m *RemoteClaimMapper) ClaimName() string {
	return m.claimName
}

// ScopedMapper applies a mapper only to some token types
type ScopedMapper struct {
	mapper     service.ClaimMapper
	tokenTypes map[service.TokenType]bool
}

// NewScopedMapper limits m to tokenTypes. An empty list keeps m unscoped.
func NewScopedMapper(m service.ClaimMapper, tokenTypes []service.TokenType) service.ClaimMapper {
	if len(tokenTypes) == 0 {
		return m
	}
	set := make(map[service.TokenType]bool, len(tokenTypes))
	for _, tt := range tokenTypes {
		set[tt] = true
	}
	return &ScopedMapper{mapper: m, tokenTypes: set}
}

// Map implements service.ClaimMapper
func (s *ScopedMapper) Map(ctx context.Context, input *service.MapperInput) (claims.Claims, error) {
	if input == nil || !s.tokenTypes[input.TokenType] {
		return nil, nil
	}
	return s.mapper.Map(ctx, input)
}
