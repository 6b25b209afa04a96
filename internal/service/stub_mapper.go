package service

import (
	"context"

	"github.com/project-kessel/remoteclaim/internal/claims"
)

// StubClaimMapper is a simple stub claim mapper for testing
type StubClaimMapper struct {
	claims claims.Claims
}

// NewStubClaimMapper creates a new stub claim mapper
func NewStubClaimMapper(c claims.Claims) *StubClaimMapper {
	return &StubClaimMapper{
		claims: c,
	}
}

// Map implements the ClaimMapper interface
func (s *StubClaimMapper) Map(ctx context.Context, input *MapperInput) (claims.Claims, error) {
	return s.claims.Copy(), nil
}

// IdentityMapper creates standard claims from the session identity
type IdentityMapper struct{}

// NewIdentityMapper creates a mapper that includes the username and client
func NewIdentityMapper() *IdentityMapper {
	return &IdentityMapper{}
}

// Map implements the ClaimMapper interface
func (m *IdentityMapper) Map(ctx context.Context, input *MapperInput) (claims.Claims, error) {
	if input.Identity == nil {
		return nil, nil
	}

	result := make(claims.Claims)
	if input.Identity.Username != "" {
		result["preferred_username"] = input.Identity.Username
	}
	if input.Identity.Client != nil && input.Identity.Client.ClientID != "" {
		result["azp"] = input.Identity.Client.ClientID
	}
	return result, nil
}
