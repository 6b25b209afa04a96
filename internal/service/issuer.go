package service

import (
	"context"
	"time"

	"github.com/project-kessel/remoteclaim/internal/claims"
	"github.com/project-kessel/remoteclaim/internal/session"
)

// IssueContext contains the information needed to mint one token of a pass
type IssueContext struct {
	// Identity is the user session the token is issued for
	Identity *session.Identity

	// TokenType is the token being minted
	TokenType TokenType

	// Attributes is the pass-scoped store; nil in the legacy path
	Attributes session.Attributes

	// DataSourceRegistry provides access to data sources for lazy fetching
	DataSourceRegistry *DataSourceRegistry
}

// ToClaims applies a set of claim mappers to produce claims.
// Mappers run in order; later mappers win on conflicting keys.
// Any mapper error aborts, so a token is never built without a claim
// it was configured to carry.
func (ic *IssueContext) ToClaims(ctx context.Context, mappers []ClaimMapper) (claims.Claims, error) {
	dataSourceInput := &DataSourceInput{
		Identity:   ic.Identity,
		Attributes: ic.Attributes,
	}

	mapperInput := &MapperInput{
		Identity:           ic.Identity,
		TokenType:          ic.TokenType,
		DataSourceRegistry: ic.DataSourceRegistry,
		DataSourceInput:    dataSourceInput,
	}

	result := make(claims.Claims)
	for _, mapper := range mappers {
		mapperClaims, err := mapper.Map(ctx, mapperInput)
		if err != nil {
			return nil, err
		}
		result.Merge(mapperClaims)
	}

	return result, nil
}

// Issuer creates tokens from an issue context
// The issuer is responsible for claim mapping and token formatting
type Issuer interface {
	// Issue creates a token from the provided context
	Issue(ctx context.Context, issueCtx *IssueContext) (*Token, error)
}

// Token represents an issued token
type Token struct {
	// Value is the encoded token (e.g., JWT string)
	Value string

	// Type is the token type
	Type TokenType

	// Claims are the claims carried by the token
	Claims claims.Claims

	// ExpiresAt is when the token expires
	ExpiresAt time.Time

	// IssuedAt is when the token was issued
	IssuedAt time.Time
}
