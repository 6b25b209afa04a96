package service

import (
	"context"

	"github.com/project-kessel/remoteclaim/internal/claims"
	"github.com/project-kessel/remoteclaim/internal/session"
)

// ClaimMapper contributes claims to a token being issued. A nil result
// adds nothing; an error fails the whole issuance pass.
type ClaimMapper interface {
	Map(ctx context.Context, input *MapperInput) (claims.Claims, error)
}

// MapperInput is passed to every mapper of an issuer
type MapperInput struct {
	Identity  *session.Identity
	TokenType TokenType

	// Data sources are fetched lazily, only when a mapper asks for one.
	DataSourceRegistry *DataSourceRegistry
	DataSourceInput    *DataSourceInput
}
