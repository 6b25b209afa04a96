package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/project-kessel/remoteclaim/internal/session"
)

// TokenService orchestrates one token-issuance pass
// This brings together data sources and issuers to produce tokens
type TokenService struct {
	dataSources    *DataSourceRegistry
	issuerRegistry Registry
	observer       TokenServiceObserver
}

// NewTokenService creates a new token service
func NewTokenService(
	dataSources *DataSourceRegistry,
	issuerRegistry Registry,
	observer TokenServiceObserver,
) *TokenService {
	if observer == nil {
		observer = NoOpTokenServiceObserver()
	}
	return &TokenService{
		dataSources:    dataSources,
		issuerRegistry: issuerRegistry,
		observer:       observer,
	}
}

// IssueRequest contains the inputs for one issuance pass
type IssueRequest struct {
	// Identity is the authenticated user session
	Identity *session.Identity

	// TokenTypes specifies which token types to issue, in order
	TokenTypes []TokenType

	// Attributes is an issuance-scoped store supplied by the caller.
	// When nil, a fresh IssuanceContext is created for requests with a
	// concrete client session; legacy requests get none.
	Attributes session.Attributes
}

// ErrMissingIdentity is returned when a request carries no identity
var ErrMissingIdentity = errors.New("issue request has no identity")

// IssueTokens issues every requested token type within one pass.
// All tokens of the pass share the same attribute store, so remote claims
// are fetched once per pass. Any failure fails the whole pass.
func (ts *TokenService) IssueTokens(ctx context.Context, req *IssueRequest) (map[TokenType]*Token, error) {
	if req == nil || req.Identity == nil {
		return nil, ErrMissingIdentity
	}

	attrs := req.Attributes
	if attrs == nil && req.Identity.Client != nil {
		attrs = session.NewIssuanceContext()
	}

	ctx, probe := ts.observer.TokenIssuanceStarted(ctx, req.Identity, passID(attrs), req.TokenTypes)
	defer probe.End()

	tokens := make(map[TokenType]*Token)
	for _, tokenType := range req.TokenTypes {
		probe.TokenTypeIssuanceStarted(tokenType)

		iss, err := ts.issuerRegistry.GetIssuer(tokenType)
		if err != nil {
			probe.IssuerNotFound(tokenType, err)
			return nil, fmt.Errorf("no issuer for token type %s: %w", tokenType, err)
		}

		issueCtx := &IssueContext{
			Identity:           req.Identity,
			TokenType:          tokenType,
			Attributes:         attrs,
			DataSourceRegistry: ts.dataSources,
		}

		token, err := iss.Issue(ctx, issueCtx)
		if err != nil {
			probe.TokenTypeIssuanceFailed(tokenType, err)
			return nil, fmt.Errorf("failed to issue %s: %w", tokenType, err)
		}

		probe.TokenTypeIssuanceSucceeded(tokenType, token)
		tokens[tokenType] = token
	}

	return tokens, nil
}

func passID(attrs session.Attributes) string {
	if ided, ok := attrs.(interface{ ID() string }); ok {
		return ided.ID()
	}
	return ""
}
