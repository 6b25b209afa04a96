package issuer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/project-kessel/remoteclaim/internal/claims"
	"github.com/project-kessel/remoteclaim/internal/clock"
	"github.com/project-kessel/remoteclaim/internal/service"
)

// DefaultTTL is used when no TTL is configured
const DefaultTTL = 5 * time.Minute

// TypeClaim names the token type inside the token
const TypeClaim = "typ"

// UnsignedIssuerConfig is the configuration for creating an unsigned issuer
type UnsignedIssuerConfig struct {
	// IssuerURL is the issuer URL (iss claim)
	IssuerURL string

	// TokenType is the token type to issue
	TokenType service.TokenType

	// TTL is the time-to-live for tokens (default: 5m)
	TTL time.Duration

	// ClaimMappers are the mappers to apply to generate claims
	ClaimMappers []service.ClaimMapper

	// Filter restricts the mapped claims. If nil, all mapped claims are kept.
	Filter claims.Filter

	// Clock is the time source for token timestamps
	// If nil, uses system clock
	Clock clock.Clock
}

// UnsignedIssuer issues unsigned JWTs ("alg": "none") carrying the mapped
// claims. Registered claims (iss, sub, iat, exp, jti, typ) are set by the
// issuer and cannot be overridden by mappers.
type UnsignedIssuer struct {
	issuerURL    string
	tokenType    service.TokenType
	ttl          time.Duration
	claimMappers []service.ClaimMapper
	filter       claims.Filter
	clock        clock.Clock
}

// NewUnsignedIssuer creates a new unsigned issuer
func NewUnsignedIssuer(cfg UnsignedIssuerConfig) *UnsignedIssuer {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.NewSystemClock()
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	filter := cfg.Filter
	if filter == nil {
		filter = claims.PassthroughFilter{}
	}

	return &UnsignedIssuer{
		issuerURL:    cfg.IssuerURL,
		tokenType:    cfg.TokenType,
		ttl:          ttl,
		claimMappers: cfg.ClaimMappers,
		filter:       filter,
		clock:        clk,
	}
}

// Issue implements the Issuer interface
func (i *UnsignedIssuer) Issue(ctx context.Context, issueCtx *service.IssueContext) (*service.Token, error) {
	mapped, err := issueCtx.ToClaims(ctx, i.claimMappers)
	if err != nil {
		return nil, fmt.Errorf("failed to map claims: %w", err)
	}
	mapped = i.filter.Filter(mapped)

	now := i.clock.Now()
	expiresAt := now.Add(i.ttl)

	subject := ""
	if issueCtx.Identity != nil {
		subject = issueCtx.Identity.Username
	}

	final := make(claims.Claims, len(mapped)+6)
	final.Merge(mapped)
	final[jwt.IssuerKey] = i.issuerURL
	final[jwt.SubjectKey] = subject
	final[jwt.IssuedAtKey] = now.Unix()
	final[jwt.ExpirationKey] = expiresAt.Unix()
	final[jwt.JwtIDKey] = uuid.NewString()
	final[TypeClaim] = string(i.tokenType)

	token := jwt.New()
	for name, value := range final {
		switch name {
		case jwt.IssuedAtKey:
			value = now
		case jwt.ExpirationKey:
			value = expiresAt
		}
		if err := token.Set(name, value); err != nil {
			return nil, fmt.Errorf("failed to set claim %s: %w", name, err)
		}
	}

	serialized, err := jwt.Sign(token, jwt.WithInsecureNoSignature())
	if err != nil {
		return nil, fmt.Errorf("failed to serialize token: %w", err)
	}

	return &service.Token{
		Value:     string(serialized),
		Type:      i.tokenType,
		Claims:    final,
		ExpiresAt: expiresAt,
		IssuedAt:  now,
	}, nil
}
