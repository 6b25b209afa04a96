package service

import (
	"fmt"
	"sync"
)

// TokenType names one kind of token produced in an issuance pass
type TokenType string

const (
	// TokenTypeAccessToken is the OAuth2 access token
	TokenTypeAccessToken TokenType = "access_token"

	// TokenTypeIDToken is the OpenID Connect ID token
	TokenTypeIDToken TokenType = "id_token"

	// TokenTypeUserInfo is the user-info response
	TokenTypeUserInfo TokenType = "userinfo"
)

// ParseTokenType validates a token type name
func ParseTokenType(s string) (TokenType, error) {
	switch tt := TokenType(s); tt {
	case TokenTypeAccessToken, TokenTypeIDToken, TokenTypeUserInfo:
		return tt, nil
	default:
		return "", fmt.Errorf("unknown token type %q", s)
	}
}

// Registry looks up the issuer for a token type
type Registry interface {
	GetIssuer(tokenType TokenType) (Issuer, error)
}

// SimpleRegistry is an in-memory Registry
type SimpleRegistry struct {
	mu      sync.RWMutex
	issuers map[TokenType]Issuer
}

// NewSimpleRegistry creates an empty registry
func NewSimpleRegistry() *SimpleRegistry {
	return &SimpleRegistry{issuers: make(map[TokenType]Issuer)}
}

// Register sets the issuer for tokenType, replacing any previous one
func (r *SimpleRegistry) Register(tokenType TokenType, issuer Issuer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.issuers[tokenType] = issuer
}

// GetIssuer implements Registry
func (r *SimpleRegistry) GetIssuer(tokenType TokenType) (Issuer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	iss, ok := r.issuers[tokenType]
	if !ok {
		return nil, fmt.Errorf("no issuer registered for token type %q", tokenType)
	}
	return iss, nil
}
