package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/project-kessel/remoteclaim/internal/claims"
	"github.com/project-kessel/remoteclaim/internal/remote"
	"github.com/project-kessel/remoteclaim/internal/service"
	"github.com/project-kessel/remoteclaim/internal/session"
)

// maxRequestBytes bounds the issue request body
const maxRequestBytes = 1 << 20

// IssueTokensRequest is the body of POST /v1/tokens.
// An empty client_id selects the legacy path without an issuance cache.
type IssueTokensRequest struct {
	Username   string              `json:"username"`
	ClientID   string              `json:"client_id,omitempty"`
	ClientIDs  []string            `json:"client_ids,omitempty"`
	Attributes map[string][]string `json:"attributes,omitempty"`
	TokenTypes []string            `json:"token_types,omitempty"`
}

// IssuedToken is one token of an IssueTokensResponse
type IssuedToken struct {
	TokenType string        `json:"token_type"`
	Token     string        `json:"token"`
	IssuedAt  time.Time     `json:"issued_at"`
	ExpiresAt time.Time     `json:"expires_at"`
	Claims    claims.Claims `json:"claims"`
}

// IssueTokensResponse lists issued tokens in request order
type IssueTokensResponse struct {
	Tokens []IssuedToken `json:"tokens"`
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error  string `json:"error"`
	Kind   string `json:"kind,omitempty"`
	URL    string `json:"url,omitempty"`
	Status int    `json:"status,omitempty"`
}

// errBadRequest marks client errors
var errBadRequest = errors.New("bad request")

func (s *Server) handleIssueTokens(w http.ResponseWriter, r *http.Request) {
	var body IssueTokensRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: invalid request body: %v", errBadRequest, err))
		return
	}

	req, err := body.toIssueRequest()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	tokens, err := s.tokenService.IssueTokens(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := IssueTokensResponse{Tokens: make([]IssuedToken, 0, len(req.TokenTypes))}
	for _, tt := range req.TokenTypes {
		token := tokens[tt]
		if token == nil {
			continue
		}
		resp.Tokens = append(resp.Tokens, IssuedToken{
			TokenType: string(tt),
			Token:     token.Value,
			IssuedAt:  token.IssuedAt,
			ExpiresAt: token.ExpiresAt,
			Claims:    token.Claims,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

func (b IssueTokensRequest) toIssueRequest() (*service.IssueRequest, error) {
	if b.Username == "" {
		return nil, fmt.Errorf("%w: username is required", errBadRequest)
	}

	tokenTypes := []service.TokenType{service.TokenTypeAccessToken}
	if len(b.TokenTypes) > 0 {
		tokenTypes = make([]service.TokenType, 0, len(b.TokenTypes))
		seen := make(map[service.TokenType]bool, len(b.TokenTypes))
		for _, s := range b.TokenTypes {
			tt, err := service.ParseTokenType(s)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", errBadRequest, err)
			}
			if !seen[tt] {
				seen[tt] = true
				tokenTypes = append(tokenTypes, tt)
			}
		}
	}

	identity := &session.Identity{
		Username:   b.Username,
		ClientIDs:  b.ClientIDs,
		Attributes: b.Attributes,
	}
	if b.ClientID != "" {
		identity.Client = &session.ClientSession{ClientID: b.ClientID}
	}

	return &service.IssueRequest{Identity: identity, TokenTypes: tokenTypes}, nil
}

// writeError maps err to a status: remote claim failures are 502,
// client errors 400, anything else 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := ErrorResponse{Error: err.Error()}
	status := http.StatusInternalServerError

	var rerr *remote.Error
	switch {
	case errors.As(err, &rerr):
		status = http.StatusBadGateway
		resp.Kind = string(rerr.Kind)
		resp.URL = rerr.URL
		resp.Status = rerr.StatusCode
	case errors.Is(err, errBadRequest), errors.Is(err, service.ErrMissingIdentity):
		status = http.StatusBadRequest
	}

	s.logger.LogAttrs(r.Context(), slog.LevelWarn, "token request failed",
		slog.Int("status", status),
		slog.String("error", err.Error()),
	)
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
