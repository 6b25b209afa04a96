package remote

import (
	"context"
	"encoding/json"
	"slices"
	"strings"

	"github.com/project-kessel/remoteclaim/internal/session"
)

// ClaimConfig is the declarative configuration of one remote claim
type ClaimConfig struct {
	// URL of the claim endpoint
	URL string

	// Parameters is a raw "key=value&..." string of query parameters
	Parameters string

	// Headers is a raw "key=value&..." string of request headers
	Headers string

	// SendUsername adds the session username as the "username" parameter
	SendUsername bool

	// SendClientID adds the client id (or all session client ids) as "client_id"
	SendClientID bool

	// UserAttributes names user attributes to forward, separated by '&' or ','
	UserAttributes string

	// SendBearerToken performs a client credentials exchange with Auth and
	// sends the result as the Authorization header
	SendBearerToken bool

	// Auth is required when SendBearerToken is set
	Auth AuthConfig
}

// Validate checks the configuration without contacting anything
func (c ClaimConfig) Validate() error {
	if _, err := (&RequestSpec{BaseURL: c.URL}).URL(); err != nil {
		return err
	}
	if c.SendBearerToken {
		return c.Auth.Validate()
	}
	return nil
}

// Resolver turns a ClaimConfig and a session identity into the remote
// JSON payload. Resolution is sequential: exchange first, then fetch.
type Resolver struct {
	executor  *Executor
	exchanger *TokenExchanger
}

// NewResolver creates a resolver sending both calls through executor
func NewResolver(executor *Executor) *Resolver {
	return &Resolver{
		executor:  executor,
		exchanger: NewTokenExchanger(executor),
	}
}

// QueryParameters derives the query parameters of the claim fetch.
// User attributes without a value are returned in bare, to be sent as a
// key with no "=".
func (r *Resolver) QueryParameters(cfg ClaimConfig, identity *session.Identity) (params map[string]string, bare []string) {
	params = ParseKeyValues(cfg.Parameters)
	if identity == nil {
		identity = &session.Identity{}
	}

	if cfg.SendClientID {
		if identity.Client != nil {
			params["client_id"] = identity.Client.ClientID
		} else {
			params["client_id"] = strings.Join(identity.DistinctClientIDs(), ",")
		}
	}

	if cfg.SendUsername {
		params["username"] = identity.Username
	}

	for _, name := range splitList(cfg.UserAttributes) {
		value, ok := identity.FirstAttribute(name)
		if ok {
			params[name] = value
			bare = slices.DeleteFunc(bare, func(b string) bool { return b == name })
			continue
		}
		delete(params, name)
		if !slices.Contains(bare, name) {
			bare = append(bare, name)
		}
	}

	return params, bare
}

// Headers derives the headers of the claim fetch, performing the token
// exchange when a bearer token is to be sent
func (r *Resolver) Headers(ctx context.Context, cfg ClaimConfig) (map[string]string, error) {
	headers := ParseKeyValues(cfg.Headers)
	if !cfg.SendBearerToken {
		return headers, nil
	}

	token, err := r.exchanger.ClientCredentials(ctx, cfg.Auth)
	if err != nil {
		return nil, err
	}

	for name := range headers {
		if strings.EqualFold(name, "Authorization") {
			delete(headers, name)
		}
	}
	headers["Authorization"] = "Bearer " + token
	return headers, nil
}

// BuildRequest derives the full claim fetch without executing it
func (r *Resolver) BuildRequest(ctx context.Context, cfg ClaimConfig, identity *session.Identity) (*RequestSpec, error) {
	query, bare := r.QueryParameters(cfg, identity)

	headers, err := r.Headers(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &RequestSpec{
		BaseURL:         cfg.URL,
		ContentType:     ContentTypeJSON,
		QueryParams:     query,
		BareQueryParams: bare,
		Headers:         headers,
	}, nil
}

// Resolve fetches the remote claim payload. Any failure is returned as is;
// there is no fallback value.
func (r *Resolver) Resolve(ctx context.Context, cfg ClaimConfig, identity *session.Identity) (json.RawMessage, error) {
	spec, err := r.BuildRequest(ctx, cfg, identity)
	if err != nil {
		return nil, err
	}
	return r.executor.Execute(ctx, spec)
}

// ResolveInContext is Resolve memoized in attrs under key for the rest of
// the issuance pass. A nil attrs always resolves.
func (r *Resolver) ResolveInContext(ctx context.Context, attrs session.Attributes, key string, cfg ClaimConfig, identity *session.Identity) (json.RawMessage, error) {
	return session.GetOrResolve(attrs, key, func() (json.RawMessage, error) {
		return r.Resolve(ctx, cfg, identity)
	})
}
