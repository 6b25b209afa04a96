package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds a single remote call when no client is supplied
const DefaultTimeout = 30 * time.Second

// DefaultUserAgent is the User-Agent of outbound calls built from config
const DefaultUserAgent = "remoteclaim"

// RequestOption can modify a request before it is sent,
// e.g. to add a User-Agent or tracing headers
type RequestOption func(*http.Request) error

// UserAgent sets the User-Agent header of every outgoing request
func UserAgent(ua string) RequestOption {
	return func(r *http.Request) error {
		r.Header.Set("User-Agent", ua)
		return nil
	}
}

// noRedirects makes the client return 3xx responses as is; Execute then
// rejects them as a non-200 status.
func noRedirects(*http.Request, []*http.Request) error {
	return http.ErrUseLastResponse
}

// Executor performs remote calls and enforces the response contract:
// status 200 with a JSON body. It never retries.
type Executor struct {
	client         *http.Client
	requestOptions []RequestOption
}

// ExecutorConfig configures an Executor
type ExecutorConfig struct {
	// Timeout for each call (default: 30s). Ignored when Client is set.
	Timeout time.Duration

	// Transport is the HTTP transport to use.
	// If nil, uses http.DefaultTransport. Ignored when Client is set.
	Transport http.RoundTripper

	// Client overrides the HTTP client. It is copied and its redirect
	// policy replaced; redirects are never followed.
	Client *http.Client

	// RequestOptions are applied to every outgoing request in order
	RequestOptions []RequestOption
}

// NewExecutor creates an executor from configuration
func NewExecutor(cfg ExecutorConfig) *Executor {
	var client *http.Client
	if cfg.Client != nil {
		c := *cfg.Client
		client = &c
	} else {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		transport := cfg.Transport
		if transport == nil {
			transport = http.DefaultTransport
		}
		client = &http.Client{
			Timeout:   timeout,
			Transport: transport,
		}
	}
	client.CheckRedirect = noRedirects

	return &Executor{
		client:         client,
		requestOptions: cfg.RequestOptions,
	}
}

// Execute performs the call described by the request spec and returns the JSON body.
// Every failure is reported as an *Error carrying spec.BaseURL.
func (e *Executor) Execute(ctx context.Context, spec *RequestSpec) (json.RawMessage, error) {
	req, err := spec.NewRequest(ctx)
	if err != nil {
		return nil, err
	}

	for _, opt := range e.requestOptions {
		if err := opt(req); err != nil {
			return nil, newError(KindTransportFailure, spec.BaseURL, "request options failed", err)
		}
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, newError(KindTransportFailure, spec.BaseURL, "error when accessing remote claim", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{
			Kind:       KindUnexpectedStatus,
			URL:        spec.BaseURL,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("wrong status received for remote claim - expected: 200, received: %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(KindTransportFailure, spec.BaseURL, "error when reading remote claim response", err)
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 || !json.Valid(body) {
		return nil, newError(KindMalformedResponse, spec.BaseURL, "error when parsing response for remote claim", nil)
	}

	return json.RawMessage(body), nil
}
