// Package httpfixture serves canned HTTP responses through an
// http.RoundTripper, so claim endpoints and token endpoints can be
// simulated without a network.
package httpfixture

import (
	"bytes"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Fixture is a canned HTTP response
type Fixture struct {
	StatusCode int               `json:"status_code" yaml:"status_code" koanf:"status_code"`
	Headers    map[string]string `json:"headers" yaml:"headers" koanf:"headers"`
	Body       string            `json:"body" yaml:"body" koanf:"body"`

	// Delay is applied through the transport clock before responding
	Delay *time.Duration `json:"delay,omitempty" yaml:"delay,omitempty" koanf:"delay"`
}

// FixtureRequest describes which requests a rule answers
type FixtureRequest struct {
	// Method to match; "*" or empty matches any method
	Method string `json:"method" yaml:"method" koanf:"method"`

	// URL to match against the full request URL, query included
	URL string `json:"url" yaml:"url" koanf:"url"`

	// URLType is "exact" (default) or "pattern" (anchored regular expression)
	URLType string `json:"url_type" yaml:"url_type" koanf:"url_type"`

	// Headers must all be present with these exact values
	Headers map[string]string `json:"headers" yaml:"headers" koanf:"headers"`

	// Body, when set, must equal the request body exactly
	Body string `json:"body" yaml:"body" koanf:"body"`
}

// HTTPFixtureRule pairs a request matcher with its response
type HTTPFixtureRule struct {
	Request  FixtureRequest `json:"request" yaml:"request" koanf:"request"`
	Response Fixture        `json:"response" yaml:"response" koanf:"response"`
}

// FixtureProvider returns the fixture for a request, or nil when it has none
type FixtureProvider interface {
	GetFixture(req *http.Request) *Fixture
}

// RuleBasedProvider answers with the first matching rule
type RuleBasedProvider struct {
	rules    []HTTPFixtureRule
	patterns []*regexp.Regexp
}

// NewRuleBasedProvider creates a provider from rules, evaluated in order.
// Pattern rules whose expression does not compile never match.
func NewRuleBasedProvider(rules []HTTPFixtureRule) *RuleBasedProvider {
	patterns := make([]*regexp.Regexp, len(rules))
	for i, rule := range rules {
		if rule.Request.URLType != "pattern" {
			continue
		}
		re, err := regexp.Compile("^" + rule.Request.URL + "$")
		if err == nil {
			patterns[i] = re
		}
	}
	return &RuleBasedProvider{rules: rules, patterns: patterns}
}

// GetFixture implements FixtureProvider
func (p *RuleBasedProvider) GetFixture(req *http.Request) *Fixture {
	var body string
	bodyRead := false

	for i := range p.rules {
		rule := &p.rules[i]
		if !p.matchesURL(i, req) || !matchesMethod(rule.Request.Method, req.Method) {
			continue
		}
		if !matchesHeaders(rule.Request.Headers, req.Header) {
			continue
		}
		if rule.Request.Body != "" {
			if !bodyRead {
				body = peekBody(req)
				bodyRead = true
			}
			if body != rule.Request.Body {
				continue
			}
		}
		resp := rule.Response
		return &resp
	}
	return nil
}

func (p *RuleBasedProvider) matchesURL(i int, req *http.Request) bool {
	rule := p.rules[i].Request
	if rule.URLType == "pattern" {
		return p.patterns[i] != nil && p.patterns[i].MatchString(req.URL.String())
	}
	return rule.URL == req.URL.String()
}

func matchesMethod(want, got string) bool {
	return want == "" || want == "*" || strings.EqualFold(want, got)
}

func matchesHeaders(want map[string]string, got http.Header) bool {
	for name, value := range want {
		if got.Get(name) != value {
			return false
		}
	}
	return true
}

// peekBody reads the request body and puts it back for later readers
func peekBody(req *http.Request) string {
	if req.Body == nil {
		return ""
	}
	data, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	req.Body = io.NopCloser(bytes.NewReader(data))
	if err != nil {
		return ""
	}
	return string(data)
}

// MapProvider answers by "METHOD URL" key
type MapProvider struct {
	fixtures map[string]*Fixture
}

// NewMapProvider creates a provider keyed by "METHOD URL"
func NewMapProvider(fixtures map[string]*Fixture) *MapProvider {
	return &MapProvider{fixtures: fixtures}
}

// GetFixture implements FixtureProvider
func (p *MapProvider) GetFixture(req *http.Request) *Fixture {
	return p.fixtures[req.Method+" "+req.URL.String()]
}

// FuncProvider adapts a function to FixtureProvider
type FuncProvider struct {
	fn func(*http.Request) *Fixture
}

// NewFuncProvider creates a provider from fn
func NewFuncProvider(fn func(*http.Request) *Fixture) *FuncProvider {
	return &FuncProvider{fn: fn}
}

// GetFixture implements FixtureProvider
func (p *FuncProvider) GetFixture(req *http.Request) *Fixture {
	return p.fn(req)
}

// CompositeFixtureProvider asks each provider in turn
type CompositeFixtureProvider struct {
	providers []FixtureProvider
}

// NewCompositeFixtureProvider composes providers; the first non-nil answer wins
func NewCompositeFixtureProvider(providers ...FixtureProvider) *CompositeFixtureProvider {
	return &CompositeFixtureProvider{providers: providers}
}

// GetFixture implements FixtureProvider
func (p *CompositeFixtureProvider) GetFixture(req *http.Request) *Fixture {
	for _, provider := range p.providers {
		if f := provider.GetFixture(req); f != nil {
			return f
		}
	}
	return nil
}

// RecordedRequest is a request observed by a Transport
type RecordedRequest struct {
	Method string
	URL    string
	Header http.Header
	Body   string
}

// Recorder collects requests seen by a Transport. Safe for concurrent use.
type Recorder struct {
	mu       sync.Mutex
	requests []RecordedRequest
}

func (r *Recorder) record(req *http.Request) {
	rec := RecordedRequest{
		Method: req.Method,
		URL:    req.URL.String(),
		Header: req.Header.Clone(),
		Body:   peekBody(req),
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, rec)
}

// Requests returns a copy of the recorded requests in arrival order
func (r *Recorder) Requests() []RecordedRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RecordedRequest, len(r.requests))
	copy(out, r.requests)
	return out
}

// Count returns how many requests matched method and url
func (r *Recorder) Count(method, url string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, req := range r.requests {
		if req.Method == method && req.URL == url {
			n++
		}
	}
	return n
}
