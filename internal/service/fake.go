package service

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/project-kessel/remoteclaim/internal/session"
)

// FakeObserver records every probe it hands out so tests can assert on the
// events a token issuance or remote claim fetch reported.
type FakeObserver struct {
	t  testing.TB
	mu sync.Mutex

	Probes []*FakeProbe
}

var _ ApplicationObserver = (*FakeObserver)(nil)

// NewFakeObserver creates an observer bound to t
func NewFakeObserver(t testing.TB) *FakeObserver {
	return &FakeObserver{t: t}
}

func (o *FakeObserver) start(method string, args map[string]any) *FakeProbe {
	p := &FakeProbe{t: o.t, StartMethod: method, StartArgs: args}
	o.mu.Lock()
	o.Probes = append(o.Probes, p)
	o.mu.Unlock()
	return p
}

// TokenIssuanceStarted implements TokenServiceObserver
func (o *FakeObserver) TokenIssuanceStarted(
	ctx context.Context,
	identity *session.Identity,
	passID string,
	tokenTypes []TokenType,
) (context.Context, TokenIssuanceProbe) {
	return ctx, o.start("TokenIssuanceStarted", map[string]any{
		"identity":   identity,
		"passID":     passID,
		"tokenTypes": tokenTypes,
	})
}

// RemoteClaimStarted implements RemoteClaimObserver
func (o *FakeObserver) RemoteClaimStarted(ctx context.Context, source string, url string) (context.Context, RemoteClaimProbe) {
	return ctx, o.start("RemoteClaimStarted", map[string]any{
		"source": source,
		"url":    url,
	})
}

// ProbesStartedWith returns the probes created by startMethod, in creation order.
func (o *FakeObserver) ProbesStartedWith(startMethod string) []*FakeProbe {
	o.mu.Lock()
	defer o.mu.Unlock()
	var matched []*FakeProbe
	for _, p := range o.Probes {
		if p.StartMethod == startMethod {
			matched = append(matched, p)
		}
	}
	return matched
}

// AssertProbeCount checks how many probes were started
func (o *FakeObserver) AssertProbeCount(expected int) bool {
	o.t.Helper()
	o.mu.Lock()
	n := len(o.Probes)
	o.mu.Unlock()
	return assert.Equal(o.t, expected, n, "number of probes started")
}

// AssertSingleProbe requires exactly one probe started by startMethod.
// Non-nil entries of args must equal the recorded start arguments.
func (o *FakeObserver) AssertSingleProbe(startMethod string, args map[string]any) *FakeProbe {
	o.t.Helper()
	o.mu.Lock()
	probes := append([]*FakeProbe(nil), o.Probes...)
	o.mu.Unlock()

	require.Len(o.t, probes, 1, "number of probes started")
	p := probes[0]
	assert.Equal(o.t, startMethod, p.StartMethod)
	for key, want := range args {
		if want == nil {
			continue
		}
		got, ok := p.StartArgs[key]
		if assert.True(o.t, ok, "probe start arg %q missing", key) {
			assert.Equal(o.t, want, got, "probe start arg %q", key)
		}
	}
	return p
}

// ProbeEvent is one method call made on a probe after it started
type ProbeEvent struct {
	Method string
	Args   []any
}

// FakeProbe implements TokenIssuanceProbe and RemoteClaimProbe
type FakeProbe struct {
	t  testing.TB
	mu sync.Mutex

	StartMethod string
	StartArgs   map[string]any

	events []ProbeEvent
}

// Events returns a copy of the recorded events
func (p *FakeProbe) Events() []ProbeEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ProbeEvent(nil), p.events...)
}

func (p *FakeProbe) record(method string, args ...any) {
	p.mu.Lock()
	p.events = append(p.events, ProbeEvent{Method: method, Args: args})
	p.mu.Unlock()
}

func (p *FakeProbe) TokenTypeIssuanceStarted(tokenType TokenType) {
	p.record("TokenTypeIssuanceStarted", tokenType)
}

func (p *FakeProbe) TokenTypeIssuanceSucceeded(tokenType TokenType, token *Token) {
	p.record("TokenTypeIssuanceSucceeded", tokenType, token)
}

func (p *FakeProbe) TokenTypeIssuanceFailed(tokenType TokenType, err error) {
	p.record("TokenTypeIssuanceFailed", tokenType, err)
}

func (p *FakeProbe) IssuerNotFound(tokenType TokenType, err error) {
	p.record("IssuerNotFound", tokenType, err)
}

func (p *FakeProbe) CacheHit() { p.record("CacheHit") }

func (p *FakeProbe) Resolved(size int) { p.record("Resolved", size) }

func (p *FakeProbe) Failed(err error) { p.record("Failed", err) }

func (p *FakeProbe) End() { p.record("End") }

// AssertProbeSequence checks the exact events recorded by the probe.
// Each expectation is either a method name or a ProbeMatcher.
func (p *FakeProbe) AssertProbeSequence(expected ...any) {
	p.t.Helper()
	events := p.Events()
	names := make([]string, len(events))
	for i, e := range events {
		names[i] = e.Method
	}
	if !assert.Len(p.t, events, len(expected), "probe events: %v", names) {
		return
	}
	for i, want := range expected {
		switch w := want.(type) {
		case string:
			assert.Equal(p.t, w, events[i].Method, "probe event %d", i)
		case ProbeMatcher:
			assert.True(p.t, w(events[i]), "probe event %d (%s) did not match", i, events[i].Method)
		default:
			p.t.Errorf("probe event %d: unsupported expectation %T", i, want)
		}
	}
}

// ProbeMatcher reports whether a recorded event is the expected one
type ProbeMatcher func(ProbeEvent) bool

// ProbeCall matches an event by method and, when given, by arguments.
// An argument implementing ArgumentMatcher is applied instead of ==.
func ProbeCall(method string, args ...any) ProbeMatcher {
	return func(e ProbeEvent) bool {
		if e.Method != method {
			return false
		}
		if len(args) == 0 {
			return true
		}
		if len(args) != len(e.Args) {
			return false
		}
		for i, want := range args {
			if m, ok := want.(ArgumentMatcher); ok {
				if !m.Matches(e.Args[i]) {
					return false
				}
				continue
			}
			if want != e.Args[i] {
				return false
			}
		}
		return true
	}
}

// ArgumentMatcher matches a single probe argument
type ArgumentMatcher interface {
	Matches(actual any) bool
}

// ErrorContaining matches an error whose message contains the string
type ErrorContaining string

func (e ErrorContaining) Matches(actual any) bool {
	err, ok := actual.(error)
	return ok && err != nil && strings.Contains(err.Error(), string(e))
}

type anyError struct{}

// AnyError matches any non-nil error
func AnyError() ArgumentMatcher { return anyError{} }

func (anyError) Matches(actual any) bool {
	err, ok := actual.(error)
	return ok && err != nil
}
