package service

import (
	"context"

	"github.com/project-kessel/remoteclaim/internal/session"
)

// TokenServiceObserver starts one probe per issuance pass. Context such as
// the identity and pass id is captured once here so probe methods only carry
// the event itself (domain-oriented observability).
type TokenServiceObserver interface {
	// TokenIssuanceStarted is called once per pass. passID is empty for
	// legacy passes that have no issuance context.
	TokenIssuanceStarted(ctx context.Context, identity *session.Identity, passID string, tokenTypes []TokenType) (context.Context, TokenIssuanceProbe)
}

// TokenIssuanceProbe reports the per token type outcomes of one pass.
// End is always called last.
type TokenIssuanceProbe interface {
	TokenTypeIssuanceStarted(tokenType TokenType)
	TokenTypeIssuanceSucceeded(tokenType TokenType, token *Token)
	TokenTypeIssuanceFailed(tokenType TokenType, err error)
	IssuerNotFound(tokenType TokenType, err error)
	End()
}

// RemoteClaimObserver creates probes for remote claim resolution.
// One probe is created per data source fetch, cached or not.
type RemoteClaimObserver interface {
	RemoteClaimStarted(ctx context.Context, source string, url string) (context.Context, RemoteClaimProbe)
}

// RemoteClaimProbe observes a single remote claim fetch
type RemoteClaimProbe interface {
	// CacheHit is called when the payload was already resolved in this pass.
	CacheHit()

	// Resolved is called after a network resolution succeeded.
	Resolved(size int)

	// Failed is called when resolution failed. The issuance will fail too.
	Failed(err error)

	// End terminates the observation.
	End()
}

// ApplicationObserver is everything the service and data sources report to.
type ApplicationObserver interface {
	TokenServiceObserver
	RemoteClaimObserver
}

type compositeObserver struct {
	observers []ApplicationObserver
}

// NewCompositeObserver fans every event out to observers, in order.
func NewCompositeObserver(observers ...ApplicationObserver) ApplicationObserver {
	return &compositeObserver{observers: observers}
}

func (c *compositeObserver) TokenIssuanceStarted(
	ctx context.Context,
	identity *session.Identity,
	passID string,
	tokenTypes []TokenType,
) (context.Context, TokenIssuanceProbe) {
	probes := make([]TokenIssuanceProbe, len(c.observers))
	for i, obs := range c.observers {
		ctx, probes[i] = obs.TokenIssuanceStarted(ctx, identity, passID, tokenTypes)
	}
	return ctx, &compositeTokenIssuanceProbe{probes: probes}
}

func (c *compositeObserver) RemoteClaimStarted(ctx context.Context, source string, url string) (context.Context, RemoteClaimProbe) {
	probes := make([]RemoteClaimProbe, len(c.observers))
	for i, obs := range c.observers {
		ctx, probes[i] = obs.RemoteClaimStarted(ctx, source, url)
	}
	return ctx, &compositeRemoteClaimProbe{probes: probes}
}

type compositeTokenIssuanceProbe struct {
	probes []TokenIssuanceProbe
}

func (c *compositeTokenIssuanceProbe) TokenTypeIssuanceStarted(tokenType TokenType) {
	for _, probe := range c.probes {
		probe.TokenTypeIssuanceStarted(tokenType)
	}
}

func (c *compositeTokenIssuanceProbe) TokenTypeIssuanceSucceeded(tokenType TokenType, token *Token) {
	for _, probe := range c.probes {
		probe.TokenTypeIssuanceSucceeded(tokenType, token)
	}
}

func (c *compositeTokenIssuanceProbe) TokenTypeIssuanceFailed(tokenType TokenType, err error) {
	for _, probe := range c.probes {
		probe.TokenTypeIssuanceFailed(tokenType, err)
	}
}

func (c *compositeTokenIssuanceProbe) IssuerNotFound(tokenType TokenType, err error) {
	for _, probe := range c.probes {
		probe.IssuerNotFound(tokenType, err)
	}
}

func (c *compositeTokenIssuanceProbe) End() {
	for _, probe := range c.probes {
		probe.End()
	}
}

type compositeRemoteClaimProbe struct {
	probes []RemoteClaimProbe
}

func (c *compositeRemoteClaimProbe) CacheHit() {
	for _, probe := range c.probes {
		probe.CacheHit()
	}
}

func (c *compositeRemoteClaimProbe) Resolved(size int) {
	for _, probe := range c.probes {
		probe.Resolved(size)
	}
}

func (c *compositeRemoteClaimProbe) Failed(err error) {
	for _, probe := range c.probes {
		probe.Failed(err)
	}
}

func (c *compositeRemoteClaimProbe) End() {
	for _, probe := range c.probes {
		probe.End()
	}
}

// NoOpTokenIssuanceProbe is an exported null object implementation of TokenIssuanceProbe.
// Implementations can embed this to get default no-op behavior, allowing new methods
// to be added to the interface without breaking existing implementations.
type NoOpTokenIssuanceProbe struct{}

func (n *NoOpTokenIssuanceProbe) TokenTypeIssuanceStarted(tokenType TokenType)                 {}
func (n *NoOpTokenIssuanceProbe) TokenTypeIssuanceSucceeded(tokenType TokenType, token *Token) {}
func (n *NoOpTokenIssuanceProbe) TokenTypeIssuanceFailed(tokenType TokenType, err error)       {}
func (n *NoOpTokenIssuanceProbe) IssuerNotFound(tokenType TokenType, err error)                {}
func (n *NoOpTokenIssuanceProbe) End()                                                         {}

// NoOpRemoteClaimProbe is an exported null object implementation of RemoteClaimProbe.
type NoOpRemoteClaimProbe struct{}

func (n *NoOpRemoteClaimProbe) CacheHit()         {}
func (n *NoOpRemoteClaimProbe) Resolved(size int) {}
func (n *NoOpRemoteClaimProbe) Failed(err error)  {}
func (n *NoOpRemoteClaimProbe) End()              {}

// NoOpApplicationObserver implements ApplicationObserver with no-op behavior.
type NoOpApplicationObserver struct{}

// NoOpTokenServiceObserver returns an observer that does nothing.
func NoOpTokenServiceObserver() TokenServiceObserver {
	return &NoOpApplicationObserver{}
}

// NoOpRemoteClaimObserver returns an observer that does nothing.
func NoOpRemoteClaimObserver() RemoteClaimObserver {
	return &NoOpApplicationObserver{}
}

// NoOpObserver returns an application observer that does nothing.
func NoOpObserver() ApplicationObserver {
	return &NoOpApplicationObserver{}
}

func (n *NoOpApplicationObserver) TokenIssuanceStarted(ctx context.Context, identity *session.Identity, passID string, tokenTypes []TokenType) (context.Context, TokenIssuanceProbe) {
	return ctx, &NoOpTokenIssuanceProbe{}
}

func (n *NoOpApplicationObserver) RemoteClaimStarted(ctx context.Context, source string, url string) (context.Context, RemoteClaimProbe) {
	return ctx, &NoOpRemoteClaimProbe{}
}
