package probe

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/project-kessel/remoteclaim/internal/remote"
	"github.com/project-kessel/remoteclaim/internal/service"
	"github.com/project-kessel/remoteclaim/internal/session"
)

// Event names carried in the "event" attribute of every probe log record
const (
	EventTokenIssuance = "token_issuance"
	EventRemoteClaim   = "remote_claim"
)

// loggingObserver creates request-scoped logging probes
type loggingObserver struct {
	logger *slog.Logger
}

// LoggingObserverConfig configures the logging observer
type LoggingObserverConfig struct {
	// Logger is the base logger to use. If nil, uses slog.Default()
	Logger *slog.Logger
}

// NewLoggingObserver creates an application observer that logs all observability events
// using structured logging with slog.
func NewLoggingObserver(logger *slog.Logger) service.ApplicationObserver {
	return NewLoggingObserverWithConfig(LoggingObserverConfig{Logger: logger})
}

// NewLoggingObserverWithConfig creates a logging observer with custom configuration
func NewLoggingObserverWithConfig(cfg LoggingObserverConfig) service.ApplicationObserver {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &loggingObserver{logger: logger}
}

func (o *loggingObserver) TokenIssuanceStarted(
	ctx context.Context,
	identity *session.Identity,
	passID string,
	tokenTypes []service.TokenType,
) (context.Context, service.TokenIssuanceProbe) {
	probeLogger := o.logger.With("event", EventTokenIssuance)
	if passID != "" {
		probeLogger = probeLogger.With("pass_id", passID)
	}

	attrs := []slog.Attr{
		slog.Any("token_types", tokenTypes),
	}
	if identity != nil {
		attrs = append(attrs, slog.String("username", identity.Username))
		if identity.Client != nil {
			attrs = append(attrs, slog.String("client_id", identity.Client.ClientID))
		}
	}

	probeLogger.LogAttrs(ctx, slog.LevelDebug, "Starting token issuance", attrs...)

	return ctx, &loggingTokenIssuanceProbe{
		ctx:    ctx,
		logger: probeLogger,
	}
}

// loggingTokenIssuanceProbe logs the events of a single issuance pass
type loggingTokenIssuanceProbe struct {
	ctx    context.Context
	logger *slog.Logger
}

func (p *loggingTokenIssuanceProbe) TokenTypeIssuanceStarted(tokenType service.TokenType) {
	p.logger.LogAttrs(p.ctx, slog.LevelDebug,
		"Issuing token",
		slog.String("token_type", string(tokenType)),
	)
}

func (p *loggingTokenIssuanceProbe) TokenTypeIssuanceSucceeded(tokenType service.TokenType, token *service.Token) {
	attrs := []slog.Attr{
		slog.String("token_type", string(tokenType)),
	}
	if token != nil {
		attrs = append(attrs,
			slog.Time("issued_at", token.IssuedAt),
			slog.Time("expires_at", token.ExpiresAt),
		)
	}
	p.logger.LogAttrs(p.ctx, slog.LevelDebug, "Token issued successfully", attrs...)
}

func (p *loggingTokenIssuanceProbe) TokenTypeIssuanceFailed(tokenType service.TokenType, err error) {
	attrs := append([]slog.Attr{slog.String("token_type", string(tokenType))}, ErrorAttrs(err)...)
	p.logger.LogAttrs(p.ctx, slog.LevelError, "Token issuance failed", attrs...)
}

func (p *loggingTokenIssuanceProbe) IssuerNotFound(tokenType service.TokenType, err error) {
	attrs := append([]slog.Attr{slog.String("token_type", string(tokenType))}, ErrorAttrs(err)...)
	p.logger.LogAttrs(p.ctx, slog.LevelError, "No issuer found for token type", attrs...)
}

func (p *loggingTokenIssuanceProbe) End() {
	p.logger.LogAttrs(p.ctx, slog.LevelDebug, "Token issuance completed")
}

func (o *loggingObserver) RemoteClaimStarted(ctx context.Context, source string, url string) (context.Context, service.RemoteClaimProbe) {
	probeLogger := o.logger.With(
		slog.String("event", EventRemoteClaim),
		slog.String("source", source),
	)
	probeLogger.LogAttrs(ctx, slog.LevelDebug, "Resolving remote claim", slog.String("url", url))

	return ctx, &loggingRemoteClaimProbe{
		ctx:     ctx,
		logger:  probeLogger,
		started: time.Now(),
	}
}

// loggingRemoteClaimProbe logs one data source fetch
type loggingRemoteClaimProbe struct {
	ctx     context.Context
	logger  *slog.Logger
	started time.Time
}

func (p *loggingRemoteClaimProbe) CacheHit() {
	p.logger.LogAttrs(p.ctx, slog.LevelDebug, "Remote claim served from issuance cache")
}

func (p *loggingRemoteClaimProbe) Resolved(size int) {
	p.logger.LogAttrs(p.ctx, slog.LevelDebug,
		"Remote claim resolved",
		slog.Int("bytes", size),
		slog.Duration("duration", time.Since(p.started)),
	)
}

func (p *loggingRemoteClaimProbe) Failed(err error) {
	attrs := append(ErrorAttrs(err), slog.Duration("duration", time.Since(p.started)))
	p.logger.LogAttrs(p.ctx, slog.LevelError, "Remote claim resolution failed", attrs...)
}

func (p *loggingRemoteClaimProbe) End() {}

// ErrorAttrs describes err for a log record. Remote claim errors add their
// kind, target URL and, for status failures, the received status.
func ErrorAttrs(err error) []slog.Attr {
	if err == nil {
		return nil
	}
	attrs := []slog.Attr{slog.String("error", err.Error())}

	var rerr *remote.Error
	if !errors.As(err, &rerr) {
		return attrs
	}
	attrs = append(attrs,
		slog.String("kind", string(rerr.Kind)),
		slog.String("url", rerr.URL),
	)
	if rerr.StatusCode != 0 {
		attrs = append(attrs, slog.Int("status", rerr.StatusCode))
	}
	return attrs
}
