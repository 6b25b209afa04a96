package probe

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/project-kessel/remoteclaim/internal/remote"
	"github.com/project-kessel/remoteclaim/internal/service"
	"github.com/project-kessel/remoteclaim/internal/session"
)

const namespace = "remoteclaim"

// Result label values
const (
	resultSuccess  = "success"
	resultFailure  = "failure"
	resultCacheHit = "cache_hit"
)

// Metrics holds the Prometheus collectors fed by the metrics observer
type Metrics struct {
	IssuancePassesTotal   prometheus.Counter
	TokensIssuedTotal     *prometheus.CounterVec
	RemoteClaimsTotal     *prometheus.CounterVec
	RemoteClaimErrors     *prometheus.CounterVec
	RemoteClaimDuration   *prometheus.HistogramVec
	RemoteClaimBytesTotal *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		IssuancePassesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "issuance_passes_total",
				Help:      "Total number of token issuance passes",
			},
		),
		TokensIssuedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tokens_total",
				Help:      "Total number of token issuance attempts by token type and result",
			},
			[]string{"token_type", "result"},
		),
		RemoteClaimsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "remote_claim",
				Name:      "fetches_total",
				Help:      "Total number of remote claim fetches by source and result",
			},
			[]string{"source", "result"},
		),
		RemoteClaimErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "remote_claim",
				Name:      "errors_total",
				Help:      "Total number of remote claim failures by source and error kind",
			},
			[]string{"source", "kind"},
		),
		RemoteClaimDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "remote_claim",
				Name:      "duration_seconds",
				Help:      "Duration of remote claim resolutions that reached the network",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"source"},
		),
		RemoteClaimBytesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "remote_claim",
				Name:      "response_bytes_total",
				Help:      "Total size of resolved remote claim payloads",
			},
			[]string{"source"},
		),
	}
}

// metricsObserver records issuance and remote claim outcomes as Prometheus metrics
type metricsObserver struct {
	metrics *Metrics
	now     func() time.Time
}

// NewMetricsObserver creates an application observer backed by m
func NewMetricsObserver(m *Metrics) service.ApplicationObserver {
	return &metricsObserver{metrics: m, now: time.Now}
}

func (o *metricsObserver) TokenIssuanceStarted(
	ctx context.Context,
	identity *session.Identity,
	passID string,
	tokenTypes []service.TokenType,
) (context.Context, service.TokenIssuanceProbe) {
	o.metrics.IssuancePassesTotal.Inc()
	return ctx, &metricsTokenIssuanceProbe{metrics: o.metrics}
}

type metricsTokenIssuanceProbe struct {
	service.NoOpTokenIssuanceProbe
	metrics *Metrics
}

func (p *metricsTokenIssuanceProbe) TokenTypeIssuanceSucceeded(tokenType service.TokenType, token *service.Token) {
	p.metrics.TokensIssuedTotal.WithLabelValues(string(tokenType), resultSuccess).Inc()
}

func (p *metricsTokenIssuanceProbe) TokenTypeIssuanceFailed(tokenType service.TokenType, err error) {
	p.metrics.TokensIssuedTotal.WithLabelValues(string(tokenType), resultFailure).Inc()
}

func (p *metricsTokenIssuanceProbe) IssuerNotFound(tokenType service.TokenType, err error) {
	p.metrics.TokensIssuedTotal.WithLabelValues(string(tokenType), resultFailure).Inc()
}

func (o *metricsObserver) RemoteClaimStarted(ctx context.Context, source string, url string) (context.Context, service.RemoteClaimProbe) {
	return ctx, &metricsRemoteClaimProbe{
		metrics: o.metrics,
		source:  source,
		now:     o.now,
		started: o.now(),
	}
}

type metricsRemoteClaimProbe struct {
	metrics *Metrics
	source  string
	now     func() time.Time
	started time.Time
}

func (p *metricsRemoteClaimProbe) CacheHit() {
	p.metrics.RemoteClaimsTotal.WithLabelValues(p.source, resultCacheHit).Inc()
}

func (p *metricsRemoteClaimProbe) Resolved(size int) {
	p.metrics.RemoteClaimsTotal.WithLabelValues(p.source, resultSuccess).Inc()
	p.metrics.RemoteClaimBytesTotal.WithLabelValues(p.source).Add(float64(size))
	p.metrics.RemoteClaimDuration.WithLabelValues(p.source).Observe(p.now().Sub(p.started).Seconds())
}

func (p *metricsRemoteClaimProbe) Failed(err error) {
	kind := string(remote.KindOf(err))
	if kind == "" {
		kind = "unknown"
	}
	p.metrics.RemoteClaimsTotal.WithLabelValues(p.source, resultFailure).Inc()
	p.metrics.RemoteClaimErrors.WithLabelValues(p.source, kind).Inc()
	p.metrics.RemoteClaimDuration.WithLabelValues(p.source).Observe(p.now().Sub(p.started).Seconds())
}

func (p *metricsRemoteClaimProbe) End() {}
