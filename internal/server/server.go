package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/project-kessel/remoteclaim/internal/service"
)

// TokenIssuer issues the tokens of one pass
type TokenIssuer interface {
	IssueTokens(ctx context.Context, req *service.IssueRequest) (map[service.TokenType]*service.Token, error)
}

// Server serves token issuance, health and metrics over HTTP
type Server struct {
	httpServer *http.Server
	listener   net.Listener

	httpPort        int
	shutdownTimeout time.Duration
	tokenService    TokenIssuer
	gatherer        prometheus.Gatherer
	logger          *slog.Logger

	ready atomic.Bool
}

// Config contains server configuration
type Config struct {
	HTTPPort int

	// ShutdownTimeout bounds Stop when the caller's context has no deadline
	ShutdownTimeout time.Duration

	TokenService TokenIssuer

	// Gatherer is served on /metrics. If nil, the default registry is served.
	Gatherer prometheus.Gatherer

	// Logger receives request and lifecycle logs. If nil, uses slog.Default()
	Logger *slog.Logger
}

// New creates a new server with the given configuration
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	shutdown := cfg.ShutdownTimeout
	if shutdown <= 0 {
		shutdown = 10 * time.Second
	}

	return &Server{
		httpPort:        cfg.HTTPPort,
		shutdownTimeout: shutdown,
		tokenService:    cfg.TokenService,
		gatherer:        gatherer,
		logger:          logger,
	}
}

// Handler returns the router with every route registered
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Post("/v1/tokens", s.handleIssueTokens)
	r.Get("/healthz/live", s.handleLiveness)
	r.Get("/healthz/ready", s.handleReadiness)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	return r
}

// Start listens on the configured port and serves in the background
func (s *Server) Start(ctx context.Context) error {
	lc := net.ListenConfig{}
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf(":%d", s.httpPort))
	if err != nil {
		return fmt.Errorf("failed to listen on HTTP port %d: %w", s.httpPort, err)
	}
	s.listener = listener

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		s.logger.Info("HTTP server listening", slog.String("addr", listener.Addr().String()))
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Addr returns the listening address once started
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// SetReady marks the server ready to receive traffic
func (s *Server) SetReady() {
	s.ready.Store(true)
}

// Stop marks the server not ready and shuts it down gracefully
func (s *Server) Stop(ctx context.Context) error {
	s.ready.Store(false)
	if s.httpServer == nil {
		return nil
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.shutdownTimeout)
		defer cancel()
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.LogAttrs(r.Context(), slog.LevelDebug, "http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
