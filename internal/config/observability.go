package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/project-kessel/remoteclaim/internal/probe"
	"github.com/project-kessel/remoteclaim/internal/service"
)

// NewObserverWithLogger creates an application observer from configuration.
// Logging observers write through logger; metrics observers record into metrics.
func NewObserverWithLogger(cfg *ObservabilityConfig, logger *slog.Logger, metrics *probe.Metrics) (service.ApplicationObserver, error) {
	if cfg == nil {
		return service.NoOpObserver(), nil
	}

	switch cfg.Type {
	case "logging":
		return probe.NewLoggingObserverWithConfig(probe.LoggingObserverConfig{
			Logger: logger,
		}), nil
	case "metrics":
		if metrics == nil {
			return nil, fmt.Errorf("metrics observer requires a metrics registry")
		}
		return probe.NewMetricsObserver(metrics), nil
	case "noop", "":
		return service.NoOpObserver(), nil
	case "composite":
		return newCompositeObserver(cfg, logger, metrics)
	default:
		return nil, fmt.Errorf("unknown observability type: %s (supported: logging, metrics, composite, noop)", cfg.Type)
	}
}

func newCompositeObserver(cfg *ObservabilityConfig, logger *slog.Logger, metrics *probe.Metrics) (service.ApplicationObserver, error) {
	if len(cfg.Observers) == 0 {
		return nil, fmt.Errorf("composite observer requires at least one sub-observer")
	}

	observers := make([]service.ApplicationObserver, 0, len(cfg.Observers))
	for i := range cfg.Observers {
		observer, err := NewObserverWithLogger(&cfg.Observers[i], logger, metrics)
		if err != nil {
			return nil, fmt.Errorf("failed to create observer %d: %w", i, err)
		}
		observers = append(observers, observer)
	}

	return service.NewCompositeObserver(observers...), nil
}

// NewLogger creates a structured logger writing to stdout.
// Returns slog.Default() if cfg is nil.
func NewLogger(cfg *ObservabilityConfig) *slog.Logger {
	return NewLoggerTo(os.Stdout, cfg)
}

// NewLoggerTo creates a structured logger writing to w
func NewLoggerTo(w io.Writer, cfg *ObservabilityConfig) *slog.Logger {
	if cfg == nil {
		return slog.Default()
	}

	handlerCfg := probe.HandlerConfig{
		Format: cfg.LogFormat,
		Level:  probe.ParseLevel(cfg.LogLevel),
	}
	if ev, ok := eventLevel(probe.EventTokenIssuance, cfg.TokenIssuance); ok {
		handlerCfg.Events = append(handlerCfg.Events, ev)
	}
	if ev, ok := eventLevel(probe.EventRemoteClaim, cfg.RemoteClaim); ok {
		handlerCfg.Events = append(handlerCfg.Events, ev)
	}

	return slog.New(probe.NewHandler(w, handlerCfg))
}

func eventLevel(event string, cfg *EventConfig) (probe.EventLevel, bool) {
	if cfg == nil {
		return probe.EventLevel{}, false
	}
	if cfg.Enabled != nil && !*cfg.Enabled {
		return probe.EventLevel{Event: event, Enabled: false}, true
	}
	if cfg.LogLevel == "" {
		return probe.EventLevel{}, false
	}
	return probe.EventLevel{Event: event, Level: probe.ParseLevel(cfg.LogLevel), Enabled: true}, true
}
