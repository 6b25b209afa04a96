package probe

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

// disabledLevel is above every level slog defines
const disabledLevel = slog.Level(1000)

// EventLevel overrides the minimum level of one probe event
type EventLevel struct {
	Event   string
	Level   slog.Level
	Enabled bool
}

// HandlerConfig configures the handler built by NewHandler
type HandlerConfig struct {
	// Format is "json" (default) or "text"
	Format string

	// Level is the minimum level of records without an event override
	Level slog.Level

	// Events holds per-event overrides keyed by the "event" attribute
	Events []EventLevel
}

// NewHandler creates a slog handler writing to w that applies per-event levels
func NewHandler(w io.Writer, cfg HandlerConfig) slog.Handler {
	eventLevels := make(map[string]slog.Level, len(cfg.Events))
	minLevel := cfg.Level
	for _, ev := range cfg.Events {
		if !ev.Enabled {
			eventLevels[ev.Event] = disabledLevel
			continue
		}
		eventLevels[ev.Event] = ev.Level
		if ev.Level < minLevel {
			minLevel = ev.Level
		}
	}

	opts := &slog.HandlerOptions{Level: minLevel}
	var base slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		base = slog.NewTextHandler(w, opts)
	default:
		base = slog.NewJSONHandler(w, opts)
	}

	return &eventFilteringHandler{
		next:         base,
		eventLevels:  eventLevels,
		defaultLevel: cfg.Level,
		minLevel:     minLevel,
	}
}

// ParseLevel maps a config string to a slog level, defaulting to info
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// eventFilteringHandler wraps a handler and filters on the event attribute.
// The event may be attached through WithAttrs or on the record itself.
type eventFilteringHandler struct {
	next         slog.Handler
	eventLevels  map[string]slog.Level
	defaultLevel slog.Level
	minLevel     slog.Level
	event        string
}

func (h *eventFilteringHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if h.event != "" {
		return level >= h.levelFor(h.event)
	}
	return level >= h.minLevel
}

func (h *eventFilteringHandler) Handle(ctx context.Context, record slog.Record) error {
	event := h.event
	if event == "" {
		record.Attrs(func(attr slog.Attr) bool {
			if attr.Key == "event" {
				event = attr.Value.String()
				return false
			}
			return true
		})
	}

	if record.Level < h.levelFor(event) {
		return nil
	}
	return h.next.Handle(ctx, record)
}

func (h *eventFilteringHandler) levelFor(event string) slog.Level {
	if level, ok := h.eventLevels[event]; ok {
		return level
	}
	return h.defaultLevel
}

func (h *eventFilteringHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.next = h.next.WithAttrs(attrs)
	for _, attr := range attrs {
		if attr.Key == "event" {
			clone.event = attr.Value.String()
		}
	}
	return &clone
}

func (h *eventFilteringHandler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.next = h.next.WithGroup(name)
	return &clone
}
