package readsplit

import (
	"context"
	"log"
	"log/slog"
)

// Logger receives router events.
type Logger interface {
	Report(event LogEvent, r *Router)
}

type SlogLogger struct {
	logger *slog.Logger
	ctx    context.Context
}

func NewSlogLogger(logger *slog.Logger) SlogLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return SlogLogger{
		logger: logger,
		ctx:    context.Background(),
	}
}

func (l *SlogLogger) WithContext(ctx context.Context) SlogLogger {
	return SlogLogger{
		logger: l.logger,
		ctx:    ctx,
	}
}

func (l SlogLogger) Report(event LogEvent, r *Router) {
	if !l.logger.Enabled(l.ctx, event.LogLevel()) {
		return
	}

	attrs := event.LogAttrs()

	if r != nil {
		keys := make(map[string]bool, len(attrs))
		for _, a := range attrs {
			keys[a.Key] = true
		}

		if !keys["router_id"] {
			attrs = append(attrs, slog.String("router_id", r.id.String()))
		}
		if !keys["transaction_state"] {
			attrs = append(attrs, slog.String("transaction_state", r.txn.state.get().String()))
		}
		if !keys["read_pool_size"] {
			attrs = append(attrs, slog.Int("read_pool_size", len(r.readPool)))
		}
	}

	l.logger.LogAttrs(l.ctx, event.LogLevel(), event.Message(), attrs...)
}

type SimpleLogger struct{}

func (l SimpleLogger) Report(event LogEvent, r *Router) {
	attrs := event.LogAttrs()

	log.Printf("[%s] %s [event=%s]", event.LogLevel(), event.Message(), event.EventName())

	for _, attr := range attrs {
		switch attr.Key {
		case "error", "op", "txn_id":
			log.Printf("  %s: %v", attr.Key, attr.Value.Any())
		}
	}
}
