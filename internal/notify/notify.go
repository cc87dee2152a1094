// Package notify delivers fire-and-forget notifications about order
// lifecycle events. Delivery failures never block or roll back an order
// transition; callers log and move on.
package notify

import (
	"context"
	"log/slog"
)

// Sink accepts a notification for a recipient. Implementations must not
// assume the caller retries.
type Sink interface {
	Send(ctx context.Context, recipient, kind string, data map[string]string) error
}

// LogSink writes notifications to the structured log. Used when no broker is
// configured.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Send(_ context.Context, recipient, kind string, data map[string]string) error {
	attrs := make([]any, 0, 2+2*len(data))
	attrs = append(attrs, slog.String("recipient", recipient), slog.String("kind", kind))
	for k, v := range data {
		attrs = append(attrs, slog.String(k, v))
	}
	s.logger.Info("notification", attrs...)
	return nil
}
