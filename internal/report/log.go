package report

import (
	"context"
	"io"
	"log/slog"
)

// LogSink writes reports to the structured log.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Write(ctx context.Context, r Report) error {
	attrs := []any{"cycle_id", r.CycleID, "summary", r.Summary}
	for _, name := range r.Facts.Names() {
		attrs = append(attrs, name, r.Facts[name])
	}
	s.logger.InfoContext(ctx, "facts reported", attrs...)
	return nil
}

func (s *LogSink) Close() error { return nil }
