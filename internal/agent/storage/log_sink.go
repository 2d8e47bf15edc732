package storage

import (
	"context"
	"log/slog"

	"AppStatus/internal/agent/domain"
)

// LogSink writes records to the structured log.
type LogSink struct {
	logger *slog.Logger
	level  slog.Level
}

func NewLogSink(logger *slog.Logger, level slog.Level) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger, level: level}
}

func (s *LogSink) Emit(ctx context.Context, record domain.Record) error {
	s.logger.Log(ctx, s.level, "status record",
		"topic", record.Topic(),
		"value", record,
	)
	return nil
}
