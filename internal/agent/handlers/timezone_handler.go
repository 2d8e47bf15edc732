package handler

import (
	"context"
	"log/slog"
	"time"

	"AppStatus/internal/agent/domain"
	"AppStatus/internal/agent/metrics"
	"AppStatus/internal/agent/storage"
	"AppStatus/internal/shared/constants"
)

// TimezoneHandler reports the UTC offset of a location at the current instant.
type TimezoneHandler struct {
	emitter  storage.Emitter
	location *time.Location
	now      func() time.Time
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewTimezoneHandler(emitter storage.Emitter, location *time.Location, now func() time.Time, logger *slog.Logger, m *metrics.Metrics) *TimezoneHandler {
	if location == nil {
		location = time.Local
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TimezoneHandler{
		emitter:  emitter,
		location: location,
		now:      now,
		logger:   logger,
		metrics:  m,
	}
}

// Offset returns the offset in seconds in effect at t, including daylight saving.
func (h *TimezoneHandler) Offset(t time.Time) int {
	_, offset := t.In(h.location).Zone()
	return offset
}

func (h *TimezoneHandler) Run(ctx context.Context) error {
	now := h.now()
	record := domain.TimeZoneRecord{
		Time:   domain.EpochSeconds(now),
		Offset: h.Offset(now),
	}

	emitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.EmitTimeout)
	defer cancel()

	if err := h.emitter.Emit(emitCtx, record); err != nil {
		h.metrics.EmitFailed(record.Topic())
		h.logger.Warn("failed to emit record", "topic", record.Topic(), "error", err)
		return nil
	}
	h.metrics.RecordEmitted(record.Topic())
	return nil
}
