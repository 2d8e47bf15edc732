package handler

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"AppStatus/internal/agent/domain"
	"AppStatus/internal/agent/metrics"
	runner "AppStatus/internal/agent/runners"
	"AppStatus/internal/agent/state"
	"AppStatus/internal/agent/storage"
	"AppStatus/internal/shared/constants"
)

// AddressSource provides the local network address reported with the server status.
type AddressSource interface {
	LocalAddress() (string, bool)
}

type StatusHandlerConfig struct {
	TimeSyncServer  string
	TimeSyncTimeout time.Duration
	IncludeIP       bool
	Now             func() time.Time
}

// StatusHandler produces the server status, uptime, record counts and
// reference time records, in that order, once per Run.
type StatusHandler struct {
	state     *state.AggregatedState
	emitter   storage.Emitter
	prober    runner.TimeProber
	addresses AddressSource
	now       func() time.Time
	timeout   time.Duration
	logger    *slog.Logger
	metrics   *metrics.Metrics

	mu             sync.RWMutex
	timeSyncServer string
	includeIP      bool
}

func NewStatusHandler(
	st *state.AggregatedState,
	emitter storage.Emitter,
	prober runner.TimeProber,
	addresses AddressSource,
	cfg StatusHandlerConfig,
	logger *slog.Logger,
	m *metrics.Metrics,
) *StatusHandler {
	timeout := cfg.TimeSyncTimeout
	if timeout <= 0 {
		timeout = constants.TimeSyncTimeout
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	if logger == nil {
		logger = slog.Default()
	}

	h := &StatusHandler{
		state:     st,
		emitter:   emitter,
		prober:    prober,
		addresses: addresses,
		now:       now,
		timeout:   timeout,
		logger:    logger,
		metrics:   m,
		includeIP: cfg.IncludeIP,
	}
	h.SetTimeSyncServer(cfg.TimeSyncServer)
	return h
}

// SetTimeSyncServer configures the reference time server; blank disables it.
func (h *StatusHandler) SetTimeSyncServer(server string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.timeSyncServer = strings.TrimSpace(server)
}

func (h *StatusHandler) TimeSyncServer() string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.timeSyncServer
}

func (h *StatusHandler) SetIncludeIP(include bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.includeIP = include
}

func (h *StatusHandler) IncludeIP() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.includeIP
}

// Run is the scheduler task. It stops between steps once ctx is cancelled.
func (h *StatusHandler) Run(ctx context.Context) error {
	h.logger.Info("Updating application status")

	steps := []func(ctx context.Context){
		h.processServerStatus,
		h.processUptime,
		h.processRecordCounts,
		h.processReferenceTime,
	}

	for _, step := range steps {
		if ctx.Err() != nil {
			return nil
		}
		step(ctx)
	}
	return nil
}

func (h *StatusHandler) processServerStatus(ctx context.Context) {
	now := h.now()
	status := h.state.Connectivity()

	var ipAddress *string
	if h.IncludeIP() && h.addresses != nil {
		if addr, ok := h.addresses.LocalAddress(); ok {
			ipAddress = &addr
		}
	}

	h.logger.Info("Server status",
		"status", status,
		"ip_address", derefOrEmpty(ipAddress),
	)

	h.emit(ctx, domain.ServerStatusRecord{
		Time:      domain.EpochSeconds(now),
		Status:    status,
		IPAddress: ipAddress,
	})
}

func (h *StatusHandler) processUptime(ctx context.Context) {
	now := h.now()

	h.emit(ctx, domain.UptimeRecord{
		Time:   domain.EpochSeconds(now),
		Uptime: h.state.Uptime(now).Seconds(),
	})
}

func (h *StatusHandler) processRecordCounts(ctx context.Context) {
	now := h.now()

	unsent, sent := h.state.CachedTotals()
	cached := unsent + sent
	recordsSent := h.state.RecordsSent()

	h.logger.Info("Number of records",
		"sent", recordsSent,
		"unsent", unsent,
		"cached", cached,
	)

	h.emit(ctx, domain.RecordCountsRecord{
		Time:          domain.EpochSeconds(now),
		RecordsCached: cached,
		RecordsSent:   recordsSent,
		RecordsUnsent: unsent,
	})
}

func (h *StatusHandler) processReferenceTime(ctx context.Context) {
	server := h.TimeSyncServer()
	if server == "" || h.prober == nil {
		return
	}

	result, err := h.prober.Probe(ctx, server, h.timeout)
	if err != nil {
		if ctx.Err() == nil {
			h.metrics.TimeSyncFailed()
			h.logger.Debug("time sync failed", "server", server, "error", err)
		}
		return
	}

	now := h.now()
	h.emit(ctx, domain.ExternalTimeRecord{
		Time:         domain.EpochSeconds(now),
		ExternalTime: domain.EpochSeconds(result.EstimatedTime(now)),
		Host:         server,
		Protocol:     domain.ProtocolSNTP,
		Delay:        result.RoundTripDelay.Seconds(),
	})
}

// emit is not bound to the tick context so a record already measured is
// still delivered while the scheduler is closing.
func (h *StatusHandler) emit(ctx context.Context, record domain.Record) {
	emitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.EmitTimeout)
	defer cancel()

	if err := h.emitter.Emit(emitCtx, record); err != nil {
		h.metrics.EmitFailed(record.Topic())
		h.logger.Warn("failed to emit record", "topic", record.Topic(), "error", err)
		return
	}
	h.metrics.RecordEmitted(record.Topic())
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
