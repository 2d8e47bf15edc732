package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"AppStatus/internal/agent/domain"
	"AppStatus/internal/agent/metrics"
	runner "AppStatus/internal/agent/runners"
	"AppStatus/internal/agent/scheduler"
	"AppStatus/internal/agent/state"
	"AppStatus/internal/agent/storage"
)

var newScheduler = scheduler.New

const (
	statusSchedulerName   = "application_status"
	timezoneSchedulerName = "application_time_zone"
)

type ManagerConfig struct {
	UpdateInterval time.Duration
	// TimezoneInterval <= 0 disables the time zone report.
	TimezoneInterval time.Duration
	RunOnStart       bool
	TimeSyncServer   string
	TimeSyncTimeout  time.Duration
	IncludeIP        bool
	Location         *time.Location
	Now              func() time.Time
}

// StatusManager owns the aggregated state and the two report schedulers.
type StatusManager struct {
	state    *state.AggregatedState
	status   *StatusHandler
	timezone *TimezoneHandler
	logger   *slog.Logger
	metrics  *metrics.Metrics

	statusScheduler *scheduler.Scheduler
	runOnStart      bool

	mu               sync.Mutex
	tzScheduler      *scheduler.Scheduler
	timezoneInterval time.Duration
	running          bool
	closed           bool
}

func NewStatusManager(
	cfg ManagerConfig,
	emitter storage.Emitter,
	prober runner.TimeProber,
	addresses AddressSource,
	logger *slog.Logger,
	m *metrics.Metrics,
) (*StatusManager, error) {
	if emitter == nil {
		return nil, errors.New("emitter is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	st := state.New(now())

	manager := &StatusManager{
		state: st,
		status: NewStatusHandler(st, emitter, prober, addresses, StatusHandlerConfig{
			TimeSyncServer:  cfg.TimeSyncServer,
			TimeSyncTimeout: cfg.TimeSyncTimeout,
			IncludeIP:       cfg.IncludeIP,
			Now:             now,
		}, logger.With("component", "status"), m),
		timezone:         NewTimezoneHandler(emitter, cfg.Location, now, logger.With("component", "time_zone"), m),
		logger:           logger,
		metrics:          m,
		runOnStart:       cfg.RunOnStart,
		timezoneInterval: max(cfg.TimezoneInterval, 0),
	}

	statusScheduler, err := newScheduler(statusSchedulerName, manager.status.Run, scheduler.Options{
		Interval:       cfg.UpdateInterval,
		RunImmediately: cfg.RunOnStart,
		Logger:         logger,
		Metrics:        m,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid status update interval: %w", err)
	}
	manager.statusScheduler = statusScheduler

	return manager, nil
}

func (m *StatusManager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return scheduler.ErrClosed
	}
	if m.running {
		return nil
	}

	m.logger.Info("Starting status manager",
		"update_interval", m.statusScheduler.Interval(),
		"timezone_interval", m.timezoneInterval,
		"time_sync_server", m.status.TimeSyncServer(),
	)

	if err := m.statusScheduler.Start(); err != nil {
		return fmt.Errorf("failed to start status scheduler: %w", err)
	}
	// status reports are ticking from here on, even if the time zone report fails
	m.running = true

	if m.timezoneInterval > 0 {
		if err := m.startTimezoneLocked(m.timezoneInterval); err != nil {
			return err
		}
	}
	return nil
}

// Close stops both schedulers, waiting for ticks in progress.
func (m *StatusManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.logger.Info("Closing status manager")

	m.closed = true
	m.running = false

	var errs []error
	if err := m.statusScheduler.Close(); err != nil {
		errs = append(errs, err)
	}
	if m.tzScheduler != nil {
		if err := m.tzScheduler.Close(); err != nil {
			errs = append(errs, err)
		}
		m.tzScheduler = nil
	}
	return errors.Join(errs...)
}

func (m *StatusManager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.running
}

// SetStatusInterval rejects non-positive intervals with scheduler.ErrInvalidInterval.
func (m *StatusManager) SetStatusInterval(interval time.Duration) error {
	return m.statusScheduler.SetInterval(interval)
}

func (m *StatusManager) StatusInterval() time.Duration {
	return m.statusScheduler.Interval()
}

// SetTimezoneInterval treats a non-positive interval as "disabled": the time
// zone scheduler is closed and discarded. A positive interval (re)creates it.
func (m *StatusManager) SetTimezoneInterval(interval time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return scheduler.ErrClosed
	}

	if interval <= 0 {
		m.timezoneInterval = 0
		if m.tzScheduler != nil {
			err := m.tzScheduler.Close()
			m.tzScheduler = nil
			m.logger.Info("Time zone report disabled")
			return err
		}
		return nil
	}

	m.timezoneInterval = interval
	if m.tzScheduler != nil {
		return m.tzScheduler.SetInterval(interval)
	}
	if m.running {
		return m.startTimezoneLocked(interval)
	}
	return nil
}

func (m *StatusManager) TimezoneInterval() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.timezoneInterval
}

func (m *StatusManager) startTimezoneLocked(interval time.Duration) error {
	tz, err := newScheduler(timezoneSchedulerName, m.timezone.Run, scheduler.Options{
		Interval:       interval,
		RunImmediately: m.runOnStart,
		Logger:         m.logger,
		Metrics:        m.metrics,
	})
	if err != nil {
		return fmt.Errorf("failed to create time zone scheduler: %w", err)
	}
	if err := tz.Start(); err != nil {
		return fmt.Errorf("failed to start time zone scheduler: %w", err)
	}
	m.tzScheduler = tz
	return nil
}

func (m *StatusManager) SetTimeSyncServer(server string) {
	m.status.SetTimeSyncServer(server)
}

func (m *StatusManager) TimeSyncServer() string {
	return m.status.TimeSyncServer()
}

func (m *StatusManager) SetIncludeIP(include bool) {
	m.status.SetIncludeIP(include)
}

func (m *StatusManager) IncludeIP() bool {
	return m.status.IncludeIP()
}

func (m *StatusManager) State() *state.AggregatedState {
	return m.state
}

func (m *StatusManager) Snapshot() state.Snapshot {
	return m.state.Snapshot()
}

func (m *StatusManager) OnServerStatusChanged(status domain.ServerStatus) {
	m.metrics.EventReceived(domain.EventServerStatus)
	m.state.SetServerStatus(status)
}

// OnRecordsSent ignores the NumberUnknown sentinel.
func (m *StatusManager) OnRecordsSent(count int64) {
	m.metrics.EventReceived(domain.EventRecordsSent)
	m.state.AddRecordsSent(count)
}

func (m *StatusManager) OnCacheDepthChanged(channel string, unsent, sent int64) {
	m.metrics.EventReceived(domain.EventCacheDepth)
	m.state.PutCachedRecords(channel, state.CachedCount{Unsent: unsent, Sent: sent})
}

// Handle dispatches one inbound event to its entry point.
func (m *StatusManager) Handle(event domain.Event) {
	switch e := event.(type) {
	case domain.ServerStatusChanged:
		m.OnServerStatusChanged(e.Status)
	case domain.RecordsSent:
		m.OnRecordsSent(e.Count)
	case domain.CacheDepthChanged:
		m.OnCacheDepthChanged(e.Channel, e.Unsent, e.Sent)
	default:
		m.logger.Warn("ignoring unknown event", "event", fmt.Sprintf("%T", event))
	}
}

// Consume applies events from the feed until it is closed or ctx is done.
func (m *StatusManager) Consume(ctx context.Context, events <-chan domain.Event) {
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Stopping event consumption due to context cancellation")
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			m.Handle(event)
		}
	}
}
