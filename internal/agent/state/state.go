// Package state holds the health snapshot assembled from asynchronous status events.
package state

import (
	"maps"
	"sync"
	"time"

	"AppStatus/internal/agent/domain"
)

// CachedCount is the backlog of one channel. Either field may be domain.NumberUnknown.
type CachedCount struct {
	Unsent int64 `json:"unsent"`
	Sent   int64 `json:"sent"`
}

// AggregatedState is safe for concurrent use. It must not be copied.
type AggregatedState struct {
	mu            sync.Mutex
	serverStatus  domain.ServerStatus
	knownStatus   bool
	recordsSent   int64
	cachedRecords map[string]CachedCount
	createdAt     time.Time
}

func New(createdAt time.Time) *AggregatedState {
	return &AggregatedState{
		cachedRecords: make(map[string]CachedCount),
		createdAt:     createdAt,
	}
}

func (s *AggregatedState) SetServerStatus(status domain.ServerStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.serverStatus = status
	s.knownStatus = true
}

// ServerStatus returns the last upstream status and whether any was reported yet.
func (s *AggregatedState) ServerStatus() (domain.ServerStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.serverStatus, s.knownStatus
}

// Connectivity is UNKNOWN until the first status event arrives.
func (s *AggregatedState) Connectivity() domain.ConnectivityStatus {
	status, ok := s.ServerStatus()
	if !ok {
		return domain.Unknown
	}
	return status.Connectivity()
}

// AddRecordsSent ignores negative counts, which includes the NumberUnknown sentinel.
func (s *AggregatedState) AddRecordsSent(count int64) {
	if count < 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.recordsSent += count
}

func (s *AggregatedState) RecordsSent() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.recordsSent
}

// PutCachedRecords replaces the pair stored for channel.
func (s *AggregatedState) PutCachedRecords(channel string, count CachedCount) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cachedRecords[channel] = count
}

// CachedRecords returns a copy of the per-channel backlog.
func (s *AggregatedState) CachedRecords() map[string]CachedCount {
	s.mu.Lock()
	defer s.mu.Unlock()

	return maps.Clone(s.cachedRecords)
}

// CachedTotals sums the known unsent and sent counts over all channels.
func (s *AggregatedState) CachedTotals() (unsent, sent int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, count := range s.cachedRecords {
		if count.Unsent != domain.NumberUnknown {
			unsent += count.Unsent
		}
		if count.Sent != domain.NumberUnknown {
			sent += count.Sent
		}
	}
	return unsent, sent
}

func (s *AggregatedState) CreatedAt() time.Time {
	return s.createdAt
}

// Uptime is measured against now; with time.Now it uses the monotonic clock.
func (s *AggregatedState) Uptime(now time.Time) time.Duration {
	return now.Sub(s.createdAt)
}

// Snapshot is a consistent copy of the whole state.
type Snapshot struct {
	ServerStatus  domain.ConnectivityStatus `json:"server_status"`
	RecordsSent   int64                     `json:"records_sent"`
	CachedRecords map[string]CachedCount    `json:"cached_records"`
	CreatedAt     time.Time                 `json:"created_at"`
}

func (s *AggregatedState) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := domain.Unknown
	if s.knownStatus {
		status = s.serverStatus.Connectivity()
	}
	return Snapshot{
		ServerStatus:  status,
		RecordsSent:   s.recordsSent,
		CachedRecords: maps.Clone(s.cachedRecords),
		CreatedAt:     s.createdAt,
	}
}
