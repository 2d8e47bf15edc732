package storage

import (
	"context"
	"maps"
	"sync"

	"AppStatus/internal/agent/domain"
)

// LatestSink keeps the most recent record per topic in memory.
type LatestSink struct {
	mu      sync.RWMutex
	records map[string]domain.Record
}

func NewLatestSink() *LatestSink {
	return &LatestSink{records: make(map[string]domain.Record)}
}

func (s *LatestSink) Emit(_ context.Context, record domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[record.Topic()] = record
	return nil
}

func (s *LatestSink) Latest(topic string) (domain.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[topic]
	return r, ok
}

func (s *LatestSink) All() map[string]domain.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return maps.Clone(s.records)
}
