package handler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"AppStatus/internal/agent/domain"
)

type recordingEmitter struct {
	mu      sync.Mutex
	records []domain.Record
	onEmit  func(domain.Record)
	failOn  string
}

func (e *recordingEmitter) Emit(_ context.Context, record domain.Record) error {
	if e.onEmit != nil {
		e.onEmit(record)
	}
	if record.Topic() == e.failOn {
		return errors.New("sink unavailable")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.records = append(e.records, record)
	return nil
}

func (e *recordingEmitter) all() []domain.Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.Record(nil), e.records...)
}

func (e *recordingEmitter) topics() []string {
	var topics []string
	for _, r := range e.all() {
		topics = append(topics, r.Topic())
	}
	return topics
}

func (e *recordingEmitter) byTopic(topic string) []domain.Record {
	var out []domain.Record
	for _, r := range e.all() {
		if r.Topic() == topic {
			out = append(out, r)
		}
	}
	return out
}

type fakeProber struct {
	result domain.TimeSyncResult
	err    error
	calls  atomic.Int32
	server atomic.Value
}

func (p *fakeProber) Probe(_ context.Context, server string, _ time.Duration) (domain.TimeSyncResult, error) {
	p.calls.Add(1)
	p.server.Store(server)
	return p.result, p.err
}

type fakeAddresses struct {
	addr  string
	calls atomic.Int32
}

func (a *fakeAddresses) LocalAddress() (string, bool) {
	a.calls.Add(1)
	return a.addr, a.addr != ""
}

// fixedClock returns base on every call.
func fixedClock(base time.Time) func() time.Time {
	return func() time.Time { return base }
}
