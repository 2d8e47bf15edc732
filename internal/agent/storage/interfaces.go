package storage

import (
	"context"
	"time"

	"AppStatus/internal/agent/domain"
	"AppStatus/pkg/uuidutil"
)

// Emitter receives every measurement record produced by the reporter.
type Emitter interface {
	Emit(ctx context.Context, record domain.Record) error
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(ctx context.Context, record domain.Record) error

func (f EmitterFunc) Emit(ctx context.Context, record domain.Record) error {
	return f(ctx, record)
}

// Envelope is the stored form of a record.
type Envelope struct {
	ID        string        `json:"id"`
	Source    string        `json:"source"`
	Topic     string        `json:"topic"`
	EmittedAt time.Time     `json:"emitted_at"`
	Value     domain.Record `json:"value"`
}

func NewEnvelope(source string, record domain.Record) Envelope {
	return Envelope{
		ID:        uuidutil.NewOrdered(),
		Source:    source,
		Topic:     record.Topic(),
		EmittedAt: time.Now().UTC(),
		Value:     record,
	}
}
