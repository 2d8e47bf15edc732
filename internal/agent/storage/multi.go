package storage

import (
	"context"
	"errors"
	"fmt"

	"AppStatus/internal/agent/domain"
)

// MultiEmitter fans a record out to every emitter; one failing emitter does not
// keep the record from the others.
type MultiEmitter []Emitter

func (m MultiEmitter) Emit(ctx context.Context, record domain.Record) error {
	var errs []error
	for _, e := range m {
		if err := e.Emit(ctx, record); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to emit %s: %w", record.Topic(), errors.Join(errs...))
	}
	return nil
}
