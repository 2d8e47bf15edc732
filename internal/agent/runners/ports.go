package runner

import (
	"context"
	"time"

	"AppStatus/internal/agent/domain"
)

// TimeProber performs one time-sync exchange against server.
type TimeProber interface {
	Probe(ctx context.Context, server string, timeout time.Duration) (domain.TimeSyncResult, error)
}

// Resolver turns a host name into a single IP address literal.
type Resolver interface {
	Resolve(ctx context.Context, host string) (string, error)
}
