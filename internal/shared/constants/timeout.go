package constants

import "time"

const (
	TimeSyncTimeout  = 5 * time.Second
	DNSTimeout       = 2 * time.Second
	EmitTimeout      = 5 * time.Second
	RedisPingTimeout = 5 * time.Second
	ShutdownTimeout  = 10 * time.Second
)

const (
	DefaultStatusInterval   = time.Minute
	DefaultTimezoneInterval = time.Hour
)
