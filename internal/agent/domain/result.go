package domain

import "time"

// TimeSyncResult is the outcome of one successful time-sync exchange.
type TimeSyncResult struct {
	Server         string
	LocalSendTime  time.Time
	Offset         time.Duration
	RoundTripDelay time.Duration
	// ReferenceTime is the estimated true time at ReferenceLocal.
	ReferenceTime  time.Time
	ReferenceLocal time.Time
}

// EstimatedTime projects the reference time forward to the local instant now.
func (r TimeSyncResult) EstimatedTime(now time.Time) time.Time {
	return r.ReferenceTime.Add(now.Sub(r.ReferenceLocal))
}
