package domain

import "time"

const (
	TopicServerStatus = "application_server_status"
	TopicUptime       = "application_uptime"
	TopicRecordCounts = "application_record_counts"
	TopicExternalTime = "application_external_time"
	TopicTimeZone     = "application_time_zone"
)

// ExternalTimeProtocol tags the source of a reference time.
type ExternalTimeProtocol string

const ProtocolSNTP ExternalTimeProtocol = "SNTP"

// Record is one emitted measurement.
type Record interface {
	Topic() string
}

type ServerStatusRecord struct {
	Time      float64            `json:"time"`
	Status    ConnectivityStatus `json:"status"`
	IPAddress *string            `json:"ip_address"`
}

type UptimeRecord struct {
	Time   float64 `json:"time"`
	Uptime float64 `json:"uptime"`
}

type RecordCountsRecord struct {
	Time          float64 `json:"time"`
	RecordsCached int64   `json:"records_cached"`
	RecordsSent   int64   `json:"records_sent"`
	RecordsUnsent int64   `json:"records_unsent"`
}

type ExternalTimeRecord struct {
	Time         float64              `json:"time"`
	ExternalTime float64              `json:"external_time"`
	Host         string               `json:"host"`
	Protocol     ExternalTimeProtocol `json:"protocol"`
	Delay        float64              `json:"delay"`
}

type TimeZoneRecord struct {
	Time   float64 `json:"time"`
	Offset int     `json:"offset"`
}

func (ServerStatusRecord) Topic() string { return TopicServerStatus }
func (UptimeRecord) Topic() string       { return TopicUptime }
func (RecordCountsRecord) Topic() string { return TopicRecordCounts }
func (ExternalTimeRecord) Topic() string { return TopicExternalTime }
func (TimeZoneRecord) Topic() string     { return TopicTimeZone }

// EpochSeconds converts t to fractional seconds since the Unix epoch.
func EpochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
