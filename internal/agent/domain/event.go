package domain

import (
	"errors"
	"fmt"
)

// NumberUnknown marks a count that the sender did not supply.
const NumberUnknown int64 = -1

// Event is one inbound status notification.
type Event interface {
	isEvent()
}

type ServerStatusChanged struct {
	Status ServerStatus
}

type RecordsSent struct {
	Count int64
}

type CacheDepthChanged struct {
	Channel string
	Unsent  int64
	Sent    int64
}

func (ServerStatusChanged) isEvent() {}
func (RecordsSent) isEvent()         {}
func (CacheDepthChanged) isEvent()   {}

const (
	EventServerStatus = "server_status"
	EventRecordsSent  = "records_sent"
	EventCacheDepth   = "cache_depth"
)

// EventMessage is the JSON form of an Event used by the redis feed and the HTTP API.
// Missing counts decode as NumberUnknown.
type EventMessage struct {
	Type    string `json:"type"`
	Status  string `json:"status,omitempty"`
	Count   *int64 `json:"count,omitempty"`
	Channel string `json:"channel,omitempty"`
	Unsent  *int64 `json:"unsent,omitempty"`
	Sent    *int64 `json:"sent,omitempty"`
}

func (m EventMessage) ToEvent() (Event, error) {
	switch m.Type {
	case EventServerStatus:
		status, err := ParseServerStatus(m.Status)
		if err != nil {
			return nil, err
		}
		return ServerStatusChanged{Status: status}, nil
	case EventRecordsSent:
		return RecordsSent{Count: countOrUnknown(m.Count)}, nil
	case EventCacheDepth:
		if m.Channel == "" {
			return nil, errors.New("cache depth event without channel")
		}
		return CacheDepthChanged{
			Channel: m.Channel,
			Unsent:  countOrUnknown(m.Unsent),
			Sent:    countOrUnknown(m.Sent),
		}, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", m.Type)
	}
}

// Kind returns the EventMessage type name of e.
func Kind(e Event) string {
	switch e.(type) {
	case ServerStatusChanged:
		return EventServerStatus
	case RecordsSent:
		return EventRecordsSent
	case CacheDepthChanged:
		return EventCacheDepth
	default:
		return "unknown"
	}
}

func countOrUnknown(v *int64) int64 {
	if v == nil {
		return NumberUnknown
	}
	return *v
}
