package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventMessageToEvent(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    Event
		wantErr bool
	}{
		{"server status", `{"type":"server_status","status":"READY"}`, ServerStatusChanged{Status: ServerReady}, false},
		{"records sent", `{"type":"records_sent","count":5}`, RecordsSent{Count: 5}, false},
		{"records sent without count", `{"type":"records_sent"}`, RecordsSent{Count: NumberUnknown}, false},
		{"cache depth", `{"type":"cache_depth","channel":"topicA","unsent":3,"sent":2}`, CacheDepthChanged{Channel: "topicA", Unsent: 3, Sent: 2}, false},
		{"cache depth partial", `{"type":"cache_depth","channel":"topicA","unsent":3}`, CacheDepthChanged{Channel: "topicA", Unsent: 3, Sent: NumberUnknown}, false},
		{"cache depth without channel", `{"type":"cache_depth","unsent":3}`, nil, true},
		{"bad status", `{"type":"server_status","status":"NOPE"}`, nil, true},
		{"unknown type", `{"type":"reboot"}`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var msg EventMessage
			require.NoError(t, json.Unmarshal([]byte(tt.payload), &msg))

			got, err := msg.ToEvent()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, msg.Type, Kind(got))
		})
	}
}
