package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AppStatus/internal/agent/domain"
	"AppStatus/internal/agent/metrics"
	"AppStatus/internal/agent/scheduler"
	"AppStatus/internal/agent/state"
	"AppStatus/pkg/uuidutil"
)

type fakeService struct {
	mu               sync.Mutex
	running          bool
	events           []domain.Event
	statusInterval   time.Duration
	timezoneInterval time.Duration
	timeSyncServer   string
	includeIP        bool
	closed           bool
}

func (f *fakeService) Running() bool { return f.running }

func (f *fakeService) Snapshot() state.Snapshot {
	return state.Snapshot{
		ServerStatus:  domain.Connected,
		RecordsSent:   5,
		CachedRecords: map[string]state.CachedCount{"topicA": {Unsent: 3, Sent: 2}},
	}
}

func (f *fakeService) Handle(event domain.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeService) StatusInterval() time.Duration { return f.statusInterval }

func (f *fakeService) SetStatusInterval(d time.Duration) error {
	if d <= 0 {
		return scheduler.ErrInvalidInterval
	}
	f.statusInterval = d
	return nil
}

func (f *fakeService) TimezoneInterval() time.Duration { return f.timezoneInterval }

func (f *fakeService) SetTimezoneInterval(d time.Duration) error {
	if f.closed {
		return scheduler.ErrClosed
	}
	f.timezoneInterval = max(d, 0)
	return nil
}

func (f *fakeService) TimeSyncServer() string     { return f.timeSyncServer }
func (f *fakeService) SetTimeSyncServer(s string) { f.timeSyncServer = s }
func (f *fakeService) IncludeIP() bool            { return f.includeIP }
func (f *fakeService) SetIncludeIP(b bool)        { f.includeIP = b }

type fakeRecords map[string]domain.Record

func (r fakeRecords) All() map[string]domain.Record { return r }

func newTestServer(service *fakeService, records RecordReader) *Server {
	return New(&Config{Mode: "test", Name: "appstatus", Version: "test"}, service, records, nil)
}

func do(t *testing.T, s *Server, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.GetRouter().ServeHTTP(w, req)

	var payload map[string]any
	if w.Body.Len() > 0 && strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	}
	return w, payload
}

func TestHealthAndReady(t *testing.T) {
	service := &fakeService{}
	s := newTestServer(service, nil)

	w, body := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "appstatus", body["service"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w, _ = do(t, s, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	service.running = true
	w, _ = do(t, s, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetStatus(t *testing.T) {
	service := &fakeService{running: true, statusInterval: time.Minute, timeSyncServer: "pool.ntp.org"}
	s := newTestServer(service, nil)

	w, body := do(t, s, http.MethodGet, "/api/v1/status", "")
	require.Equal(t, http.StatusOK, w.Code)

	data := body["data"].(map[string]any)
	st := data["state"].(map[string]any)
	assert.Equal(t, "CONNECTED", st["server_status"])
	assert.Equal(t, float64(5), st["records_sent"])

	settings := data["settings"].(map[string]any)
	assert.Equal(t, "1m0s", settings["update_interval"])
	assert.Equal(t, "pool.ntp.org", settings["time_sync_server"])
}

func TestGetRecords(t *testing.T) {
	records := fakeRecords{
		domain.TopicUptime: domain.UptimeRecord{Time: 100, Uptime: 42},
	}
	s := newTestServer(&fakeService{}, records)

	w, body := do(t, s, http.MethodGet, "/api/v1/records?topic="+domain.TopicUptime, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(42), body["data"].(map[string]any)["uptime"])

	w, _ = do(t, s, http.MethodGet, "/api/v1/records?topic=missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, body = do(t, s, http.MethodGet, "/api/v1/records", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, body["data"], domain.TopicUptime)
}

func TestPostEvents(t *testing.T) {
	service := &fakeService{}
	s := newTestServer(service, nil)

	tests := []struct {
		path string
		body string
		code int
	}{
		{"/api/v1/events/server-status", `{"status":"UPLOADING"}`, http.StatusAccepted},
		{"/api/v1/events/records-sent", `{"count":5}`, http.StatusAccepted},
		{"/api/v1/events/cache-depth", `{"channel":"topicA","unsent":3,"sent":2}`, http.StatusAccepted},
		{"/api/v1/events/server-status", `{"status":"NAPPING"}`, http.StatusBadRequest},
		{"/api/v1/events/cache-depth", `{"unsent":3}`, http.StatusBadRequest},
		{"/api/v1/events/records-sent", `not json`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		w, _ := do(t, s, http.MethodPost, tt.path, tt.body)
		assert.Equal(t, tt.code, w.Code, tt.path+" "+tt.body)
	}

	assert.Equal(t, []domain.Event{
		domain.ServerStatusChanged{Status: domain.ServerUploading},
		domain.RecordsSent{Count: 5},
		domain.CacheDepthChanged{Channel: "topicA", Unsent: 3, Sent: 2},
	}, service.events)
}

func TestUpdateSettings(t *testing.T) {
	service := &fakeService{statusInterval: time.Minute, timezoneInterval: time.Hour}
	s := newTestServer(service, nil)

	w, body := do(t, s, http.MethodPatch, "/api/v1/settings",
		`{"update_interval":"30s","timezone_interval":"0s","time_sync_server":" pool.ntp.org ","include_ip":true}`)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, 30*time.Second, service.statusInterval)
	assert.Equal(t, time.Duration(0), service.timezoneInterval)
	assert.Equal(t, "pool.ntp.org", service.timeSyncServer)
	assert.True(t, service.includeIP)
	assert.Equal(t, "30s", body["data"].(map[string]any)["update_interval"])
}

func TestUpdateSettingsRejectsInvalidValues(t *testing.T) {
	service := &fakeService{statusInterval: time.Minute}
	s := newTestServer(service, nil)

	for _, body := range []string{
		`{"update_interval":"0s"}`,
		`{"update_interval":"soon"}`,
		`{"timezone_interval":"hourly"}`,
		`{"time_sync_server":"ntp://pool.ntp.org"}`,
	} {
		w, _ := do(t, s, http.MethodPatch, "/api/v1/settings", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
	assert.Equal(t, time.Minute, service.statusInterval)
}

func TestUpdateSettingsReportsPartialUpdate(t *testing.T) {
	service := &fakeService{statusInterval: time.Minute, timezoneInterval: time.Hour, closed: true}
	s := newTestServer(service, nil)

	w, body := do(t, s, http.MethodPatch, "/api/v1/settings",
		`{"update_interval":"30s","timezone_interval":"5m","include_ip":true}`)
	require.Equal(t, http.StatusConflict, w.Code)

	assert.Equal(t, "partial_update", body["error"])
	errs := body["errors"].(map[string]any)
	assert.Contains(t, errs, "timezone_interval")
	assert.NotContains(t, errs, "update_interval")

	data := body["data"].(map[string]any)
	assert.Equal(t, "30s", data["update_interval"])
	assert.Equal(t, "1h0m0s", data["timezone_interval"])
	assert.Equal(t, true, data["include_ip"])
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New()
	require.NoError(t, m.Register(reg))
	m.RecordEmitted(domain.TopicUptime)

	s := New(&Config{
		Mode:    "test",
		Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}, &fakeService{}, nil, nil)

	w, _ := do(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "appstatus_")
}

func TestRequestIDMiddleware(t *testing.T) {
	s := newTestServer(&fakeService{}, nil)

	const incoming = "0b8f3a2e-5c4d-4e6f-8a9b-1c2d3e4f5a6b"
	tests := []struct {
		name   string
		header string
		keep   bool
	}{
		{"valid uuid is kept", incoming, true},
		{"missing header", "", false},
		{"not a uuid", "req-42", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			if tt.header != "" {
				req.Header.Set("X-Request-ID", tt.header)
			}
			w := httptest.NewRecorder()
			s.GetRouter().ServeHTTP(w, req)

			got := w.Header().Get("X-Request-ID")
			assert.True(t, uuidutil.IsValid(got))
			if tt.keep {
				assert.Equal(t, tt.header, got)
			} else {
				assert.NotEqual(t, tt.header, got)
			}
		})
	}
}

func TestNotFound(t *testing.T) {
	w, body := do(t, newTestServer(&fakeService{}, nil), http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", body["error"])
}
