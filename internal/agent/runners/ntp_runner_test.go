package runner

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startNTPServer answers every request with respond(req); nil responses are dropped.
func startNTPServer(t *testing.T, respond func(req *ntpPacket) []byte) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { pc.Close() })

	go func() {
		buf := make([]byte, 128)
		for {
			n, addr, err := pc.ReadFrom(buf)
			if err != nil {
				return
			}
			req, err := unmarshalNTPPacket(buf[:n])
			if err != nil {
				continue
			}
			if data := respond(req); data != nil {
				_, _ = pc.WriteTo(data, addr)
			}
		}
	}()

	return pc.LocalAddr().String()
}

func serverReply(offset time.Duration, mutate func(p *ntpPacket)) func(req *ntpPacket) []byte {
	return func(req *ntpPacket) []byte {
		now := time.Now().Add(offset)
		resp := ntpPacket{
			Settings:     ntpVersion<<3 | ntpModeServer,
			Stratum:      2,
			OrigTimeSec:  req.TxTimeSec,
			OrigTimeFrac: req.TxTimeFrac,
		}
		resp.RxTimeSec, resp.RxTimeFrac = toNTPTime(now)
		resp.TxTimeSec, resp.TxTimeFrac = toNTPTime(now.Add(time.Millisecond))
		if mutate != nil {
			mutate(&resp)
		}
		data, _ := resp.marshal()
		return data
	}
}

func TestNTPRunnerMeasuresOffset(t *testing.T) {
	addr := startNTPServer(t, serverReply(2*time.Second, nil))

	r := NewNTPRunner(nil)
	result, err := r.Probe(context.Background(), addr, time.Second)
	require.NoError(t, err)

	assert.Equal(t, addr, result.Server)
	assert.InDelta(t, (2 * time.Second).Seconds(), result.Offset.Seconds(), 0.1)
	assert.GreaterOrEqual(t, result.RoundTripDelay, time.Duration(0))
	assert.Less(t, result.RoundTripDelay, time.Second)
	assert.False(t, result.LocalSendTime.After(result.ReferenceLocal))

	now := time.Now()
	assert.InDelta(t, now.Add(2*time.Second).Sub(time.Unix(0, 0)).Seconds(),
		result.EstimatedTime(now).Sub(time.Unix(0, 0)).Seconds(), 0.1)
}

type staticResolver map[string]string

func (r staticResolver) Resolve(_ context.Context, host string) (string, error) {
	if ip, ok := r[host]; ok {
		return ip, nil
	}
	return "", ErrNoAddress
}

func TestNTPRunnerUsesResolver(t *testing.T) {
	addr := startNTPServer(t, serverReply(0, nil))
	_, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)

	r := NewNTPRunner(staticResolver{"time.example": "127.0.0.1"})
	_, err = r.Probe(context.Background(), net.JoinHostPort("time.example", port), time.Second)
	require.NoError(t, err)

	_, err = r.Probe(context.Background(), "unknown.example", time.Second)
	require.ErrorIs(t, err, ErrNoAddress)
}

func TestNTPRunnerTimeout(t *testing.T) {
	addr := startNTPServer(t, func(*ntpPacket) []byte { return nil })

	r := NewNTPRunner(nil)
	start := time.Now()
	_, err := r.Probe(context.Background(), addr, 100*time.Millisecond)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestNTPRunnerCancel(t *testing.T) {
	addr := startNTPServer(t, func(*ntpPacket) []byte { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	r := NewNTPRunner(nil)
	start := time.Now()
	_, err := r.Probe(ctx, addr, 10*time.Second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestNTPRunnerRejectsBadResponses(t *testing.T) {
	tests := []struct {
		name    string
		respond func(req *ntpPacket) []byte
		wantErr error
	}{
		{
			name:    "client mode",
			respond: serverReply(0, func(p *ntpPacket) { p.Settings = ntpVersion<<3 | ntpModeClient }),
			wantErr: ErrInvalidMode,
		},
		{
			name:    "kiss of death",
			respond: serverReply(0, func(p *ntpPacket) { p.Stratum = 0 }),
			wantErr: ErrKissOfDeath,
		},
		{
			name:    "alarm",
			respond: serverReply(0, func(p *ntpPacket) { p.Settings |= ntpLeapAlarm << 6 }),
			wantErr: ErrUnsynchronized,
		},
		{
			name:    "origin mismatch",
			respond: serverReply(0, func(p *ntpPacket) { p.OrigTimeFrac++ }),
			wantErr: ErrOriginMismatch,
		},
		{
			name:    "zero transmit",
			respond: serverReply(0, func(p *ntpPacket) { p.TxTimeSec, p.TxTimeFrac = 0, 0 }),
			wantErr: ErrMalformedResponse,
		},
		{
			name:    "short packet",
			respond: func(*ntpPacket) []byte { return []byte{0x24, 0x02} },
			wantErr: ErrMalformedResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr := startNTPServer(t, tt.respond)

			_, err := NewNTPRunner(nil).Probe(context.Background(), addr, time.Second)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNTPTimeConversion(t *testing.T) {
	ts := time.Date(2025, 3, 30, 1, 2, 3, 500_000_000, time.UTC)
	sec, frac := toNTPTime(ts)
	assert.InDelta(t, 0, fromNTPTime(sec, frac).Sub(ts).Seconds(), 1e-6)

	era1 := time.Date(2040, 1, 1, 0, 0, 0, 0, time.UTC)
	sec, frac = toNTPTime(era1)
	assert.True(t, fromNTPTime(sec, frac).Equal(era1))
}

func TestSplitHostPortDefault(t *testing.T) {
	tests := []struct {
		address  string
		wantHost string
		wantPort string
	}{
		{"pool.ntp.org", "pool.ntp.org", "123"},
		{"pool.ntp.org:1123", "pool.ntp.org", "1123"},
		{"10.0.0.1", "10.0.0.1", "123"},
		{"::1", "::1", "123"},
		{"[::1]", "::1", "123"},
		{"[::1]:1123", "::1", "1123"},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			host, port := splitHostPortDefault(tt.address, defaultNTPPort)
			assert.Equal(t, tt.wantHost, host)
			assert.Equal(t, tt.wantPort, port)
			assert.NotContains(t, net.JoinHostPort(host, port), "[[")
		})
	}
}
