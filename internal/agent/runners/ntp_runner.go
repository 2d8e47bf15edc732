package runner

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"AppStatus/internal/agent/domain"
)

var (
	ErrMalformedResponse = errors.New("malformed SNTP response")
	ErrInvalidMode       = errors.New("unexpected SNTP mode")
	ErrKissOfDeath       = errors.New("SNTP server sent kiss-of-death")
	ErrUnsynchronized    = errors.New("SNTP server clock not synchronized")
	ErrOriginMismatch    = errors.New("SNTP origin timestamp mismatch")
)

const defaultNTPPort = "123"

// NTPRunner is a single-shot SNTP client (RFC 4330).
type NTPRunner struct {
	resolver Resolver
	now      func() time.Time
}

// NewNTPRunner resolves host names with resolver when it is not nil and with
// the system resolver otherwise.
func NewNTPRunner(resolver Resolver) *NTPRunner {
	return &NTPRunner{
		resolver: resolver,
		now:      time.Now,
	}
}

func (r *NTPRunner) Probe(ctx context.Context, server string, timeout time.Duration) (domain.TimeSyncResult, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	host, port := splitHostPortDefault(server, defaultNTPPort)
	if r.resolver != nil {
		ip, err := r.resolver.Resolve(ctx, host)
		if err != nil {
			return domain.TimeSyncResult{}, fmt.Errorf("failed to resolve %s: %w", host, err)
		}
		host = ip
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", net.JoinHostPort(host, port))
	if err != nil {
		return domain.TimeSyncResult{}, fmt.Errorf("failed to dial %s: %w", server, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return domain.TimeSyncResult{}, fmt.Errorf("failed to set deadline: %w", err)
		}
	}
	// unblock the read as soon as ctx is cancelled
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	request := ntpPacket{Settings: ntpVersion<<3 | ntpModeClient}
	sendTime := r.now()
	request.TxTimeSec, request.TxTimeFrac = toNTPTime(sendTime)

	data, err := request.marshal()
	if err != nil {
		return domain.TimeSyncResult{}, fmt.Errorf("failed to encode request: %w", err)
	}
	if _, err := conn.Write(data); err != nil {
		return domain.TimeSyncResult{}, fmt.Errorf("failed to send request: %w", err)
	}

	buf := make([]byte, 128)
	n, err := conn.Read(buf)
	receiveTime := r.now()
	if err != nil {
		if ctx.Err() != nil {
			return domain.TimeSyncResult{}, fmt.Errorf("no response from %s: %w", server, ctx.Err())
		}
		return domain.TimeSyncResult{}, fmt.Errorf("failed to read response: %w", err)
	}

	response, err := unmarshalNTPPacket(buf[:n])
	if err != nil {
		return domain.TimeSyncResult{}, err
	}
	if err := validateResponse(&request, response); err != nil {
		return domain.TimeSyncResult{}, err
	}

	serverReceive := fromNTPTime(response.RxTimeSec, response.RxTimeFrac)
	serverTransmit := fromNTPTime(response.TxTimeSec, response.TxTimeFrac)

	offset := (serverReceive.Sub(sendTime) + serverTransmit.Sub(receiveTime)) / 2
	delay := receiveTime.Sub(sendTime) - serverTransmit.Sub(serverReceive)
	if delay < 0 {
		delay = 0
	}

	return domain.TimeSyncResult{
		Server:         server,
		LocalSendTime:  sendTime,
		Offset:         offset,
		RoundTripDelay: delay,
		ReferenceTime:  receiveTime.Add(offset),
		ReferenceLocal: receiveTime,
	}, nil
}

func validateResponse(request, response *ntpPacket) error {
	if mode := response.mode(); mode != ntpModeServer && mode != ntpModeBcast {
		return fmt.Errorf("%w: %d", ErrInvalidMode, mode)
	}
	if response.Stratum == 0 {
		return ErrKissOfDeath
	}
	if response.leap() == ntpLeapAlarm {
		return ErrUnsynchronized
	}
	if response.TxTimeSec == 0 && response.TxTimeFrac == 0 {
		return fmt.Errorf("%w: zero transmit time", ErrMalformedResponse)
	}
	if response.OrigTimeSec != request.TxTimeSec || response.OrigTimeFrac != request.TxTimeFrac {
		return ErrOriginMismatch
	}
	return nil
}

func splitHostPortDefault(address, defaultPort string) (string, string) {
	if host, port, err := net.SplitHostPort(address); err == nil {
		return host, port
	}
	// [::1] без порта
	if strings.HasPrefix(address, "[") && strings.HasSuffix(address, "]") {
		address = address[1 : len(address)-1]
	}
	return address, defaultPort
}
