package runner

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"
)

var ErrNoAddress = errors.New("no address records")

const defaultDNSPort = "53"

// DNSResolver resolves names against one explicit DNS server instead of the
// system configuration. A and then AAAA records are queried.
type DNSResolver struct {
	server  string
	timeout time.Duration
}

func NewDNSResolver(server string, timeout time.Duration) *DNSResolver {
	host, port := splitHostPortDefault(server, defaultDNSPort)
	return &DNSResolver{
		server:  net.JoinHostPort(host, port),
		timeout: timeout,
	}
}

func (r *DNSResolver) Resolve(ctx context.Context, host string) (string, error) {
	if ip := net.ParseIP(host); ip != nil {
		return host, nil
	}

	client := &dns.Client{
		Timeout: r.timeout,
	}

	for _, recordType := range []uint16{dns.TypeA, dns.TypeAAAA} {
		msg := dns.Msg{}
		msg.SetQuestion(dns.Fqdn(host), recordType)

		response, _, err := client.ExchangeContext(ctx, &msg, r.server)
		if err != nil {
			return "", fmt.Errorf("DNS query failed: %w", err)
		}

		if response.Rcode != dns.RcodeSuccess {
			return "", fmt.Errorf("DNS error: %s", dns.RcodeToString[response.Rcode])
		}

		for _, answer := range response.Answer {
			switch rr := answer.(type) {
			case *dns.A:
				return rr.A.String(), nil
			case *dns.AAAA:
				return rr.AAAA.String(), nil
			}
		}
	}

	return "", fmt.Errorf("%w for %s", ErrNoAddress, host)
}
