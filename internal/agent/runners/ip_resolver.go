package runner

import (
	"log/slog"
	"net"
	"sync"
)

// InterfaceAddrs lists the addresses of live interfaces in enumeration order.
type InterfaceAddrs func() ([]net.IP, error)

// LiveInterfaceAddrs enumerates the addresses of all interfaces that are up.
func LiveInterfaceAddrs() ([]net.IP, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	var ips []net.IP
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			return nil, err
		}
		for _, addr := range addrs {
			switch v := addr.(type) {
			case *net.IPNet:
				ips = append(ips, v.IP)
			case *net.IPAddr:
				ips = append(ips, v.IP)
			}
		}
	}
	return ips, nil
}

// AddressResolver finds the outward-facing local address and remembers it
// while it stays bound to a live interface.
//
// When several addresses qualify the last one enumerated wins, so the pick
// depends on the platform's interface order.
type AddressResolver struct {
	list   InterfaceAddrs
	bound  func(net.IP) bool
	logger *slog.Logger

	mu     sync.Mutex
	cached net.IP
}

func NewAddressResolver(list InterfaceAddrs, logger *slog.Logger) *AddressResolver {
	if list == nil {
		list = LiveInterfaceAddrs
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AddressResolver{
		list:   list,
		bound:  boundLocally,
		logger: logger,
	}
}

// boundLocally reports whether ip can still be bound on this host. It is a
// single socket call instead of a walk over every interface.
func boundLocally(ip net.IP) bool {
	conn, err := net.ListenPacket("udp", net.JoinHostPort(ip.String(), "0"))
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// LocalAddress never fails; ok is false when no address is available.
func (r *AddressResolver) LocalAddress() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cached != nil && r.bound(r.cached) {
		return r.cached.String(), true
	}

	addrs, err := r.list()
	if err != nil {
		r.logger.Warn("No IP address could be determined", "error", err)
		r.cached = nil
		return "", false
	}

	if r.cached == nil || !containsIP(addrs, r.cached) {
		r.cached = nil
		for _, ip := range addrs {
			if isReportable(ip) {
				r.cached = ip
			}
		}
	}

	if r.cached == nil {
		return "", false
	}
	return r.cached.String(), true
}

func isReportable(ip net.IP) bool {
	return !ip.IsLoopback() &&
		!ip.IsLinkLocalUnicast() &&
		!ip.IsLinkLocalMulticast() &&
		!ip.IsUnspecified()
}

func containsIP(ips []net.IP, target net.IP) bool {
	for _, ip := range ips {
		if ip.Equal(target) {
			return true
		}
	}
	return false
}
