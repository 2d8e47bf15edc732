package validator

import (
	"net"
	"strconv"
	"strings"
)

// ValidateServerAddress accepts an empty value, a bare host or host:port.
func ValidateServerAddress(addr string) bool {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return true
	}

	// Схемы не допускаются: ntp://pool.ntp.org
	if strings.Contains(addr, "://") || strings.ContainsAny(addr, " \t/") {
		return false
	}

	// Проверяем host:port 192.168.1.1:123
	if host, port, err := net.SplitHostPort(addr); err == nil {
		return host != "" && validPort(port)
	}

	// IPv6 без порта
	if net.ParseIP(addr) != nil {
		return true
	}

	return !strings.Contains(addr, ":")
}

func validPort(port string) bool {
	n, err := strconv.Atoi(port)
	return err == nil && n > 0 && n <= 65535
}
