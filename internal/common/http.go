package common

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ClientIP returns the rate limit identity of the caller taken from
// RemoteAddr. Forwarding headers are not read here; chi's RealIP middleware
// rewrites RemoteAddr when the service sits behind a proxy. IPv6 callers are
// grouped by their /64 since one host usually owns the whole prefix.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	raw := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(raw); err == nil {
		raw = host
	}
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return raw
	}
	addr = addr.Unmap()
	if addr.Is6() {
		if prefix, err := addr.Prefix(64); err == nil {
			return prefix.String()
		}
	}
	return addr.String()
}
