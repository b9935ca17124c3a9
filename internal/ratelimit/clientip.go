package ratelimit

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// Forwarding headers in trust order. Values from these headers are
// spoofable, so only globally routable addresses are accepted from them.
var proxyHeaders = []string{
	"CF-Connecting-IP",
	"X-Real-IP",
	"X-Forwarded-For",
}

// ClientIP resolves the caller address, preferring proxy headers and
// falling back to the direct connection address.
func ClientIP(r *http.Request) string {
	for _, header := range proxyHeaders {
		value := r.Header.Get(header)
		if value == "" {
			continue
		}
		// X-Forwarded-For may carry a chain; the left-most entry is the
		// original client.
		for _, part := range strings.Split(value, ",") {
			candidate := strings.TrimSpace(part)
			if addr, err := netip.ParseAddr(candidate); err == nil && isGloballyRoutable(addr) {
				return addr.String()
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		return addr.String()
	}
	return ""
}

func isGloballyRoutable(addr netip.Addr) bool {
	return addr.IsValid() &&
		!addr.IsLoopback() &&
		!addr.IsPrivate() &&
		!addr.IsLinkLocalUnicast() &&
		!addr.IsLinkLocalMulticast() &&
		!addr.IsMulticast() &&
		!addr.IsUnspecified()
}
