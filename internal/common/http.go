package common

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the peer address of the request. Forwarding headers are
// honoured only through security.TrustedProxies, which rewrites RemoteAddr
// for requests arriving from a configured proxy.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
