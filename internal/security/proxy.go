package security

import (
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
)

// TrustedProxies applies chi's RealIP rewrite only to requests whose peer
// address falls inside one of Prefixes. Forwarding headers from any other
// peer are ignored, so clients cannot pick their own address.
type TrustedProxies struct {
	Prefixes []netip.Prefix
}

// Middleware rewrites RemoteAddr from forwarding headers for trusted peers.
func (t TrustedProxies) Middleware(next http.Handler) http.Handler {
	realIP := middleware.RealIP(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if t.trusted(r.RemoteAddr) {
			realIP.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (t TrustedProxies) trusted(remoteAddr string) bool {
	if len(t.Prefixes) == 0 {
		return false
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(remoteAddr))
	if err != nil {
		host = strings.TrimSpace(remoteAddr)
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range t.Prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
