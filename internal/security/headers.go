package security

import (
	"net/http"
	"strconv"
	"strings"
)

// Headers attaches response hardening headers. API responses carry prices and
// wallet balances, so they are marked uncacheable.
type Headers struct {
	HSTS                  bool
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
	// NoStorePrefix marks responses under this path as uncacheable. Empty disables it.
	NoStorePrefix string
}

// Middleware sets the headers before the handler writes.
func (h Headers) Middleware(next http.Handler) http.Handler {
	hsts := h.hstsValue()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		headers.Set("X-Content-Type-Options", "nosniff")
		headers.Set("X-Frame-Options", "DENY")
		headers.Set("Referrer-Policy", "no-referrer")
		if h.HSTS && r.TLS != nil {
			headers.Set("Strict-Transport-Security", hsts)
		}
		if h.NoStorePrefix != "" && strings.HasPrefix(r.URL.Path, h.NoStorePrefix) {
			headers.Set("Cache-Control", "no-store")
		}
		next.ServeHTTP(w, r)
	})
}

func (h Headers) hstsValue() string {
	maxAge := h.HSTSMaxAge
	if maxAge <= 0 {
		maxAge = 31536000
	}
	value := "max-age=" + strconv.Itoa(maxAge)
	if h.HSTSIncludeSubdomains {
		value += "; includeSubDomains"
	}
	return value
}
