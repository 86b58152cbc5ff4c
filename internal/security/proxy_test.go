package security

import (
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/noah-isme/scentmarket/internal/common"
)

func TestTrustedProxiesHonoursHeadersOnlyFromProxies(t *testing.T) {
	var seen string
	handler := TrustedProxies{Prefixes: []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}}.
		Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = common.ClientIP(r)
		}))

	send := func(remote string) string {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/coupons/preview", nil)
		req.RemoteAddr = remote
		req.Header.Set("X-Forwarded-For", "203.0.113.9")
		handler.ServeHTTP(httptest.NewRecorder(), req)
		return seen
	}

	if got := send("10.1.2.3:8080"); got != "203.0.113.9" {
		t.Fatalf("expected forwarded address from trusted proxy, got %q", got)
	}
	if got := send("198.51.100.7:8080"); got != "198.51.100.7" {
		t.Fatalf("expected peer address for untrusted caller, got %q", got)
	}
}

func TestTrustedProxiesWithoutPrefixesIgnoresHeaders(t *testing.T) {
	var seen string
	handler := TrustedProxies{}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = common.ClientIP(r)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.2.3:8080"
	req.Header.Set("X-Real-IP", "203.0.113.9")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "10.1.2.3" {
		t.Fatalf("expected peer address, got %q", seen)
	}
}
