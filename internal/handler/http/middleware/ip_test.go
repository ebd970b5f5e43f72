package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestIPExtractor_NoTrustedProxies(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		want       string
	}{
		{name: "xff first entry", remoteAddr: "10.0.0.1:1234", xff: "203.0.113.5, 10.0.0.2", want: "203.0.113.5"},
		{name: "xff single", remoteAddr: "10.0.0.1:1234", xff: "203.0.113.5", want: "203.0.113.5"},
		{name: "xff padded", remoteAddr: "10.0.0.1:1234", xff: "  198.51.100.7  ,10.0.0.2", want: "198.51.100.7"},
		{name: "x-real-ip", remoteAddr: "10.0.0.1:1234", xri: "198.51.100.9", want: "198.51.100.9"},
		{name: "xff wins over x-real-ip", remoteAddr: "10.0.0.1:1234", xff: "203.0.113.5", xri: "198.51.100.9", want: "203.0.113.5"},
		{name: "empty xff entry falls back", remoteAddr: "10.0.0.1:1234", xff: " , 10.0.0.2", xri: "198.51.100.9", want: "198.51.100.9"},
		{name: "remote addr ipv4", remoteAddr: "192.168.1.1:54321", want: "192.168.1.1"},
		{name: "remote addr ipv6", remoteAddr: "[2001:db8::1]:8080", want: "2001:db8::1"},
		{name: "remote addr without port", remoteAddr: "127.0.0.1", want: "127.0.0.1"},
		{name: "nothing", remoteAddr: "", want: UnknownIP},
	}

	e := NewIPExtractor(nil, discardLogger())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			assert.Equal(t, tt.want, e.ExtractIP(req))
		})
	}
}

func TestIPExtractor_TrustedProxies(t *testing.T) {
	trusted := []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("2001:db8::/32"),
	}
	e := NewIPExtractor(trusted, discardLogger())

	tests := []struct {
		name       string
		remoteAddr string
		want       string
	}{
		{name: "trusted ipv4 peer", remoteAddr: "10.1.2.3:443", want: "203.0.113.5"},
		{name: "trusted ipv6 peer", remoteAddr: "[2001:db8::7]:443", want: "203.0.113.5"},
		{name: "ipv4-mapped trusted peer", remoteAddr: "[::ffff:10.1.2.3]:443", want: "203.0.113.5"},
		{name: "untrusted peer", remoteAddr: "192.0.2.10:443", want: "192.0.2.10"},
		{name: "unparseable peer", remoteAddr: "not-an-ip", want: "not-an-ip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			req.Header.Set("X-Forwarded-For", "203.0.113.5")
			assert.Equal(t, tt.want, e.ExtractIP(req))
		})
	}
}

func TestClientIP_Middleware(t *testing.T) {
	var got string
	h := ClientIP(NewIPExtractor(nil, discardLogger()))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ClientIPFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:9999"
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "192.0.2.1", got)
	assert.Equal(t, UnknownIP, ClientIPFromContext(req.Context()))
}
