// Package middleware holds HTTP middleware shared by every route: client IP
// resolution and CORS.
package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"activity-guard/internal/domain/entity"
)

// UnknownIP is recorded when no address can be derived from a request.
const UnknownIP = entity.UnknownIP

type ipCtxKey struct{}

// IPExtractor resolves the client address of a request.
//
// Resolution order: first entry of X-Forwarded-For, then X-Real-IP, then the
// transport peer address with its port stripped, then UnknownIP. When
// trusted proxies are configured the forwarding headers are honoured only
// for requests whose peer address is inside one of the prefixes.
type IPExtractor struct {
	trusted []netip.Prefix
	logger  *slog.Logger
}

// NewIPExtractor creates an extractor. An empty trusted list honours
// forwarding headers from any peer.
func NewIPExtractor(trusted []netip.Prefix, logger *slog.Logger) *IPExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &IPExtractor{trusted: trusted, logger: logger}
}

// ExtractIP returns the client address of r. It never returns an empty string.
func (e *IPExtractor) ExtractIP(r *http.Request) string {
	peer := peerAddr(r.RemoteAddr)

	if e.headersTrusted(peer) {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if first = strings.TrimSpace(first); first != "" {
				return first
			}
		}
		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			return xri
		}
	} else if r.Header.Get("X-Forwarded-For") != "" || r.Header.Get("X-Real-IP") != "" {
		e.logger.Warn("forwarding headers from untrusted peer ignored",
			slog.String("remote_addr", r.RemoteAddr))
	}

	if peer != "" {
		return peer
	}
	return UnknownIP
}

func (e *IPExtractor) headersTrusted(peer string) bool {
	if len(e.trusted) == 0 {
		return true
	}
	addr, err := netip.ParseAddr(peer)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range e.trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// peerAddr strips the port from a "host:port" transport address.
//
//   - "192.168.1.1:54321" → "192.168.1.1"
//   - "[2001:db8::1]:8080" → "2001:db8::1"
//   - "127.0.0.1" → "127.0.0.1"
func peerAddr(remoteAddr string) string {
	if remoteAddr == "" {
		return ""
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return strings.Trim(remoteAddr, "[]")
	}
	return host
}

// ClientIP stores the extracted client address in the request context.
func ClientIP(e *IPExtractor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), ipCtxKey{}, e.ExtractIP(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientIPFromContext returns the address stored by ClientIP, or UnknownIP.
func ClientIPFromContext(ctx context.Context) string {
	if ip, ok := ctx.Value(ipCtxKey{}).(string); ok && ip != "" {
		return ip
	}
	return UnknownIP
}
