// Package pathutil turns request paths into low-cardinality metric labels.
package pathutil

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// UnmatchedRoute labels requests that no route handled.
const UnmatchedRoute = "unmatched"

type routeKey struct{}

type route struct {
	pattern string
}

// Track returns r with a slot that Capture fills with the matched ServeMux
// pattern. Middleware that wraps the mux calls it before serving so that the
// pattern is visible to it afterwards, even when inner middleware replaces
// the request with r.WithContext.
func Track(r *http.Request) *http.Request {
	if _, ok := r.Context().Value(routeKey{}).(*route); ok {
		return r
	}
	return r.WithContext(context.WithValue(r.Context(), routeKey{}, &route{}))
}

// Capture wraps a ServeMux and records the pattern it matched into the slot
// installed by Track.
func Capture(mux http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mux.ServeHTTP(w, r)
		if rt, ok := r.Context().Value(routeKey{}).(*route); ok {
			rt.pattern = r.Pattern
		}
	})
}

// Pattern returns the full matched pattern, e.g. "POST /activity", or "".
func Pattern(r *http.Request) string {
	if rt, ok := r.Context().Value(routeKey{}).(*route); ok && rt.pattern != "" {
		return rt.pattern
	}
	return r.Pattern
}

// RouteLabel returns the label for a served request: the path part of the
// matched pattern, or UnmatchedRoute.
//
//	"POST /activity"       → "/activity"
//	"GET /activity/stats"  → "/activity/stats"
//	""                     → "unmatched"
func RouteLabel(r *http.Request) string {
	pattern := Pattern(r)
	if pattern == "" {
		return UnmatchedRoute
	}
	if _, path, ok := strings.Cut(pattern, " "); ok {
		pattern = path
	}
	if i := strings.IndexByte(pattern, '/'); i > 0 {
		pattern = pattern[i:] // drop host
	}
	return NormalizePath(pattern)
}

// NormalizePath strips the query and trailing slash and replaces numeric and
// UUID segments with ":id".
//
//	"/activity/stats/"                                   → "/activity/stats"
//	"/events/123"                                        → "/events/:id"
//	"/events/0b7e8a90-3f5d-4c1e-9a57-3c1f0f6f0a11?x=1"   → "/events/:id"
func NormalizePath(path string) string {
	if idx := strings.IndexByte(path, '?'); idx != -1 {
		path = path[:idx]
	}
	if len(path) > 1 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}

	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if isID(seg) {
			segments[i] = ":id"
		}
	}
	return strings.Join(segments, "/")
}

func isID(seg string) bool {
	if seg == "" {
		return false
	}
	if _, err := strconv.ParseUint(seg, 10, 64); err == nil {
		return true
	}
	if len(seg) == 36 {
		_, err := uuid.Parse(seg)
		return err == nil
	}
	return false
}
