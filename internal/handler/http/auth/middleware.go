// Package auth verifies bearer tokens on protected routes and exposes the
// authenticated user id to handlers. Tokens are issued elsewhere.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"activity-guard/internal/handler/http/respond"
	"activity-guard/internal/observability/logging"

	"github.com/golang-jwt/jwt/v5"
)

// Client-facing rejection messages.
const (
	MsgMissingToken = "Missing Authorization header"
	MsgInvalidToken = "Invalid or expired token"
)

var (
	// ErrMissingToken indicates no "Bearer " Authorization header.
	ErrMissingToken = errors.New("missing bearer token")
	// ErrInvalidToken indicates a token that failed verification.
	ErrInvalidToken = errors.New("invalid or expired token")
)

type ctxKey string

const ctxUser ctxKey = "user"

// WithUser stores the authenticated user id in ctx.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxUser, userID)
}

// UserFromContext returns the authenticated user id, if any.
func UserFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxUser).(string)
	return id, ok && id != ""
}

// Verifier checks HS256 tokens signed with a shared secret.
type Verifier struct {
	secret []byte
	now    func() time.Time
	leeway time.Duration
}

// NewVerifier creates a verifier for secret.
func NewVerifier(secret []byte) *Verifier {
	return &Verifier{secret: secret, now: time.Now, leeway: 5 * time.Second}
}

// Verify parses an Authorization header value and returns the user id.
//
// The user id is the "sub" claim, or the legacy "userId" claim for tokens
// that carry no subject. "exp" is required.
func (v *Verifier) Verify(authz string) (string, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(authz, prefix) {
		return "", ErrMissingToken
	}
	tokenString := strings.TrimSpace(strings.TrimPrefix(authz, prefix))
	if tokenString == "" {
		return "", ErrMissingToken
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) { return v.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return "", errors.Join(ErrInvalidToken, err)
	}

	if sub, _ := claims.GetSubject(); sub != "" {
		return sub, nil
	}
	if legacy, ok := claims["userId"].(string); ok && legacy != "" {
		return legacy, nil
	}
	return "", errors.Join(ErrInvalidToken, errors.New("token has no subject"))
}

// Middleware rejects requests to non-public paths that lack a valid token
// with 401 and a {"message"} body. Accepted requests carry the user id in
// their context.
func Middleware(v *Verifier, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IsPublicEndpoint(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			userID, err := v.Verify(r.Header.Get("Authorization"))
			RecordAuthzCheckDuration(time.Since(start).Seconds())

			if err != nil {
				msg := MsgInvalidToken
				result := "invalid"
				if errors.Is(err, ErrMissingToken) {
					msg = MsgMissingToken
					result = "missing"
				}
				RecordAuthResult(result)
				logging.WithRequestID(r.Context(), logger).Debug("request rejected",
					slog.String("path", r.URL.Path),
					slog.String("reason", result),
					slog.String("error", respond.SanitizeError(err)))
				respond.Message(w, http.StatusUnauthorized, msg)
				return
			}

			RecordAuthResult("success")
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), userID)))
		})
	}
}
