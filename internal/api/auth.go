package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jbweber/homelab/labpool/internal/logger"
)

type contextKey string

const requesterKey contextKey = "requester_id"

// StudentHeader carries the requester when no JWT secret is configured.
const StudentHeader = "X-Student-ID"

// RequesterMiddleware resolves the calling student. With a secret, a bearer
// HMAC token is required on every request and its subject is the requester.
// Without one, the X-Student-ID header is trusted as is.
func RequesterMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if jwtSecret == "" {
				id := strings.TrimSpace(r.Header.Get(StudentHeader))
				next.ServeHTTP(w, r.WithContext(withRequester(r.Context(), id)))
				return
			}

			token, err := extractBearerToken(r.Header.Get("Authorization"))
			if err != nil {
				logger.FromContext(r.Context()).WithError(err).Debug("missing bearer token")
				writeJSON(w, r, http.StatusUnauthorized, ErrorResponse{Error: "authorization required", Code: "unauthorized"})
				return
			}
			subject, err := ParseToken(token, jwtSecret)
			if err != nil {
				logger.FromContext(r.Context()).WithError(err).Debug("rejected token")
				writeJSON(w, r, http.StatusUnauthorized, ErrorResponse{Error: "invalid token", Code: "unauthorized"})
				return
			}
			next.ServeHTTP(w, r.WithContext(withRequester(r.Context(), subject)))
		})
	}
}

func withRequester(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requesterKey, id)
}

// RequesterFromContext returns the calling student, or "" when unknown.
func RequesterFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requesterKey).(string); ok {
		return id
	}
	return ""
}

// requester returns the calling student or answers 401.
func requester(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := RequesterFromContext(r.Context())
	if id == "" {
		writeJSON(w, r, http.StatusUnauthorized, ErrorResponse{Error: "requester identity required", Code: "unauthorized"})
		return "", false
	}
	return id, true
}

// NewToken signs an HS256 token for the student, valid for ttl.
func NewToken(studentID, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   studentID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken validates an HMAC token and returns its subject.
func ParseToken(token, secret string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return claims.Subject, nil
}

// extractBearerToken extracts the token from "Bearer <token>" format
func extractBearerToken(authHeader string) (string, error) {
	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || token == "" {
		return "", fmt.Errorf("invalid authorization header format")
	}
	if !strings.EqualFold(scheme, "bearer") {
		return "", fmt.Errorf("unsupported authorization scheme: %s", scheme)
	}
	return token, nil
}
