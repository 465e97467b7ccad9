package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

// Middleware returns an HTTP middleware that rate-limits the source IP,
// then authenticates the caller via OIDC bearer JWT or a static dev token,
// and stores the resulting Identity in the request context.
//
// Authentication precedence:
//  1. Authorization: Bearer <jwt>   →  OIDC JWT validation (if configured)
//  2. Authorization: Bearer <token> →  KUBEOPS_DEV_TOKENS lookup (if configured)
//
// An IP that has exceeded the rate limiter's threshold is rejected before
// either is attempted. If neither authentication method succeeds, the
// request is rejected with 401.
func Middleware(oidcAuth *OIDCAuthenticator, devTokens *DevTokenStore, limiter *RateLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)

			if limiter != nil {
				result, err := limiter.Check(r.Context(), ip)
				if err != nil {
					logger.Error("rate limit check failed", "error", err)
				} else if !result.Allowed {
					respondErr(w, http.StatusTooManyRequests, "rate_limited", "too many failed authentication attempts")
					return
				}
			}

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") && !strings.HasPrefix(authHeader, "bearer ") {
				respondErr(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}
			rawToken := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(authHeader, "Bearer "), "bearer "))

			var identity *Identity

			if oidcAuth != nil {
				claims, err := oidcAuth.Authenticate(r.Context(), rawToken)
				if err == nil {
					identity = &Identity{
						Subject:    claims.Subject,
						Email:      claims.Email,
						AdminClaim: strings.EqualFold(claims.Role, "admin"),
						Method:     MethodOIDC,
					}
					logger.Debug("authenticated via OIDC", "sub", claims.Subject)
				} else {
					logger.Debug("OIDC authentication failed, trying dev token", "error", err)
				}
			}

			if identity == nil && devTokens != nil {
				if id, ok := devTokens.Lookup(rawToken); ok {
					identity = id
					logger.Debug("authenticated via dev token", "sub", identity.Subject)
				}
			}

			if identity == nil {
				if limiter != nil {
					if err := limiter.Record(r.Context(), ip); err != nil {
						logger.Error("recording failed auth attempt", "error", err)
					}
				}
				respondErr(w, http.StatusUnauthorized, "unauthorized", "invalid bearer token")
				return
			}

			if limiter != nil {
				if err := limiter.Reset(r.Context(), ip); err != nil {
					logger.Error("resetting rate limit", "error", err)
				}
			}

			ctx := NewContext(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// clientIP returns the caller's IP for rate-limit bucketing, preferring the
// leftmost X-Forwarded-For entry when present.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx >= 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	return r.RemoteAddr
}

func respondErr(w http.ResponseWriter, status int, errStr, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   errStr,
		"message": message,
	})
}
