package auth

import (
	"encoding/json"
	"net/http"
)

// RequireAuth rejects requests that have no authenticated identity.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if FromContext(r.Context()) == nil {
			respondErr(w, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdminClaim returns middleware that rejects requests whose identity
// neither carries the token's admin role claim nor matches one of the
// break-glass admin subjects (KUBEOPS_ADMIN_SUBJECTS). Used to guard
// /internal/health, which exposes mutex and worker internals.
func RequireAdminClaim(adminSubjects []string) func(http.Handler) http.Handler {
	set := make(map[string]struct{}, len(adminSubjects))
	for _, s := range adminSubjects {
		set[s] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := FromContext(r.Context())
			if id == nil {
				respondForbidden(w, "authentication required")
				return
			}
			_, breakGlass := set[id.Subject]
			if !id.AdminClaim && !breakGlass {
				respondForbidden(w, "admin role required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func respondForbidden(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "forbidden",
		"message": message,
	})
}
