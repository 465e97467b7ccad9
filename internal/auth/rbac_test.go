package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func withIdentity(r *http.Request, id *Identity) *http.Request {
	return r.WithContext(NewContext(r.Context(), id))
}

func TestRequireAuthRejectsAnonymous(t *testing.T) {
	h := RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRequireAuthAllowsIdentity(t *testing.T) {
	h := RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = withIdentity(req, &Identity{Subject: "u1"})
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestRequireAdminClaimRejectsNonAdmin(t *testing.T) {
	h := RequireAdminClaim(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = withIdentity(req, &Identity{Subject: "u1", AdminClaim: false})
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestRequireAdminClaimAllowsAdminRoleClaim(t *testing.T) {
	h := RequireAdminClaim(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = withIdentity(req, &Identity{Subject: "u1", AdminClaim: true})
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestRequireAdminClaimAllowsBreakGlassSubject(t *testing.T) {
	h := RequireAdminClaim([]string{"break-glass-user"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = withIdentity(req, &Identity{Subject: "break-glass-user", AdminClaim: false})
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for break-glass subject", rec.Code)
	}
}

func TestIdentityContextRoundTrip(t *testing.T) {
	if FromContext(context.Background()) != nil {
		t.Fatal("expected nil identity from an empty context")
	}

	id := &Identity{Subject: "u1"}
	ctx := NewContext(context.Background(), id)
	got := FromContext(ctx)
	if got != id {
		t.Fatalf("FromContext returned %+v, want %+v", got, id)
	}
}
