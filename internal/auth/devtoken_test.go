package auth

import "testing"

func TestParseDevTokensEmpty(t *testing.T) {
	store, err := ParseDevTokens("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := store.Lookup("anything"); ok {
		t.Fatal("expected lookup against empty store to fail")
	}
}

func TestParseDevTokensAdminAndNonAdmin(t *testing.T) {
	store, err := ParseDevTokens("tok-admin:alice:admin,tok-user:bob:free")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	admin, ok := store.Lookup("tok-admin")
	if !ok {
		t.Fatal("expected tok-admin to resolve")
	}
	if admin.Subject != "alice" || !admin.AdminClaim {
		t.Fatalf("admin identity = %+v, want subject=alice admin=true", admin)
	}

	user, ok := store.Lookup("tok-user")
	if !ok {
		t.Fatal("expected tok-user to resolve")
	}
	if user.Subject != "bob" || user.AdminClaim {
		t.Fatalf("user identity = %+v, want subject=bob admin=false", user)
	}

	if _, ok := store.Lookup("unknown"); ok {
		t.Fatal("expected unknown token to fail lookup")
	}
}

func TestParseDevTokensRejectsMalformedEntry(t *testing.T) {
	if _, err := ParseDevTokens("justtoken"); err == nil {
		t.Fatal("expected an error for a malformed entry")
	}
}
