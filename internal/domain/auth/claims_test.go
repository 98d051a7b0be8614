package auth_test

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/securedocs/obo-search-relay/internal/domain/auth"
)

// unsignedToken builds a structurally valid JWT with a bogus signature.
// DecodeClaims must not care about the signature.
func unsignedToken(t *testing.T, claims map[string]any) string {
	t.Helper()

	header, err := json.Marshal(map[string]string{"alg": "RS256", "typ": "JWT"})
	if err != nil {
		t.Fatalf("failed to marshal header: %v", err)
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		t.Fatalf("failed to marshal claims: %v", err)
	}

	enc := base64.RawURLEncoding
	return enc.EncodeToString(header) + "." + enc.EncodeToString(payload) + "." + enc.EncodeToString([]byte("sig"))
}

func TestDecodeClaims(t *testing.T) {
	raw := unsignedToken(t, map[string]any{
		"iss":                "https://login.microsoftonline.com/tenant-1/v2.0",
		"aud":                "api://relay-client",
		"sub":                "user-1",
		"tid":                "tenant-1",
		"scp":                "user_impersonation openid",
		"name":               "Test User",
		"preferred_username": "user1@example.com",
		"exp":                4102444800,
	})

	claims, err := auth.DecodeClaims(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if claims.Subject != "user-1" {
		t.Errorf("expected subject user-1, got %s", claims.Subject)
	}
	if claims.TenantID != "tenant-1" {
		t.Errorf("expected tenant tenant-1, got %s", claims.TenantID)
	}
	if len(claims.Scopes) != 2 {
		t.Errorf("expected two scopes, got %v", claims.Scopes)
	}
	if claims.ExpiresAt.IsZero() {
		t.Error("expected expiry to be decoded")
	}
	if claims.DisplayName() != "Test User" {
		t.Errorf("unexpected display name %q", claims.DisplayName())
	}
}

func TestDecodeClaims_DisplayNameFallback(t *testing.T) {
	raw := unsignedToken(t, map[string]any{
		"sub":                "user-2",
		"preferred_username": "user2@example.com",
	})

	claims, err := auth.DecodeClaims(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims.DisplayName() != "user2@example.com" {
		t.Errorf("expected preferred_username fallback, got %q", claims.DisplayName())
	}
}

func TestDecodeClaims_Malformed(t *testing.T) {
	if _, err := auth.DecodeClaims("only.two"); err == nil {
		t.Fatal("expected error for malformed token")
	}
	if _, err := auth.DecodeClaims(""); err == nil {
		t.Fatal("expected error for empty token")
	}
}
