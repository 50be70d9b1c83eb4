package utils

import (
	"testing"
)

func TestJwtRoundTrip_CarriesIdentityClaims(t *testing.T) {
	token, err := JwtGenerate(42, "auditor", "Asha Rao")
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}

	parsed, err := JwtValidate(token)
	if err != nil {
		t.Fatalf("JwtValidate: %v", err)
	}
	if !parsed.Valid {
		t.Fatal("token not valid after round trip")
	}

	claims, ok := parsed.Claims.(*JwtCustomClaim)
	if !ok {
		t.Fatalf("claims type = %T, want *JwtCustomClaim", parsed.Claims)
	}
	if claims.ID != 42 {
		t.Errorf("ID = %d, want 42", claims.ID)
	}
	if claims.Role != "auditor" {
		t.Errorf("Role = %q, want %q", claims.Role, "auditor")
	}
	if claims.Name != "Asha Rao" {
		t.Errorf("Name = %q, want %q", claims.Name, "Asha Rao")
	}
}

func TestJwtValidate_RejectsTamperedToken(t *testing.T) {
	token, err := JwtGenerate(7, "bank", "Teller")
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}

	tampered := token[:len(token)-2] + "xx"
	parsed, err := JwtValidate(tampered)
	if err == nil && parsed.Valid {
		t.Fatal("tampered token validated")
	}
}
