package auth

import (
	"testing"
	"time"
)

func TestIssueAndParse(t *testing.T) {
	tokens, err := Issue(42, "professor", "rollcall", "secret", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Fatal("expected non-empty tokens")
	}

	claims, err := Parse(tokens.AccessToken, "secret", "rollcall")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if claims.Role != "professor" {
		t.Errorf("expected role professor, got %q", claims.Role)
	}
	id, err := claims.UserID()
	if err != nil {
		t.Fatalf("UserID failed: %v", err)
	}
	if id != 42 {
		t.Errorf("expected user id 42, got %d", id)
	}
}

func TestParseRejectsWrongKey(t *testing.T) {
	tokens, err := Issue(1, "student", "rollcall", "secret", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if _, err := Parse(tokens.AccessToken, "other-secret", "rollcall"); err == nil {
		t.Error("expected error for wrong signing key")
	}
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	tokens, err := Issue(1, "student", "someone-else", "secret", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if _, err := Parse(tokens.AccessToken, "secret", "rollcall"); err == nil {
		t.Error("expected error for issuer mismatch")
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	tokens, err := Issue(1, "student", "rollcall", "secret", -time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if _, err := Parse(tokens.AccessToken, "secret", "rollcall"); err == nil {
		t.Error("expected error for expired token")
	}
}
