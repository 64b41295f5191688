package auth_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/simplestore/api/internal/auth"
)

func TestGenerateAndValidateToken(t *testing.T) {
	secret := "test-secret"
	userID := uuid.New()
	role := "STAFF"

	token, err := auth.GenerateToken(secret, userID, role)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	claims, err := auth.ValidateToken(secret, token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}

	if claims.UserID != userID {
		t.Errorf("user ID: got %v, want %v", claims.UserID, userID)
	}
	if claims.Role != role {
		t.Errorf("role: got %v, want %v", claims.Role, role)
	}
}

func TestValidateToken_WrongSecret(t *testing.T) {
	token, err := auth.GenerateToken("secret-a", uuid.New(), "ADMIN")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	if _, err := auth.ValidateToken("secret-b", token); err == nil {
		t.Error("expected error for wrong secret, got nil")
	}
}

func TestValidateToken_Garbage(t *testing.T) {
	if _, err := auth.ValidateToken("secret", "not.a.token"); err == nil {
		t.Error("expected error for malformed token, got nil")
	}
}

func TestRefreshTokenIsNotAccessToken(t *testing.T) {
	userID := uuid.New()
	refresh, err := auth.GenerateRefreshToken("secret", userID)
	if err != nil {
		t.Fatalf("generate refresh token: %v", err)
	}

	// Refresh tokens carry only a subject, so the custom claims come back
	// zero-valued and must not authenticate a user.
	claims, err := auth.ValidateToken("secret", refresh)
	if err != nil {
		t.Fatalf("validate refresh token: %v", err)
	}
	if claims.UserID != uuid.Nil {
		t.Errorf("expected nil user ID in refresh token claims, got %v", claims.UserID)
	}
	if claims.Subject != userID.String() {
		t.Errorf("subject: got %v, want %v", claims.Subject, userID)
	}
}
