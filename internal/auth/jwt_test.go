package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestGenerateAndValidateToken(t *testing.T) {
	token, err := GenerateUserToken("alice")
	if err != nil {
		t.Fatalf("GenerateUserToken failed: %v", err)
	}

	claims, err := ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.UserID != "alice" {
		t.Errorf("Expected user alice, got %s", claims.UserID)
	}
}

func TestValidateToken_Garbage(t *testing.T) {
	if _, err := ValidateToken("not.a.token"); err == nil {
		t.Error("Expected error for garbage token")
	}
}

func TestValidateToken_Expired(t *testing.T) {
	claims := &JWTClaims{
		UserID: "alice",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret())
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}

	if _, err := ValidateToken(token); err == nil {
		t.Error("Expected error for expired token")
	}
}

func TestValidateToken_WrongKey(t *testing.T) {
	claims := &JWTClaims{
		UserID: "alice",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("some-other-secret"))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}

	if _, err := ValidateToken(token); err == nil {
		t.Error("Expected error for token signed with the wrong key")
	}
}

func TestVerifier_Verify(t *testing.T) {
	token, err := GenerateUserToken("bob")
	if err != nil {
		t.Fatalf("GenerateUserToken failed: %v", err)
	}

	verifier := NewVerifier()

	userID, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if userID != "bob" {
		t.Errorf("Expected user bob, got %s", userID)
	}

	if _, err := verifier.Verify("bogus"); err == nil {
		t.Error("Expected error for invalid token")
	}
}

func TestVerifier_RejectsTokenWithoutUser(t *testing.T) {
	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret())
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}

	if _, err := NewVerifier().Verify(token); err == nil {
		t.Error("Token without a user identity must be rejected")
	}
}
