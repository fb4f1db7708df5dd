package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestGenerateAndValidateToken(t *testing.T) {
	svc := NewJWTService([]byte("test-secret"), 15*time.Minute)

	token, err := svc.GenerateToken("user-1", RoleOperator)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if token == "" {
		t.Fatal("empty token")
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Errorf("UserID = %s, want user-1", claims.UserID)
	}
	if claims.Role != RoleOperator {
		t.Errorf("Role = %s, want operator", claims.Role)
	}
	if claims.Issuer != "voice2fire" {
		t.Errorf("Issuer = %s, want voice2fire", claims.Issuer)
	}
}

func TestGenerateTokenInvalidRole(t *testing.T) {
	svc := NewJWTService([]byte("test-secret"), time.Minute)

	if _, err := svc.GenerateToken("user-1", Role("superuser")); err == nil {
		t.Error("expected error for unknown role")
	}
}

func TestValidateExpiredToken(t *testing.T) {
	svc := NewJWTService([]byte("test-secret"), -time.Minute)

	token, err := svc.GenerateToken("user-1", RoleViewer)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	if _, err := svc.ValidateToken(token); err == nil {
		t.Error("expected error for expired token")
	}
}

func TestValidateWrongSecret(t *testing.T) {
	svc := NewJWTService([]byte("test-secret"), time.Minute)
	other := NewJWTService([]byte("other-secret"), time.Minute)

	token, err := svc.GenerateToken("user-1", RoleAdmin)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	if _, err := other.ValidateToken(token); err == nil {
		t.Error("expected error for token signed with different secret")
	}
}

func TestValidateWrongIssuer(t *testing.T) {
	svc := NewJWTService([]byte("test-secret"), time.Minute)

	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			Subject:   "user-1",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		},
		UserID: "user-1",
		Role:   RoleViewer,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := svc.ValidateToken(token); err == nil {
		t.Error("expected error for wrong issuer")
	}
}

func TestValidateGarbageToken(t *testing.T) {
	svc := NewJWTService([]byte("test-secret"), time.Minute)

	if _, err := svc.ValidateToken("not-a-jwt"); err == nil {
		t.Error("expected error for malformed token")
	}
}

func TestDefaultTTL(t *testing.T) {
	svc := NewJWTService([]byte("test-secret"), 0)
	if svc.TTL() != 15*time.Minute {
		t.Errorf("TTL = %v, want 15m", svc.TTL())
	}
}
