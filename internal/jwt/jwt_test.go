package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestValidateAccessToken_Valid(t *testing.T) {
	service := NewService("test-secret-key")

	token, err := service.GenerateAccessToken(12345, "device-123", time.Hour)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	claims, err := service.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("Failed to validate access token: %v", err)
	}
	if claims.UserID != 12345 {
		t.Errorf("Expected UserID 12345, got %d", claims.UserID)
	}
	if claims.DeviceID != "device-123" {
		t.Errorf("Expected DeviceID device-123, got %s", claims.DeviceID)
	}
}

func TestValidateAccessToken_Expired(t *testing.T) {
	service := NewService("test-secret-key")

	token, err := service.GenerateAccessToken(12345, "device-123", -time.Minute)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	if _, err := service.ValidateAccessToken(token); err != ErrTokenExpired {
		t.Errorf("Expected ErrTokenExpired, got %v", err)
	}
}

func TestValidateAccessToken_WrongSecret(t *testing.T) {
	token, err := NewService("secret-a").GenerateAccessToken(1, "d", time.Hour)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	if _, err := NewService("secret-b").ValidateAccessToken(token); err != ErrTokenInvalid {
		t.Errorf("Expected ErrTokenInvalid, got %v", err)
	}
}

func TestValidateAccessToken_RefreshTokenRejected(t *testing.T) {
	claims := &Claims{
		UserID:    1,
		TokenType: "refresh",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret-key"))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}

	if _, err := NewService("test-secret-key").ValidateAccessToken(token); err != ErrTokenInvalid {
		t.Errorf("Expected ErrTokenInvalid, got %v", err)
	}
}

func TestValidateAccessToken_Garbage(t *testing.T) {
	if _, err := NewService("k").ValidateAccessToken("not-a-token"); err != ErrTokenInvalid {
		t.Errorf("Expected ErrTokenInvalid, got %v", err)
	}
}
