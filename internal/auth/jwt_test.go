package auth

import (
	"errors"
	"testing"
	"time"
)

func TestAuthenticatorRequiresSecret(t *testing.T) {
	if _, err := NewAuthenticator("", time.Hour); !errors.Is(err, ErrMissingSecret) {
		t.Fatalf("got %v, want ErrMissingSecret", err)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	a, err := NewAuthenticator("test-secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	token, expiresAt, err := a.GenerateUserToken("user-1", "cozy@example.com")
	if err != nil {
		t.Fatalf("GenerateUserToken: %v", err)
	}
	if time.Until(expiresAt) > time.Hour || time.Until(expiresAt) < 55*time.Minute {
		t.Fatalf("expiry %v not within the configured TTL", expiresAt)
	}

	claims, err := a.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.UserID != "user-1" || claims.Email != "cozy@example.com" {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	a, _ := NewAuthenticator("secret-one", time.Hour)
	b, _ := NewAuthenticator("secret-two", time.Hour)

	token, _, err := a.GenerateUserToken("user-1", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.ValidateToken(token); err == nil {
		t.Fatal("token signed with another secret was accepted")
	}
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	a, _ := NewAuthenticator("test-secret", time.Nanosecond)
	token, _, err := a.GenerateUserToken("user-1", "")
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(10 * time.Millisecond)
	if _, err := a.ValidateToken(token); err == nil {
		t.Fatal("expired token was accepted")
	}
}
