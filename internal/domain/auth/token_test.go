package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestGenerateAndParseToken(t *testing.T) {
	token, err := GenerateToken("secret", Claims{UserID: "u1", Plan: "pro", Household: []string{"u2"}}, time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := ParseToken("secret", token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	user := claims.User()
	if user.UserID != "u1" || user.Plan != "pro" {
		t.Fatalf("unexpected user: %+v", user)
	}
	if !user.CanRead("u1") || !user.CanRead("u2") || user.CanRead("u3") {
		t.Fatalf("unexpected household access for %+v", user)
	}
}

func TestParseTokenRejects(t *testing.T) {
	valid, err := GenerateToken("secret", Claims{UserID: "u1"}, time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	expired, err := GenerateToken("secret", Claims{UserID: "u1"}, -time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	anonymous, err := GenerateToken("secret", Claims{Plan: "free"}, time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "u1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}

	tests := []struct {
		name   string
		secret string
		token  string
	}{
		{name: "wrong secret", secret: "other", token: valid},
		{name: "expired", secret: "secret", token: expired},
		{name: "no user", secret: "secret", token: anonymous},
		{name: "alg none", secret: "secret", token: none},
		{name: "garbage", secret: "secret", token: "not-a-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseToken(tt.secret, tt.token); err == nil {
				t.Fatal("expected error")
			}
		})
	}

	if _, err := ParseToken("secret", anonymous); !errors.Is(err, ErrMissingSubject) {
		t.Fatalf("expected ErrMissingSubject, got %v", err)
	}
}
