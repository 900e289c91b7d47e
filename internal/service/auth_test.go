package service

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestTokenRoundTrip(t *testing.T) {
	svc, err := NewTokenService("s3cret")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	token, err := svc.IssueToken("t1", "dashboard", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	got, err := svc.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if got.Tenant != "t1" || got.Subject != "dashboard" {
		t.Fatalf("claims = %+v", got)
	}
}

func TestTokenRejected(t *testing.T) {
	svc, _ := NewTokenService("s3cret")
	other, _ := NewTokenService("other")

	foreign, _ := other.IssueToken("t1", "", 0)
	expired, _ := svc.IssueToken("t1", "", -time.Minute)
	noTenant, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "x"}).SignedString([]byte("s3cret"))

	for name, token := range map[string]string{"foreign": foreign, "expired": expired, "no-tenant": noTenant, "garbage": "abc"} {
		if _, err := svc.ParseToken(token); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("%s: expected ErrUnauthorized, got %v", name, err)
		}
	}
}

func TestNewTokenServiceRequiresSecret(t *testing.T) {
	if _, err := NewTokenService(" "); !errors.Is(err, ErrMisconfigured) {
		t.Fatalf("expected ErrMisconfigured, got %v", err)
	}
}
