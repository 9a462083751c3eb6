package infra

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestJWTVerifier_RoundTrip(t *testing.T) {
	tok, err := IssueToken("s3cret", "roadside", "mech_1", "mechanic", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	v := NewJWTVerifier("s3cret", "roadside")
	got, err := v.VerifyIDToken(context.Background(), tok)
	if err != nil {
		t.Fatalf("VerifyIDToken: %v", err)
	}
	if got.UID != "mech_1" {
		t.Errorf("uid = %q", got.UID)
	}
	if got.Claims["role"] != "mechanic" {
		t.Errorf("role = %v", got.Claims["role"])
	}
}

func TestJWTVerifier_Rejects(t *testing.T) {
	v := NewJWTVerifier("s3cret", "roadside")

	wrongSecret, _ := IssueToken("other", "roadside", "u1", "", time.Hour)
	wrongIssuer, _ := IssueToken("s3cret", "someone-else", "u1", "", time.Hour)
	expired, _ := IssueToken("s3cret", "roadside", "u1", "", -time.Minute)
	noSubject, _ := IssueToken("s3cret", "roadside", "", "", time.Hour)

	cases := map[string]string{
		"garbage":      "not-a-jwt",
		"wrong secret": wrongSecret,
		"wrong issuer": wrongIssuer,
		"expired":      expired,
		"no subject":   noSubject,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := v.VerifyIDToken(context.Background(), raw); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}
