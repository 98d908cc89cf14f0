package session

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/apperr"
	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/models"
)

func mintToken(t *testing.T, sub, role string, exp time.Time) string {
	t.Helper()
	claims := Claims{
		Type: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func TestDecodeToken(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	raw := mintToken(t, "a@b.com", "student", exp)

	id, err := DecodeToken(raw)
	if err != nil {
		t.Fatalf("DecodeToken failed: %v", err)
	}
	if id.Subject != "a@b.com" || id.Role != models.RoleStudent {
		t.Errorf("unexpected identity: %+v", id)
	}
	if !id.TokenExpiry.Equal(exp) {
		t.Errorf("expected expiry %v, got %v", exp, id.TokenExpiry)
	}
}

func TestDecodeToken_Malformed(t *testing.T) {
	exp := time.Now().Add(time.Hour)
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"garbage", "not-a-token"},
		{"two segments", "abc.def"},
		{"no subject", mintToken(t, "", "admin", exp)},
		{"unknown role", mintToken(t, "a@b.com", "instructor", exp)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeToken(tt.raw)
			if !errors.Is(err, apperr.ErrMalformed) {
				t.Errorf("expected Malformed, got %v", err)
			}
		})
	}
}

func TestDecodeToken_NoExpiry(t *testing.T) {
	claims := Claims{Type: "admin", RegisteredClaims: jwt.RegisteredClaims{Subject: "root@x.com"}}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("k"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DecodeToken(raw); !errors.Is(err, apperr.ErrMalformed) {
		t.Errorf("expected Malformed, got %v", err)
	}
}

func TestDecodeToken_ExpiredStillDecodes(t *testing.T) {
	raw := mintToken(t, "a@b.com", "admin", time.Now().Add(-time.Hour))
	id, err := DecodeToken(raw)
	if err != nil {
		t.Fatalf("expired token should decode, got %v", err)
	}
	if !id.Expired(time.Now()) {
		t.Error("expected identity to report expired")
	}
}
