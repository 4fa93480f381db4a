package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "unit-test-secret"

func signToken(t *testing.T, claims *Claims, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func TestParseBearerToken(t *testing.T) {
	cases := []struct {
		header   string
		expected string
	}{
		{"Bearer abc123", "abc123"},
		{"bearer abc123", "abc123"},
		{"Basic abc123", ""},
		{"abc123", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := ParseBearerToken(tc.header); got != tc.expected {
			t.Fatalf("header %q: expected %q, got %q", tc.header, tc.expected, got)
		}
	}
}

func TestVerifyAccessToken(t *testing.T) {
	claims := &Claims{
		StaffID:      "42",
		RestaurantID: "7",
		Role:         RoleStaff,
		Email:        "staff@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := signToken(t, claims, testSecret)

	got, err := VerifyAccessToken(token, testSecret)
	if err != nil {
		t.Fatalf("expected valid token, got %v", err)
	}
	if got.StaffID != "42" || got.RestaurantID != "7" || got.Role != RoleStaff {
		t.Fatalf("claims not preserved: %+v", got)
	}
}

func TestVerifyAccessTokenRejects(t *testing.T) {
	expired := &Claims{
		StaffID: "42",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}

	cases := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"wrong secret", signToken(t, &Claims{StaffID: "42", RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}}, "other-secret")},
		{"expired", signToken(t, expired, testSecret)},
		{"garbage", "not.a.token"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := VerifyAccessToken(tc.token, testSecret); err == nil {
				t.Fatalf("expected rejection")
			}
		})
	}
}
