package testsupport

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token signs an HS256 bearer token for userID with the test secret.
func Token(t testing.TB, userID int64) string {
	t.Helper()
	return SignToken(t, TestJWTSecret, userID, time.Hour)
}

// SignToken signs a token with an explicit secret and lifetime. A negative
// ttl yields an already expired token.
func SignToken(t testing.TB, secret string, userID int64, ttl time.Duration) string {
	t.Helper()
	now := time.Now()
	claims := jwt.MapClaims{
		"id":       userID,
		"username": "user",
		"role_id":  RoleEmployee,
		"iat":      now.Unix(),
		"exp":      now.Add(ttl).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
