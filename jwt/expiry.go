package jwt

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Expiry returns the exp claim of token without verifying its signature.
// ok is false for opaque tokens and for JWTs that carry no exp. The result is
// only a scheduling hint; never use it to authorize anything.
func Expiry(token string) (time.Time, bool) {
	if strings.Count(token, ".") != 2 {
		return time.Time{}, false
	}

	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
