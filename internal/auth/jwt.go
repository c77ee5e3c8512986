package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// NewAccessToken signs a short-lived token embedding the user's id and role.
func NewAccessToken(secret, issuer string, ttl time.Duration, claims Claims) (string, error) {
	return sign(secret, issuer, ttl, claims)
}

// NewRefreshToken signs a longer-lived token with the same payload shape.
// Access and refresh tokens use independent secrets so that compromise of
// one does not invalidate the other.
func NewRefreshToken(secret, issuer string, ttl time.Duration, claims Claims) (string, error) {
	return sign(secret, issuer, ttl, claims)
}

func sign(secret, issuer string, ttl time.Duration, claims Claims) (string, error) {
	now := time.Now().UTC()
	// The jti makes every issued token unique. Timestamps truncate to
	// seconds, so without it two tokens signed for the same user in the
	// same second would be byte-identical, and rotating a token into its
	// own duplicate would delete the only stored copy.
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   claims.UserID,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken verifies signature and expiry and returns the claims.
func ParseToken(secret, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}
