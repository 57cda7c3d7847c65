// Package auth signs and verifies session tokens.
package auth

import (
	"errors"
	"time"

	"pharmacy-service/internal/apperr"

	"github.com/golang-jwt/jwt/v5"
)

// Claims binds a token to a username and a server-side session
type Claims struct {
	Username  string `json:"username"`
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

// Issuer signs HS256 tokens
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a signed token and its expiry
func (i *Issuer) Issue(username, sessionID string) (string, time.Time, error) {
	now := i.now()
	expires := now.Add(i.ttl)
	claims := Claims{
		Username:  username,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, apperr.Wrap(apperr.KindInternal, err, "failed to sign token")
	}
	return signed, expires, nil
}

// Parse verifies a token and returns its claims
func (i *Issuer) Parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnauthorized, err, "invalid token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.SessionID == "" || claims.Username == "" {
		return nil, apperr.New(apperr.KindUnauthorized, "", "invalid token claims")
	}
	return claims, nil
}
