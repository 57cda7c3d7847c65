// Package session keeps logged-in operator sessions.
package session

import (
	"context"
	"time"

	"pharmacy-service/internal/apperr"
)

// Session is one authenticated login
type Session struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store persists sessions with an expiry
type Store interface {
	Save(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}

// ErrNoSession is returned for unknown or expired sessions
var ErrNoSession = apperr.New(apperr.KindUnauthorized, "session", "session not found or expired")

func key(id string) string {
	return "session:" + id
}
