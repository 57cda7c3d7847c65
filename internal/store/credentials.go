package store

import (
	"context"
	"errors"

	"pharmacy-service/internal/apperr"
	"pharmacy-service/internal/models"
)

// CreateCredential stores a username with an already hashed password
func (s *Store) CreateCredential(ctx context.Context, username, passwordHash string) error {
	_, err := s.Execute(ctx, "INSERT INTO credentials (username, password) VALUES (?, ?)", username, passwordHash)
	if errors.Is(err, apperr.ErrDuplicate) {
		return apperr.Duplicate("username", "username %q already exists", username)
	}
	return err
}

// GetCredential looks a login up by exact username
func (s *Store) GetCredential(ctx context.Context, username string) (*models.Credential, error) {
	var cred models.Credential
	err := s.Get(ctx, &cred, "SELECT username, password FROM credentials WHERE username = ?", username)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.NotFound("username", "username %q does not exist", username)
	}
	if err != nil {
		return nil, err
	}
	return &cred, nil
}
