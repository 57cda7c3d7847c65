package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"pharmacy-service/internal/apperr"
	"pharmacy-service/internal/auth"
	"pharmacy-service/internal/session"
	"pharmacy-service/internal/store"
	"pharmacy-service/internal/util"
	"pharmacy-service/internal/validate"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// AccountService manages operator accounts and their sessions
type AccountService struct {
	store    *store.Store
	sessions session.Store
	issuer   *auth.Issuer
	logger   *zap.Logger
}

// NewAccountService creates a new account service
func NewAccountService(store *store.Store, sessions session.Store, issuer *auth.Issuer) *AccountService {
	return &AccountService{
		store:    store,
		sessions: sessions,
		issuer:   issuer,
		logger:   util.GetLogger(),
	}
}

// Credentials is the body of account and login requests
type Credentials struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries the bearer token of a new session
type LoginResponse struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CreateAccount rejects an existing username first, then a weak password
func (s *AccountService) CreateAccount(ctx context.Context, username, password string) error {
	ctx, span := util.StartSpan(ctx, "AccountService.CreateAccount")
	defer span.End()

	username = strings.TrimSpace(username)
	if err := validate.Required("username", username); err != nil {
		return err
	}

	_, err := s.store.GetCredential(ctx, username)
	switch {
	case err == nil:
		return apperr.Duplicate("username", "username %q already exists", username)
	case !errors.Is(err, apperr.ErrNotFound):
		return err
	}

	if err := validate.PasswordStrength(password); err != nil {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, err, "unable to secure password")
	}

	if err := s.store.CreateCredential(ctx, username, string(hashed)); err != nil {
		return err
	}

	s.logger.Info("Account created", zap.String("username", username))
	return nil
}

// ValidateLogin reports whether username and password match a stored account.
// Usernames match exactly.
func (s *AccountService) ValidateLogin(ctx context.Context, username, password string) (bool, error) {
	cred, err := s.store.GetCredential(ctx, username)
	if errors.Is(err, apperr.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return bcrypt.CompareHashAndPassword([]byte(cred.Password), []byte(password)) == nil, nil
}

// Login opens a session and returns a token bound to it
func (s *AccountService) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	ctx, span := util.StartSpan(ctx, "AccountService.Login")
	defer span.End()

	ok, err := s.ValidateLogin(ctx, username, password)
	if err != nil {
		util.LoginAttemptsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if !ok {
		util.LoginAttemptsTotal.WithLabelValues("rejected").Inc()
		s.logger.Info("Login rejected", zap.String("username", username))
		return nil, apperr.New(apperr.KindUnauthorized, "", "invalid username or password")
	}

	sessionID := uuid.New().String()
	token, expires, err := s.issuer.Issue(username, sessionID)
	if err != nil {
		return nil, err
	}

	sess := &session.Session{
		ID:        sessionID,
		Username:  username,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: expires,
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}

	util.LoginAttemptsTotal.WithLabelValues("accepted").Inc()
	s.logger.Info("Login accepted", zap.String("username", username), zap.String("session_id", sessionID))

	return &LoginResponse{Token: token, Username: username, ExpiresAt: expires}, nil
}

// Authenticate resolves a bearer token to its live session
func (s *AccountService) Authenticate(ctx context.Context, token string) (*session.Session, error) {
	claims, err := s.issuer.Parse(token)
	if err != nil {
		return nil, err
	}

	sess, err := s.sessions.Get(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if sess.Username != claims.Username {
		return nil, apperr.New(apperr.KindUnauthorized, "", "token does not match session")
	}
	return sess, nil
}

// Logout ends the session behind a token
func (s *AccountService) Logout(ctx context.Context, token string) error {
	claims, err := s.issuer.Parse(token)
	if err != nil {
		return err
	}
	if err := s.sessions.Delete(ctx, claims.SessionID); err != nil {
		return err
	}
	s.logger.Info("Logged out", zap.String("username", claims.Username), zap.String("session_id", claims.SessionID))
	return nil
}
