// Package auth registers users, verifies credentials and runs the password
// reset flow on top of the user store.
package auth

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/bcrypt"

	"github.com/mithrel/inkwell/internal/db"
	"github.com/mithrel/inkwell/internal/session"
	"github.com/mithrel/inkwell/pkg/api"
)

const (
	MinPasswordLen = 6

	maxFailures   = 5
	failureWindow = 15 * time.Minute
	resetTTL      = 30 * time.Minute
)

// Service implements the account operations.
type Service struct {
	users  db.Users
	signer *session.Signer
	log    *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	failures map[string][]time.Time
}

func New(users db.Users, signer *session.Signer, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{users: users, signer: signer, log: log, now: time.Now, failures: map[string][]time.Time{}}
}

func validateEmail(email string) error {
	if err := validation.Validate(email, validation.Required, is.EmailFormat); err != nil {
		return ErrInvalidEmail
	}
	return nil
}

func validatePassword(pw string) error {
	if err := validation.Validate(pw, validation.Required, validation.RuneLength(MinPasswordLen, 0)); err != nil {
		return ErrWeakPassword
	}
	return nil
}

func fingerprint(hash string) string {
	sum := blake3.Sum256([]byte(hash))
	return hex.EncodeToString(sum[:8])
}

// Register creates an account and signs it in.
func (s *Service) Register(ctx context.Context, email, password, name string) (session.Session, string, error) {
	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)
	if err := validateEmail(email); err != nil {
		return session.Session{}, "", err
	}
	if err := validatePassword(password); err != nil {
		return session.Session{}, "", err
	}
	if err := validation.Validate(name, validation.Required); err != nil {
		return session.Session{}, "", ErrMissingName
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return session.Session{}, "", fmt.Errorf("hash password: %w", err)
	}
	now := s.now().UTC()
	u, err := s.users.CreateUser(ctx, api.User{
		ID:           api.NewUserID(),
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if errors.Is(err, db.ErrConflict) {
		return session.Session{}, "", ErrEmailInUse
	}
	if err != nil {
		return session.Session{}, "", fmt.Errorf("create user: %w", err)
	}
	s.log.Info("user registered", "user", u.ID)
	return s.issue(u)
}

// AddUser creates an account without a password. Such an account cannot
// sign in until a password is set through the reset flow.
func (s *Service) AddUser(ctx context.Context, email, name string) (api.User, error) {
	email = strings.TrimSpace(email)
	if err := validateEmail(email); err != nil {
		return api.User{}, err
	}
	now := s.now().UTC()
	u, err := s.users.CreateUser(ctx, api.User{
		ID:        api.NewUserID(),
		Email:     email,
		Name:      strings.TrimSpace(name),
		CreatedAt: now,
		UpdatedAt: now,
	})
	if errors.Is(err, db.ErrConflict) {
		return api.User{}, ErrEmailInUse
	}
	if err != nil {
		return api.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// ListUsers returns every account, newest first.
func (s *Service) ListUsers(ctx context.Context) ([]api.User, error) {
	us, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return us, nil
}

// Login verifies credentials. Unknown emails and wrong passwords are
// reported alike as ErrInvalidCredential.
func (s *Service) Login(ctx context.Context, email, password string) (session.Session, string, error) {
	email = strings.TrimSpace(email)
	if err := validateEmail(email); err != nil {
		return session.Session{}, "", err
	}
	if s.throttled(email) {
		return session.Session{}, "", ErrTooManyRequests
	}
	u, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, db.ErrNotFound) {
		s.recordFailure(email)
		return session.Session{}, "", ErrInvalidCredential
	}
	if err != nil {
		return session.Session{}, "", fmt.Errorf("lookup user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		s.recordFailure(email)
		return session.Session{}, "", ErrInvalidCredential
	}
	s.clearFailures(email)
	return s.issue(u)
}

func (s *Service) issue(u api.User) (session.Session, string, error) {
	sess := session.Session{UserID: u.ID, Email: u.Email, Name: u.Name}
	tok, err := s.signer.Issue(sess)
	if err != nil {
		return session.Session{}, "", fmt.Errorf("issue token: %w", err)
	}
	return sess, tok, nil
}

// Me returns the account behind sess.
func (s *Service) Me(ctx context.Context, sess session.Session) (api.User, error) {
	if err := session.Require(sess); err != nil {
		return api.User{}, err
	}
	u, err := s.users.GetUser(ctx, sess.UserID)
	if errors.Is(err, db.ErrNotFound) {
		return api.User{}, ErrUserNotFound
	}
	return u, err
}

// ChangePassword replaces the password of a signed-in user.
func (s *Service) ChangePassword(ctx context.Context, sess session.Session, current, next string) error {
	u, err := s.Me(ctx, sess)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)) != nil {
		return ErrWrongPassword
	}
	return s.setPassword(ctx, u.ID, next)
}

// RequestReset returns a reset token for email. There is no mail delivery;
// callers hand the token to the user out of band.
func (s *Service) RequestReset(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(email)
	if err := validateEmail(email); err != nil {
		return "", err
	}
	u, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, db.ErrNotFound) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup user: %w", err)
	}
	tok, err := s.signer.IssueReset(u.ID, fingerprint(u.PasswordHash), resetTTL)
	if err != nil {
		return "", fmt.Errorf("issue reset token: %w", err)
	}
	s.log.Info("password reset requested", "user", u.ID)
	return tok, nil
}

// ConfirmReset sets a new password using a token from RequestReset. A token
// is spent once the password changes.
func (s *Service) ConfirmReset(ctx context.Context, token, password string) error {
	uid, fp, err := s.signer.ParseReset(token)
	if err != nil {
		return ErrInvalidCredential
	}
	u, err := s.users.GetUser(ctx, uid)
	if errors.Is(err, db.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if fingerprint(u.PasswordHash) != fp {
		return ErrInvalidCredential
	}
	if err := s.setPassword(ctx, u.ID, password); err != nil {
		return err
	}
	s.clearFailures(u.Email)
	return nil
}

func (s *Service) setPassword(ctx context.Context, userID, password string) error {
	if err := validatePassword(password); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdateUserPassword(ctx, userID, string(hash)); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (s *Service) throttled(email string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(email)
	cutoff := s.now().Add(-failureWindow)
	kept := s.failures[key][:0]
	for _, t := range s.failures[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	s.failures[key] = kept
	return len(kept) >= maxFailures
}

func (s *Service) recordFailure(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(email)
	s.failures[key] = append(s.failures[key], s.now())
}

func (s *Service) clearFailures(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, strings.ToLower(email))
}
