package auth

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mithrel/inkwell/internal/db"
	"github.com/mithrel/inkwell/internal/session"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	st, _, err := db.Open(context.Background(), "mem", "")
	require.NoError(t, err)
	signer, err := session.NewSigner("test-secret", time.Hour)
	require.NoError(t, err)
	return New(st.Users, signer, nil)
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	sess, tok, err := s.Register(ctx, " ada@example.com ", "secret1", "Ada")
	require.NoError(t, err)
	assert.NotEmpty(t, tok)
	assert.Equal(t, "ada@example.com", sess.Email)
	assert.Equal(t, "Ada", sess.Name)

	again, _, err := s.Login(ctx, "ADA@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, sess.UserID, again.UserID)

	me, err := s.Me(ctx, again)
	require.NoError(t, err)
	assert.Equal(t, "Ada", me.Name)
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	tests := []struct {
		name                  string
		email, password, user string
		want                  error
	}{
		{"bad email", "not-an-email", "secret1", "A", ErrInvalidEmail},
		{"empty email", "", "secret1", "A", ErrInvalidEmail},
		{"short password", "a@b.co", "12345", "A", ErrWeakPassword},
		{"missing name", "a@b.co", "secret1", "  ", ErrMissingName},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := s.Register(ctx, tc.email, tc.password, tc.user)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	_, _, err := s.Register(ctx, "a@b.co", "secret1", "A")
	require.NoError(t, err)
	_, _, err = s.Register(ctx, "A@B.co", "secret2", "B")
	assert.ErrorIs(t, err, ErrEmailInUse)
}

func TestLoginFailures(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	_, _, err := s.Register(ctx, "a@b.co", "secret1", "A")
	require.NoError(t, err)

	_, _, err = s.Login(ctx, "nobody@b.co", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredential)

	for i := 0; i < maxFailures; i++ {
		_, _, err = s.Login(ctx, "a@b.co", "wrong")
		assert.ErrorIs(t, err, ErrInvalidCredential)
	}
	_, _, err = s.Login(ctx, "a@b.co", "secret1")
	assert.ErrorIs(t, err, ErrTooManyRequests)

	// the window slides
	s.now = func() time.Time { return time.Now().Add(failureWindow + time.Minute) }
	_, _, err = s.Login(ctx, "a@b.co", "secret1")
	assert.NoError(t, err)
}

func TestPasswordReset(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	_, _, err := s.Register(ctx, "a@b.co", "secret1", "A")
	require.NoError(t, err)

	_, err = s.RequestReset(ctx, "missing@b.co")
	assert.ErrorIs(t, err, ErrUserNotFound)

	tok, err := s.RequestReset(ctx, "a@b.co")
	require.NoError(t, err)

	assert.ErrorIs(t, s.ConfirmReset(ctx, tok, "123"), ErrWeakPassword)
	require.NoError(t, s.ConfirmReset(ctx, tok, "newpass"))

	// spent once the password changed
	assert.ErrorIs(t, s.ConfirmReset(ctx, tok, "another"), ErrInvalidCredential)
	assert.ErrorIs(t, s.ConfirmReset(ctx, "garbage", "another"), ErrInvalidCredential)

	_, _, err = s.Login(ctx, "a@b.co", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredential)
	_, _, err = s.Login(ctx, "a@b.co", "newpass")
	assert.NoError(t, err)
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	sess, _, err := s.Register(ctx, "a@b.co", "secret1", "A")
	require.NoError(t, err)

	assert.ErrorIs(t, s.ChangePassword(ctx, sess, "nope", "secret2"), ErrWrongPassword)
	assert.ErrorIs(t, s.ChangePassword(ctx, session.Session{}, "secret1", "secret2"), session.ErrNotAuthenticated)
	require.NoError(t, s.ChangePassword(ctx, sess, "secret1", "secret2"))
	_, _, err = s.Login(ctx, "a@b.co", "secret2")
	assert.NoError(t, err)
}

func TestMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrInvalidEmail, "Please enter a valid email address."},
		{ErrUserNotFound, "No account found with this email address."},
		{ErrWrongPassword, "Incorrect password. Please try again."},
		{ErrEmailInUse, "An account with this email already exists."},
		{ErrWeakPassword, "Password should be at least 6 characters long."},
		{ErrTooManyRequests, "Too many failed attempts. Please try again later."},
		{ErrNetwork, "Network error. Please check your internet connection."},
		{ErrInvalidCredential, "Invalid email or password. Please check your credentials."},
		{fmt.Errorf("login: %w", ErrWrongPassword), "Incorrect password. Please try again."},
		{context.DeadlineExceeded, "Network error. Please check your internet connection."},
		{errors.New("disk full"), "disk full"},
		{&Error{Code: "auth/unknown"}, "auth/unknown"},
		{nil, ""},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, Message(tc.err))
	}
	assert.Equal(t, "auth/weak-password", Code(ErrWeakPassword))
	assert.Equal(t, "", Code(errors.New("x")))
}

func TestAddUserWithoutPassword(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	u, err := s.AddUser(ctx, "bob@example.com", " Bob ")
	require.NoError(t, err)
	assert.Equal(t, "Bob", u.Name)

	_, err = s.AddUser(ctx, "BOB@example.com", "Bob")
	assert.ErrorIs(t, err, ErrEmailInUse)
	_, err = s.AddUser(ctx, "nope", "x")
	assert.ErrorIs(t, err, ErrInvalidEmail)

	_, _, err = s.Login(ctx, "bob@example.com", "")
	assert.ErrorIs(t, err, ErrInvalidCredential)

	tok, err := s.RequestReset(ctx, "bob@example.com")
	require.NoError(t, err)
	require.NoError(t, s.ConfirmReset(ctx, tok, "hunter22"))
	_, _, err = s.Login(ctx, "bob@example.com", "hunter22")
	require.NoError(t, err)

	us, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, us, 1)
}
