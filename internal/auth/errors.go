package auth

import (
	"context"
	"errors"
	"net"
)

// Error is an auth failure identified by a stable provider-style code.
type Error struct{ Code string }

func (e *Error) Error() string { return e.Code }

var (
	ErrInvalidEmail      = &Error{"auth/invalid-email"}
	ErrUserNotFound      = &Error{"auth/user-not-found"}
	ErrWrongPassword     = &Error{"auth/wrong-password"}
	ErrEmailInUse        = &Error{"auth/email-already-in-use"}
	ErrWeakPassword      = &Error{"auth/weak-password"}
	ErrTooManyRequests   = &Error{"auth/too-many-requests"}
	ErrNetwork           = &Error{"auth/network-request-failed"}
	ErrInvalidCredential = &Error{"auth/invalid-credential"}
	ErrMissingName       = &Error{"auth/missing-name"}
)

var messages = map[string]string{
	ErrInvalidEmail.Code:      "Please enter a valid email address.",
	ErrUserNotFound.Code:      "No account found with this email address.",
	ErrWrongPassword.Code:     "Incorrect password. Please try again.",
	ErrEmailInUse.Code:        "An account with this email already exists.",
	ErrWeakPassword.Code:      "Password should be at least 6 characters long.",
	ErrTooManyRequests.Code:   "Too many failed attempts. Please try again later.",
	ErrNetwork.Code:           "Network error. Please check your internet connection.",
	ErrInvalidCredential.Code: "Invalid email or password. Please check your credentials.",
	ErrMissingName.Code:       "Please enter your name.",
}

// Message maps err to the text shown to the user. Unknown errors fall back
// to their own message.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		if m, ok := messages[ae.Code]; ok {
			return m
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return messages[ErrNetwork.Code]
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return "An unexpected error occurred. Please try again."
}

// Code returns the auth code carried by err, or "".
func Code(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}
