package service

import (
	"errors"
	"fmt"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrDuplicateUser      = errors.New("duplicate user")
	ErrInvalidCredentials = errors.New("Invalid credentials")
	ErrInvalidToken       = errors.New("Invalid token")
	ErrTokenExpired       = errors.New("Token has expired")
	ErrTokenRevoked       = errors.New("Token has been revoked")
	ErrTokenRequired      = errors.New("Authentication token required")
	ErrUserInactive       = errors.New("User not found or inactive")
	ErrAccountNotVerified = errors.New("Email not verified. Please check your email for the verification link.")
	ErrVerificationEmail  = errors.New("failed to send verification email")
)

// ValidationError is malformed or missing input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// AuthenticationError is any failure to establish who the caller is. Message
// is safe to return to the caller; Err carries the matching sentinel.
type AuthenticationError struct {
	Message string
	Err     error
}

func (e *AuthenticationError) Error() string {
	return e.Message
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

func newAuthError(sentinel error) *AuthenticationError {
	return &AuthenticationError{Message: sentinel.Error(), Err: sentinel}
}

// DuplicateUserError is a uniqueness violation on a user field.
type DuplicateUserError struct {
	Field string
}

func (e *DuplicateUserError) Error() string {
	return fmt.Sprintf("A user with this %s already exists", e.Field)
}

func (e *DuplicateUserError) Is(target error) bool {
	return target == ErrDuplicateUser
}

// ConfigurationError is raised while constructing a component from bad settings.
type ConfigurationError struct {
	Setting string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration for %s: %s", e.Setting, e.Reason)
}
