package errors

import (
	"errors"
	"fmt"
)

// Common error types for the login server
var (
	// User store errors
	ErrUserNotFound    = errors.New("user not found")
	ErrLoginNameTaken  = errors.New("login name already taken")
	ErrInvalidUser     = errors.New("invalid user")
	ErrInvalidPageSize = errors.New("invalid page size")

	// Session store errors
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionExists    = errors.New("session already exists")
	ErrSessionExpired   = errors.New("session expired")
	ErrRotationConflict = errors.New("session rotated concurrently")

	// Token errors
	ErrTokenGeneration = errors.New("token generation failed")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}
