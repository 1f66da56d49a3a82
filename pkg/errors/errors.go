package opschat_errors

import (
	"errors"
	"time"
)

// Common errors
var (
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrInvalidInput  = errors.New("invalid input")
	ErrRateLimited   = errors.New("rate limited")
	ErrAlreadyExists = errors.New("already exists")

	// ErrNotOwner covers both "message does not exist" and "caller is not the
	// sender". The two cases are deliberately indistinguishable so a non-owner
	// cannot probe for message existence.
	ErrNotOwner = errors.New("message not found or cannot be modified")
)

// NowPtr returns a pointer to current time
func NowPtr() *time.Time {
	now := time.Now()
	return &now
}
