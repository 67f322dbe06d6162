// Package apperr holds the sentinel errors shared by the dictionary layers.
package apperr

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalid         = errors.New("invalid input")
	ErrUnauthenticated = errors.New("must be logged in")
	ErrInternal        = errors.New("internal error")
)
