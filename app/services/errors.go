package services

import (
	"errors"

	"github.com/shashiranjanraj/orderly/app/policies"
)

// Every service error wraps exactly one of these. The HTTP layer maps them
// to status codes with errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = policies.ErrForbidden
	ErrUnauthorized       = errors.New("unauthorized")
	ErrConflict           = errors.New("conflict")
	ErrBadRequest         = errors.New("bad request")
	ErrInvalidCredentials = errors.New("invalid credentials")
)
