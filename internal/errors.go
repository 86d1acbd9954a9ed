package storefront

import "errors"

// Sentinel errors for the storefront domain.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrBadRequest   = errors.New("bad request")
	ErrOutOfStock   = errors.New("insufficient stock")
	ErrRateLimited  = errors.New("rate limited")
)
