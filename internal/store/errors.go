package store

import "errors"

var (
	ErrConflict            = errors.New("conflict")
	ErrNotFound            = errors.New("not found")
	ErrIdempotencyConflict = errors.New("idempotency key conflict")
	ErrCabinetNotFound     = errors.New("cabinet not found")
	ErrUserNotFound        = errors.New("user not found")
)
