package storage

import "errors"

// Storage errors shared by all backends.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when attempting to insert a record with a
	// key that already exists (agent ID, external address, account address,
	// fill ID).
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrNoFreeAccount is returned by claim operations when every pool
	// account is already assigned. Retryable: capacity may be provisioned
	// later.
	ErrNoFreeAccount = errors.New("no free pool account")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)
