package storage

import "errors"

var (
	// ErrNotFound is returned for a missing referral or before the first snapshot save.
	ErrNotFound = errors.New("storage: not found")

	// ErrDuplicateKey is returned when an event seq or a holder's referral
	// is written twice. Both tables are append-only.
	ErrDuplicateKey = errors.New("storage: duplicate key")

	// ErrInvalidInput is returned for nil records, zero seqs and self-referrals.
	ErrInvalidInput = errors.New("storage: invalid input")
)
