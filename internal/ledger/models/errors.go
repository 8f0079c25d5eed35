package models

import "errors"

var (
	// ErrPersistence marks a failed ledger write: store unavailable or an
	// id/hash uniqueness violation.
	ErrPersistence = errors.New("ledger persistence failure")

	// ErrSerialization marks a payload that cannot be canonically encoded.
	// It is raised before the store is touched.
	ErrSerialization = errors.New("ledger serialization failure")
)
