package graph

import "errors"

var (
	// ErrNotFound is returned when a path or item does not exist.
	ErrNotFound = errors.New("graph item not found")
	// ErrConflict is returned when an item with the same name already exists.
	ErrConflict = errors.New("graph item already exists")
	// ErrUnexpectedStatus is returned for any other non-success response.
	ErrUnexpectedStatus = errors.New("graph unexpected status")
	// ErrMissingCredentials is returned when tenant, client or drive are unset.
	ErrMissingCredentials = errors.New("graph credentials missing")
)
