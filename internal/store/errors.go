package store

import "errors"

// ErrNotFound is returned by find-by-id/name lookups that match nothing.
var ErrNotFound = errors.New("store: not found")

// ErrAlreadyExists is returned by createUnique when a row already occupies
// the unique slot; callers treat this as "no-op", not a hard failure.
var ErrAlreadyExists = errors.New("store: already exists")
