package store

import "errors"

// ErrVersionConflict is returned by UpdateGateForm when the stored version
// no longer matches the one the caller read.
var ErrVersionConflict = errors.New("gate form was modified concurrently; reload and retry")

// ErrAlreadyExists is returned when creating a record whose key is taken.
var ErrAlreadyExists = errors.New("already exists")
