package storage

import "errors"

// Errors returned by the run, condition stat and feature row stores.
// Results are written once per run and never updated.
var (
	// ErrNotFound is returned when no run or stat matches the requested key.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when a run ID, a (run_id, condition, horizon) stat
	// or a (series, timestamp_ms) feature row is already stored.
	ErrDuplicateKey = errors.New("duplicate key: results are written once per run")

	// ErrInvalidInput is returned for a record missing part of its key,
	// or a stat referring to an unknown run.
	ErrInvalidInput = errors.New("invalid input")
)
