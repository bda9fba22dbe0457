package jobs

import "errors"

var (
	ErrNotFound = errors.New("not found")
	// ErrTerminal is returned for any mutation of a job already in a
	// terminal state. Terminal jobs are read-only.
	ErrTerminal = errors.New("job is terminal")
)
