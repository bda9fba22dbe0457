package intake

import "errors"

var (
	// ErrInvalidInput rejects a malformed upload before a job is created.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnsupportedType rejects file types the extraction engine cannot read.
	ErrUnsupportedType = errors.New("unsupported document type")
)
