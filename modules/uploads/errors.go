package uploads

import "errors"

// Sentinel errors for upload operations.
var (
	// ErrBlobNotFound is returned when no upload exists under the requested name.
	ErrBlobNotFound = errors.New("upload not found")

	// ErrInvalidName is returned for names that are not a plain file name.
	ErrInvalidName = errors.New("invalid upload name")

	// ErrEmptyFile is returned when an upload carries no data.
	ErrEmptyFile = errors.New("empty file")
)
