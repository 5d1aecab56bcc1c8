package store

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// Sentinel errors for store operations.
var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateKey is returned when an insert violates a unique constraint.
	ErrDuplicateKey = errors.New("duplicate key")
)

// isDuplicateKey reports whether err is a unique constraint violation.
// The string match covers drivers that do not translate errors.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
