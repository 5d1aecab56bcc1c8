package directory

import "errors"

// ErrUserNotFound is returned by Lookup when no user has the given username.
var ErrUserNotFound = errors.New("user not found")
