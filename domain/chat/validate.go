package chat

import (
	"errors"
	"unicode/utf8"
)

// Validation limits.
const (
	MaxUsernameLength = 50
	MaxRoomNameLength = 100
	MaxMessageLength  = 5000
)

// Validation errors.
var (
	ErrUsernameEmpty   = errors.New("username cannot be empty")
	ErrUsernameTooLong = errors.New("username exceeds maximum length")
	ErrUsernameInvalid = errors.New("username contains invalid characters")
	ErrRoomNameEmpty   = errors.New("room name cannot be empty")
	ErrRoomNameTooLong = errors.New("room name exceeds maximum length")
	ErrRoomNameInvalid = errors.New("room name contains invalid characters")
	ErrMessageEmpty    = errors.New("message content cannot be empty")
	ErrMessageTooLong  = errors.New("message exceeds maximum length")
	ErrMessageInvalid  = errors.New("message contains invalid characters")
)

// ValidateUsername validates a username.
func ValidateUsername(username string) error {
	return validate(username, MaxUsernameLength, ErrUsernameEmpty, ErrUsernameTooLong, ErrUsernameInvalid)
}

// ValidateRoomName validates a room identifier.
func ValidateRoomName(room string) error {
	return validate(room, MaxRoomNameLength, ErrRoomNameEmpty, ErrRoomNameTooLong, ErrRoomNameInvalid)
}

// ValidateMessage validates message content.
func ValidateMessage(content string) error {
	return validate(content, MaxMessageLength, ErrMessageEmpty, ErrMessageTooLong, ErrMessageInvalid)
}

func validate(s string, max int, errEmpty, errTooLong, errInvalid error) error {
	if s == "" {
		return errEmpty
	}
	if len(s) > max {
		return errTooLong
	}
	if !utf8.ValidString(s) {
		return errInvalid
	}
	return nil
}
