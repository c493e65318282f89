package chat

import "errors"

// Defaults for the process-wide limits.
const (
	DefaultHistoryLimit      = 100
	DefaultMaxUsernameLength = 20
	DefaultRoom              = "general"
)

var (
	// ErrMalformedFrame is returned for frames that are not a JSON object
	// with a string "type" field.
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrUnknownKind is returned for well-formed frames of an unsupported kind.
	ErrUnknownKind = errors.New("unknown message kind")
	// ErrInvalidFrame is returned when a known kind fails schema validation.
	ErrInvalidFrame = errors.New("invalid frame")
	// ErrUsernameTooLong is returned when a rename exceeds the length limit.
	ErrUsernameTooLong = errors.New("username too long")
)
