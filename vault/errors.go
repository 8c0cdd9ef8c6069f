package vault

import "errors"

// Errors for token operations.
var (
	// ErrCorruptToken is returned when a token file cannot be decrypted or
	// parsed: the key was rotated, the file was truncated or tampered with.
	ErrCorruptToken = errors.New("token is corrupt or was encrypted with another key")

	// ErrTokenNotFound is returned by ReadToken when the user has no token.
	ErrTokenNotFound = errors.New("token not found")

	// ErrInvalidUser is returned for user names that cannot be used as a
	// directory name.
	ErrInvalidUser = errors.New("invalid user name")
)
