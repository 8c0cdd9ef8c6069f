package session

import "errors"

// Errors returned by Resolver.
var (
	ErrNoUserSpecified      = errors.New("no user specified and no default user set")
	ErrUserNotAuthenticated = errors.New("user is not authenticated")
	ErrInvalidCredential    = errors.New("stored credential is invalid")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrSessionExpired       = errors.New("session expired")
)
