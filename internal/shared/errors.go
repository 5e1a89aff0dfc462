package shared

import "errors"

var (
	// ErrNotFound is returned by repositories when no row matches.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials covers unknown email, inactive user and wrong password alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
