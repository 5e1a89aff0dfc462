package auth

import "errors"

var (
	// ErrMissingCredential means no usable bearer token was sent.
	ErrMissingCredential = errors.New("auth: missing bearer credential")
	// ErrTokenMalformed covers parse, signature and algorithm failures.
	ErrTokenMalformed = errors.New("auth: token malformed")
	// ErrTokenExpired means the token is past its expiry.
	ErrTokenExpired = errors.New("auth: token expired")
	// ErrTokenRevoked means the user's token version moved past the token's.
	ErrTokenRevoked = errors.New("auth: token revoked")
	// ErrUserUnavailable means the subject no longer exists or is inactive.
	ErrUserUnavailable = errors.New("auth: user not found or inactive")
	// ErrCacheMiss is returned by IdentityCache.Get when nothing is cached.
	ErrCacheMiss = errors.New("auth: identity cache miss")
	// ErrEmptySecret rejects signing without a secret.
	ErrEmptySecret = errors.New("auth: signing secret is empty")
	// ErrMisconfiguredSecret flags an empty or development secret outside development.
	ErrMisconfiguredSecret = errors.New("auth: signing secret is empty or the development default")
)

// Envelope codes for authentication failures.
const (
	CodeTokenInvalid       = "TOKEN_INVALID"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeTokenRevoked       = "TOKEN_REVOKED"
	CodeUserInactive       = "USER_INACTIVE"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
)
