package domain

import "errors"

var (
	// ErrInvalidProvider indicates an unknown OAuth provider name.
	ErrInvalidProvider = errors.New("auth: unknown provider")
	// ErrProviderDenied indicates the user declined at the external provider.
	ErrProviderDenied = errors.New("auth: provider denied")
	// ErrProviderError indicates the provider exchange call failed. The
	// client may retry by re-initiating the flow; the broker never retries.
	ErrProviderError = errors.New("auth: provider exchange failed")
	// ErrInvalidCode indicates an unknown, expired, or already consumed
	// pairing code.
	ErrInvalidCode = errors.New("auth: invalid pairing code")
	// ErrInvalidToken indicates a malformed, expired, or wrong-type token.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrTokenRevoked indicates a well-formed refresh token that no longer
	// matches stored state. Possible token theft; the caller must force a
	// full re-authentication.
	ErrTokenRevoked = errors.New("auth: refresh token revoked")
	// ErrUnknownCorrelation indicates a status query for a correlation id
	// never created or already reaped.
	ErrUnknownCorrelation = errors.New("auth: unknown correlation id")
	// ErrAccountNotFound signals a lookup miss at the account store.
	ErrAccountNotFound = errors.New("auth: account not found")
	// ErrEmailTaken signals a uniqueness violation on insert.
	ErrEmailTaken = errors.New("auth: email already registered")
)
