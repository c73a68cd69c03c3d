package domain

import "time"

// LoginStatus enumerates the states of an in-flight login attempt.
type LoginStatus string

const (
	LoginPending LoginStatus = "pending"
	LoginSuccess LoginStatus = "success"
	LoginDenied  LoginStatus = "denied"
	LoginExpired LoginStatus = "expired"
)

// Terminal reports whether no further transition is accepted.
func (s LoginStatus) Terminal() bool {
	return s == LoginSuccess || s == LoginDenied || s == LoginExpired
}

// LoginAttempt tracks one login keyed by a client-chosen correlation id.
// AccessToken and RefreshToken are set only once Status is LoginSuccess.
type LoginAttempt struct {
	CorrelationID string      `json:"correlation_id"`
	Status        LoginStatus `json:"status"`
	AccessToken   string      `json:"access_token,omitempty"`
	RefreshToken  string      `json:"refresh_token,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	ExpiresAt     time.Time   `json:"expires_at"`
}

// PairingCode maps a short-lived numeric code to a login attempt.
type PairingCode struct {
	Code          string    `json:"code"`
	CorrelationID string    `json:"correlation_id"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// TokenPair bundles a freshly issued access/refresh pair.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}
