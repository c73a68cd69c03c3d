package domain

import "time"

// Account represents an end user known to the broker. The account store is
// the only state shared across requests; RefreshToken holds the single
// currently-valid refresh token for the account, or "" when none is live.
type Account struct {
	ID           int64
	Email        string
	DisplayName  string
	Roles        []string
	Permissions  []string
	RefreshToken string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
