package repository

import (
	"context"

	"github.com/lectory/lectory-auth/internal/domain"
)

// AccountRepository exposes persistence for broker accounts. The refresh
// token column is the one piece of cross-request shared state with a real
// consistency requirement, so its update is conditioned.
type AccountRepository interface {
	FindByEmail(ctx context.Context, email string) (domain.Account, error)
	FindByID(ctx context.Context, id int64) (domain.Account, error)
	// Insert persists a new account. A duplicate email fails with
	// domain.ErrEmailTaken; racing creators re-read the winner's record.
	Insert(ctx context.Context, account domain.Account) (domain.Account, error)
	// UpdateRefreshToken replaces the stored refresh token only if it still
	// equals expectedOld (compare-and-swap). Returns false when the stored
	// value changed underneath the caller, so two concurrent rotations of
	// the same token cannot both succeed.
	UpdateRefreshToken(ctx context.Context, accountID int64, expectedOld, next string) (bool, error)
}
