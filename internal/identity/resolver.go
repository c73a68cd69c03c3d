// Package identity converts a verified provider identity into a stable
// broker account.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/lectory/lectory-auth/internal/domain"
	"github.com/lectory/lectory-auth/internal/repository"
)

// New accounts start as students with read access.
var (
	defaultRoles       = []string{"student"}
	defaultPermissions = []string{"read"}
)

// Resolver finds or creates the account matching a provider identity.
type Resolver struct {
	accounts repository.AccountRepository
	node     *snowflake.Node
	logger   *zap.Logger
}

// NewResolver wires dependencies.
func NewResolver(accounts repository.AccountRepository, node *snowflake.Node, logger *zap.Logger) *Resolver {
	return &Resolver{accounts: accounts, node: node, logger: logger}
}

// Resolve returns the account for the email, creating it on first login.
// Concurrent first logins for the same email are safe: the insert loser
// re-reads the winner's record instead of erroring, backed by the email
// uniqueness constraint at the account store.
func (r *Resolver) Resolve(ctx context.Context, email, displayNameHint string) (domain.Account, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return domain.Account{}, fmt.Errorf("%w: empty email", domain.ErrProviderError)
	}

	account, err := r.accounts.FindByEmail(ctx, normalized)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, domain.ErrAccountNotFound) {
		return domain.Account{}, fmt.Errorf("lookup account: %w", err)
	}

	id := r.node.Generate().Int64()
	created, err := r.accounts.Insert(ctx, domain.Account{
		ID:          id,
		Email:       normalized,
		DisplayName: displayName(displayNameHint, id),
		Roles:       append([]string(nil), defaultRoles...),
		Permissions: append([]string(nil), defaultPermissions...),
	})
	if err == nil {
		r.logger.Info("account created",
			zap.Int64("account_id", created.ID),
			zap.String("email", created.Email))
		return created, nil
	}
	if errors.Is(err, domain.ErrEmailTaken) {
		return r.accounts.FindByEmail(ctx, normalized)
	}
	return domain.Account{}, fmt.Errorf("create account: %w", err)
}

func displayName(hint string, id int64) string {
	if trimmed := strings.TrimSpace(hint); trimmed != "" {
		return trimmed
	}
	return fmt.Sprintf("learner-%06d", id%1000000)
}
