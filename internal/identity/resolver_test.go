package identity_test

import (
	"context"
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lectory/lectory-auth/internal/domain"
	"github.com/lectory/lectory-auth/internal/identity"
	"github.com/lectory/lectory-auth/internal/repository"
)

func newTestResolver(t *testing.T) (*identity.Resolver, *repository.MemoryAccountRepo) {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	repo := repository.NewMemoryAccountRepo()
	return identity.NewResolver(repo, node, zap.NewNop()), repo
}

func TestResolveCreatesAccountWithDefaults(t *testing.T) {
	resolver, _ := newTestResolver(t)

	account, err := resolver.Resolve(context.Background(), "alice@example.com", "Alice")
	require.NoError(t, err)
	require.NotZero(t, account.ID)
	require.Equal(t, "alice@example.com", account.Email)
	require.Equal(t, "Alice", account.DisplayName)
	require.Equal(t, []string{"student"}, account.Roles)
	require.Equal(t, []string{"read"}, account.Permissions)
}

func TestResolveReturnsExistingAccount(t *testing.T) {
	resolver, _ := newTestResolver(t)
	ctx := context.Background()

	first, err := resolver.Resolve(ctx, "alice@example.com", "Alice")
	require.NoError(t, err)

	second, err := resolver.Resolve(ctx, "alice@example.com", "Someone Else")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, "Alice", second.DisplayName)
}

func TestResolveNormalizesEmail(t *testing.T) {
	resolver, _ := newTestResolver(t)
	ctx := context.Background()

	first, err := resolver.Resolve(ctx, "Alice@Example.COM ", "Alice")
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", first.Email)

	second, err := resolver.Resolve(ctx, "alice@example.com", "Alice")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
}

func TestResolveEmptyEmail(t *testing.T) {
	resolver, _ := newTestResolver(t)

	_, err := resolver.Resolve(context.Background(), "   ", "Alice")
	require.ErrorIs(t, err, domain.ErrProviderError)
}

func TestResolveFallbackDisplayName(t *testing.T) {
	resolver, _ := newTestResolver(t)

	account, err := resolver.Resolve(context.Background(), "bob@example.com", "")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(account.DisplayName, "learner-"))
}

func TestResolveInsertRaceReReadsWinner(t *testing.T) {
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	repo := &racingRepo{MemoryAccountRepo: repository.NewMemoryAccountRepo()}
	resolver := identity.NewResolver(repo, node, zap.NewNop())
	ctx := context.Background()

	// The winner's record lands between our lookup miss and our insert.
	winner, err := repo.Insert(ctx, domain.Account{ID: 7, Email: "carol@example.com", DisplayName: "Carol"})
	require.NoError(t, err)
	repo.missNext = true

	account, err := resolver.Resolve(ctx, "carol@example.com", "Other Name")
	require.NoError(t, err)
	require.Equal(t, winner.ID, account.ID)
	require.Equal(t, "Carol", account.DisplayName)
}

// racingRepo reports one lookup miss to drive Resolve down the insert path
// against an email that already exists.
type racingRepo struct {
	*repository.MemoryAccountRepo
	missNext bool
}

func (r *racingRepo) FindByEmail(ctx context.Context, email string) (domain.Account, error) {
	if r.missNext {
		r.missNext = false
		return domain.Account{}, domain.ErrAccountNotFound
	}
	return r.MemoryAccountRepo.FindByEmail(ctx, email)
}
