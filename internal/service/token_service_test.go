package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lectory/lectory-auth/internal/domain"
	"github.com/lectory/lectory-auth/internal/repository"
	"github.com/lectory/lectory-auth/internal/service"
	"github.com/lectory/lectory-auth/internal/token"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestTokenService(t *testing.T) (*service.TokenService, *repository.MemoryAccountRepo) {
	t.Helper()
	codec, err := token.NewCodec(testSecret, "lectory-auth", 5*time.Minute, 7*24*time.Hour)
	require.NoError(t, err)
	repo := repository.NewMemoryAccountRepo()
	return service.NewTokenService(repo, codec, zap.NewNop()), repo
}

func seedAccount(t *testing.T, repo *repository.MemoryAccountRepo) domain.Account {
	t.Helper()
	account, err := repo.Insert(context.Background(), domain.Account{
		ID:          1,
		Email:       "alice@example.com",
		DisplayName: "Alice",
		Roles:       []string{"student"},
		Permissions: []string{"read"},
	})
	require.NoError(t, err)
	return account
}

func TestIssuePairPersistsRefreshToken(t *testing.T) {
	svc, repo := newTestTokenService(t)
	account := seedAccount(t, repo)
	ctx := context.Background()

	pair, err := svc.IssuePair(ctx, account)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	stored, err := repo.FindByID(ctx, account.ID)
	require.NoError(t, err)
	require.Equal(t, pair.RefreshToken, stored.RefreshToken)

	claims, err := svc.DecodeAccess(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, account.ID, claims.Subject)
	require.Equal(t, []string{"read"}, claims.Permissions)
}

func TestIssuePairReplacesPriorSession(t *testing.T) {
	svc, repo := newTestTokenService(t)
	account := seedAccount(t, repo)
	ctx := context.Background()

	first, err := svc.IssuePair(ctx, account)
	require.NoError(t, err)

	// Second login with a stale account snapshot still wins via re-read.
	second, err := svc.IssuePair(ctx, account)
	require.NoError(t, err)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)

	// The first session's refresh token was rotated away.
	_, err = svc.Rotate(ctx, first.RefreshToken)
	require.ErrorIs(t, err, domain.ErrTokenRevoked)
}

func TestRotateIssuesNewPairAndInvalidatesOld(t *testing.T) {
	svc, repo := newTestTokenService(t)
	account := seedAccount(t, repo)
	ctx := context.Background()

	pair, err := svc.IssuePair(ctx, account)
	require.NoError(t, err)

	rotated, err := svc.Rotate(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	// Replaying the consumed token is reported as revoked.
	_, err = svc.Rotate(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, domain.ErrTokenRevoked)

	// The rotated token remains usable.
	_, err = svc.Rotate(ctx, rotated.RefreshToken)
	require.NoError(t, err)
}

func TestRotateRejectsAccessToken(t *testing.T) {
	svc, repo := newTestTokenService(t)
	account := seedAccount(t, repo)
	ctx := context.Background()

	pair, err := svc.IssuePair(ctx, account)
	require.NoError(t, err)

	_, err = svc.Rotate(ctx, pair.AccessToken)
	require.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestRotateUnknownSubject(t *testing.T) {
	svc, _ := newTestTokenService(t)
	other, repo := newTestTokenService(t)
	account := seedAccount(t, repo)

	pair, err := other.IssuePair(context.Background(), account)
	require.NoError(t, err)

	// Valid signature, but no such account on this side.
	_, err = svc.Rotate(context.Background(), pair.RefreshToken)
	require.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestRevokeEndsSession(t *testing.T) {
	svc, repo := newTestTokenService(t)
	account := seedAccount(t, repo)
	ctx := context.Background()

	pair, err := svc.IssuePair(ctx, account)
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, pair.RefreshToken))

	_, err = svc.Rotate(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, domain.ErrTokenRevoked)

	// Revoking again is also a revoked-token error.
	require.ErrorIs(t, svc.Revoke(ctx, pair.RefreshToken), domain.ErrTokenRevoked)
}

func TestConcurrentRotateExactlyOneWins(t *testing.T) {
	svc, repo := newTestTokenService(t)
	account := seedAccount(t, repo)
	ctx := context.Background()

	pair, err := svc.IssuePair(ctx, account)
	require.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Rotate(ctx, pair.RefreshToken)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded int
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			require.ErrorIs(t, err, domain.ErrTokenRevoked)
		}
	}
	require.Equal(t, 1, succeeded)
}

func TestDecodeAccessRejectsRefreshToken(t *testing.T) {
	svc, repo := newTestTokenService(t)
	account := seedAccount(t, repo)

	pair, err := svc.IssuePair(context.Background(), account)
	require.NoError(t, err)

	_, err = svc.DecodeAccess(pair.RefreshToken)
	require.ErrorIs(t, err, domain.ErrInvalidToken)
}
