package correlation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lectory/lectory-auth/internal/domain"
)

func TestStatusUnknownCorrelation(t *testing.T) {
	store := NewMemoryStore(time.Minute)

	_, err := store.Status(context.Background(), "never-seen")
	require.ErrorIs(t, err, domain.ErrUnknownCorrelation)
}

func TestBeginCreatesPending(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Begin(ctx, "corr-1"))

	attempt, err := store.Status(ctx, "corr-1")
	require.NoError(t, err)
	require.Equal(t, domain.LoginPending, attempt.Status)
	require.Equal(t, "corr-1", attempt.CorrelationID)
	require.Empty(t, attempt.AccessToken)
}

func TestSucceedStoresTokens(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Begin(ctx, "corr-1"))
	require.NoError(t, store.Succeed(ctx, "corr-1", "access", "refresh"))

	attempt, err := store.Status(ctx, "corr-1")
	require.NoError(t, err)
	require.Equal(t, domain.LoginSuccess, attempt.Status)
	require.Equal(t, "access", attempt.AccessToken)
	require.Equal(t, "refresh", attempt.RefreshToken)
}

func TestDenyMarksDenied(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Begin(ctx, "corr-1"))
	require.NoError(t, store.Deny(ctx, "corr-1"))

	attempt, err := store.Status(ctx, "corr-1")
	require.NoError(t, err)
	require.Equal(t, domain.LoginDenied, attempt.Status)
}

func TestTerminalStatesDoNotTransition(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Begin(ctx, "won"))
	require.NoError(t, store.Succeed(ctx, "won", "access", "refresh"))
	require.NoError(t, store.Deny(ctx, "won"))
	attempt, err := store.Status(ctx, "won")
	require.NoError(t, err)
	require.Equal(t, domain.LoginSuccess, attempt.Status)
	require.Equal(t, "refresh", attempt.RefreshToken)

	require.NoError(t, store.Begin(ctx, "lost"))
	require.NoError(t, store.Deny(ctx, "lost"))
	require.NoError(t, store.Succeed(ctx, "lost", "access", "refresh"))
	attempt, err = store.Status(ctx, "lost")
	require.NoError(t, err)
	require.Equal(t, domain.LoginDenied, attempt.Status)
	require.Empty(t, attempt.AccessToken)
}

func TestDenyUnknownIsNoOp(t *testing.T) {
	store := NewMemoryStore(time.Minute)

	require.NoError(t, store.Deny(context.Background(), "never-seen"))
	require.NoError(t, store.Succeed(context.Background(), "never-seen", "a", "r"))

	_, err := store.Status(context.Background(), "never-seen")
	require.ErrorIs(t, err, domain.ErrUnknownCorrelation)
}

func TestExpiryReportedExactlyOnce(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	ctx := context.Background()

	begun := time.Now()
	store.now = func() time.Time { return begun }
	require.NoError(t, store.Begin(ctx, "corr-1"))
	require.NoError(t, store.Succeed(ctx, "corr-1", "access", "refresh"))

	store.now = func() time.Time { return begun.Add(2 * time.Minute) }

	attempt, err := store.Status(ctx, "corr-1")
	require.NoError(t, err)
	require.Equal(t, domain.LoginExpired, attempt.Status)
	require.Empty(t, attempt.AccessToken)
	require.Empty(t, attempt.RefreshToken)

	_, err = store.Status(ctx, "corr-1")
	require.ErrorIs(t, err, domain.ErrUnknownCorrelation)
}

func TestBeginSupersedesPriorAttempt(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Begin(ctx, "corr-1"))
	require.NoError(t, store.Succeed(ctx, "corr-1", "access", "refresh"))

	require.NoError(t, store.Begin(ctx, "corr-1"))

	attempt, err := store.Status(ctx, "corr-1")
	require.NoError(t, err)
	require.Equal(t, domain.LoginPending, attempt.Status)
	require.Empty(t, attempt.AccessToken)
}
