// Package correlation tracks pending logins by an opaque client-chosen
// correlation id so an out-of-band completion (an OAuth redirect or a
// pairing code confirm) can be matched back to the waiting client.
package correlation

import (
	"context"
	"sync"
	"time"

	"github.com/lectory/lectory-auth/internal/domain"
)

// Store is the login attempt state machine. Pending moves to exactly one of
// Success or Denied; expiry is checked lazily on read rather than by a
// background sweep. Succeed and Deny on an already-terminal entry are
// no-ops, since duplicate callback delivery is possible.
type Store interface {
	// Begin creates a Pending attempt with a fresh deadline, superseding
	// any prior attempt for the same correlation id.
	Begin(ctx context.Context, correlationID string) error
	// Deny marks the attempt Denied if it is still Pending.
	Deny(ctx context.Context, correlationID string) error
	// Succeed marks the attempt Success and stores the issued tokens if it
	// is still Pending.
	Succeed(ctx context.Context, correlationID, accessToken, refreshToken string) error
	// Status reports the attempt. An entry past its deadline is evicted and
	// reported Expired exactly once; after that, and for ids never seen,
	// Status returns domain.ErrUnknownCorrelation.
	Status(ctx context.Context, correlationID string) (domain.LoginAttempt, error)
}

// MemoryStore is the in-process Store. Entries do not survive a restart;
// a restart silently invalidates all in-flight logins, which is accepted
// operational behavior.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]*domain.LoginAttempt
	now     func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a store whose attempts expire after ttl.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		entries: make(map[string]*domain.LoginAttempt),
		now:     time.Now,
	}
}

func (s *MemoryStore) Begin(ctx context.Context, correlationID string) error {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[correlationID] = &domain.LoginAttempt{
		CorrelationID: correlationID,
		Status:        domain.LoginPending,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.ttl),
	}
	return nil
}

func (s *MemoryStore) Deny(ctx context.Context, correlationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[correlationID]
	if !ok || entry.Status != domain.LoginPending {
		return nil
	}
	entry.Status = domain.LoginDenied
	return nil
}

func (s *MemoryStore) Succeed(ctx context.Context, correlationID, accessToken, refreshToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[correlationID]
	if !ok || entry.Status != domain.LoginPending {
		return nil
	}
	entry.Status = domain.LoginSuccess
	entry.AccessToken = accessToken
	entry.RefreshToken = refreshToken
	return nil
}

func (s *MemoryStore) Status(ctx context.Context, correlationID string) (domain.LoginAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[correlationID]
	if !ok {
		return domain.LoginAttempt{}, domain.ErrUnknownCorrelation
	}
	if s.now().After(entry.ExpiresAt) {
		delete(s.entries, correlationID)
		expired := *entry
		expired.Status = domain.LoginExpired
		expired.AccessToken = ""
		expired.RefreshToken = ""
		return expired, nil
	}
	return *entry, nil
}
