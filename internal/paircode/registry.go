// Package paircode issues short-lived numeric codes that pair a second
// device to an in-flight login attempt. The 60s TTL, not the 90000-value
// code space, is the primary defense against online guessing.
package paircode

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/lectory/lectory-auth/internal/domain"
)

// Registry maps live pairing codes to correlation ids.
type Registry interface {
	// Generate produces a fresh 5-digit code for the correlation id. A
	// colliding live code is overwritten; the live set is tiny and the TTL
	// short.
	Generate(ctx context.Context, correlationID string) (string, error)
	// Consume atomically checks and deletes the code, returning its
	// correlation id. A code succeeds at most once; unknown, expired, or
	// already-consumed codes fail with domain.ErrInvalidCode.
	Consume(ctx context.Context, code string) (string, error)
}

// MemoryRegistry is the in-process Registry. Codes do not survive a
// restart.
type MemoryRegistry struct {
	mu    sync.Mutex
	ttl   time.Duration
	codes map[string]domain.PairingCode
	now   func() time.Time
}

var _ Registry = (*MemoryRegistry)(nil)

// NewMemoryRegistry creates a registry whose codes expire after ttl.
func NewMemoryRegistry(ttl time.Duration) *MemoryRegistry {
	return &MemoryRegistry{
		ttl:   ttl,
		codes: make(map[string]domain.PairingCode),
		now:   time.Now,
	}
}

func (r *MemoryRegistry) Generate(ctx context.Context, correlationID string) (string, error) {
	code, err := RandomCode()
	if err != nil {
		return "", fmt.Errorf("generate pairing code: %w", err)
	}

	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked(now)
	r.codes[code] = domain.PairingCode{
		Code:          code,
		CorrelationID: correlationID,
		ExpiresAt:     now.Add(r.ttl),
	}
	return code, nil
}

func (r *MemoryRegistry) Consume(ctx context.Context, code string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.codes[code]
	if !ok {
		return "", domain.ErrInvalidCode
	}
	delete(r.codes, code)
	if r.now().After(entry.ExpiresAt) {
		return "", domain.ErrInvalidCode
	}
	return entry.CorrelationID, nil
}

func (r *MemoryRegistry) pruneLocked(now time.Time) {
	for code, entry := range r.codes {
		if now.After(entry.ExpiresAt) {
			delete(r.codes, code)
		}
	}
}

// RandomCode draws a uniform 5-digit code from [10000, 99999].
func RandomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(90000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%05d", n.Int64()+10000), nil
}
