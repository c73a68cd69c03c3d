// Package cache provides Redis-backed implementations of the correlation
// store and pairing code registry, for deployments where login attempts
// must outlive a single process.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lectory/lectory-auth/internal/correlation"
	"github.com/lectory/lectory-auth/internal/domain"
	"github.com/lectory/lectory-auth/internal/paircode"
)

const (
	attemptPrefix = "login:attempt:"
	codePrefix    = "login:code:"

	// transitionRetries bounds optimistic retries when a concurrent
	// transition races the WATCH.
	transitionRetries = 3
)

// RedisLoginStore implements correlation.Store backed by Redis. Keys are
// kept one TTL past the attempt deadline so an expired attempt can still
// be reported Expired exactly once before eviction.
type RedisLoginStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

var _ correlation.Store = (*RedisLoginStore)(nil)

// NewRedisLoginStore constructs a Redis-backed correlation store.
func NewRedisLoginStore(client redis.UniversalClient, ttl time.Duration) *RedisLoginStore {
	return &RedisLoginStore{client: client, ttl: ttl}
}

func (s *RedisLoginStore) Begin(ctx context.Context, correlationID string) error {
	now := time.Now().UTC()
	entry := domain.LoginAttempt{
		CorrelationID: correlationID,
		Status:        domain.LoginPending,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.ttl),
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal attempt: %w", err)
	}
	if err := s.client.Set(ctx, attemptPrefix+correlationID, payload, 2*s.ttl).Err(); err != nil {
		return fmt.Errorf("persist attempt: %w", err)
	}
	return nil
}

func (s *RedisLoginStore) Deny(ctx context.Context, correlationID string) error {
	return s.transition(ctx, correlationID, func(entry *domain.LoginAttempt) {
		entry.Status = domain.LoginDenied
	})
}

func (s *RedisLoginStore) Succeed(ctx context.Context, correlationID, accessToken, refreshToken string) error {
	return s.transition(ctx, correlationID, func(entry *domain.LoginAttempt) {
		entry.Status = domain.LoginSuccess
		entry.AccessToken = accessToken
		entry.RefreshToken = refreshToken
	})
}

// transition applies mutate to a still-Pending attempt under an optimistic
// WATCH, so two racing terminal transitions cannot both land.
func (s *RedisLoginStore) transition(ctx context.Context, correlationID string, mutate func(*domain.LoginAttempt)) error {
	key := attemptPrefix + correlationID
	txn := func(tx *redis.Tx) error {
		bytes, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return nil
			}
			return fmt.Errorf("load attempt: %w", err)
		}
		var entry domain.LoginAttempt
		if err := json.Unmarshal(bytes, &entry); err != nil {
			return fmt.Errorf("decode attempt: %w", err)
		}
		if entry.Status != domain.LoginPending {
			return nil
		}
		mutate(&entry)
		payload, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshal attempt: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, redis.KeepTTL)
			return nil
		})
		return err
	}

	var err error
	for i := 0; i < transitionRetries; i++ {
		err = s.client.Watch(ctx, txn, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return err
}

func (s *RedisLoginStore) Status(ctx context.Context, correlationID string) (domain.LoginAttempt, error) {
	key := attemptPrefix + correlationID
	bytes, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.LoginAttempt{}, domain.ErrUnknownCorrelation
		}
		return domain.LoginAttempt{}, fmt.Errorf("load attempt: %w", err)
	}
	var entry domain.LoginAttempt
	if err := json.Unmarshal(bytes, &entry); err != nil {
		return domain.LoginAttempt{}, fmt.Errorf("decode attempt: %w", err)
	}
	if time.Now().After(entry.ExpiresAt) {
		if err := s.client.Del(ctx, key).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return domain.LoginAttempt{}, fmt.Errorf("evict attempt: %w", err)
		}
		entry.Status = domain.LoginExpired
		entry.AccessToken = ""
		entry.RefreshToken = ""
	}
	return entry, nil
}

// RedisCodeRegistry implements paircode.Registry backed by Redis. GETDEL
// makes consumption single-use without client-side locking.
type RedisCodeRegistry struct {
	client redis.UniversalClient
	ttl    time.Duration
}

var _ paircode.Registry = (*RedisCodeRegistry)(nil)

// NewRedisCodeRegistry constructs a Redis-backed code registry.
func NewRedisCodeRegistry(client redis.UniversalClient, ttl time.Duration) *RedisCodeRegistry {
	return &RedisCodeRegistry{client: client, ttl: ttl}
}

func (r *RedisCodeRegistry) Generate(ctx context.Context, correlationID string) (string, error) {
	code, err := paircode.RandomCode()
	if err != nil {
		return "", fmt.Errorf("generate pairing code: %w", err)
	}
	if err := r.client.Set(ctx, codePrefix+code, correlationID, r.ttl).Err(); err != nil {
		return "", fmt.Errorf("persist pairing code: %w", err)
	}
	return code, nil
}

func (r *RedisCodeRegistry) Consume(ctx context.Context, code string) (string, error) {
	correlationID, err := r.client.GetDel(ctx, codePrefix+code).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", domain.ErrInvalidCode
		}
		return "", fmt.Errorf("consume pairing code: %w", err)
	}
	return correlationID, nil
}
