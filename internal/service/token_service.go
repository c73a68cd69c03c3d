package service

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/lectory/lectory-auth/internal/domain"
	"github.com/lectory/lectory-auth/internal/repository"
	"github.com/lectory/lectory-auth/internal/token"
)

// issueRetries bounds the compare-and-swap loop when a login races another
// writer on the same account record.
const issueRetries = 3

// TokenService issues access/refresh pairs and rotates refresh tokens,
// detecting reuse of already-rotated tokens. At most one live refresh
// token exists per account; issuing a new one invalidates the previous.
type TokenService struct {
	accounts repository.AccountRepository
	codec    *token.Codec
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewTokenService wires dependencies.
func NewTokenService(accounts repository.AccountRepository, codec *token.Codec, logger *zap.Logger) *TokenService {
	return &TokenService{
		accounts: accounts,
		codec:    codec,
		logger:   logger,
		tracer:   otel.Tracer("github.com/lectory/lectory-auth/internal/service"),
	}
}

// IssuePair mints a fresh pair for a freshly authenticated account and
// persists the new refresh token, replacing any previous value. A login
// therefore invalidates the account's prior session. No prior token is
// presented here, so the replacement is unconditional; it still goes
// through the conditioned write, re-reading on contention.
func (s *TokenService) IssuePair(ctx context.Context, account domain.Account) (domain.TokenPair, error) {
	ctx, span := s.tracer.Start(ctx, "TokenService.IssuePair")
	defer span.End()

	access, err := s.codec.IssueAccess(account.ID, account.Permissions)
	if err != nil {
		span.RecordError(err)
		return domain.TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.codec.IssueRefresh(account.ID)
	if err != nil {
		span.RecordError(err)
		return domain.TokenPair{}, fmt.Errorf("issue refresh token: %w", err)
	}

	current := account.RefreshToken
	for attempt := 0; attempt < issueRetries; attempt++ {
		ok, err := s.accounts.UpdateRefreshToken(ctx, account.ID, current, refresh)
		if err != nil {
			span.RecordError(err)
			return domain.TokenPair{}, fmt.Errorf("persist refresh token: %w", err)
		}
		if ok {
			s.audit("token.pair.issued", "account_id", account.ID)
			return domain.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
		}
		fresh, err := s.accounts.FindByID(ctx, account.ID)
		if err != nil {
			span.RecordError(err)
			return domain.TokenPair{}, fmt.Errorf("reload account: %w", err)
		}
		current = fresh.RefreshToken
	}
	return domain.TokenPair{}, fmt.Errorf("persist refresh token: contention on account %d", account.ID)
}

// Rotate exchanges a presented refresh token for a new pair. The stored
// token must equal the presented one exactly; a mismatch means the token
// was already rotated away (or never issued) and is being replayed, so the
// caller must force full re-authentication. The compare and the write are
// a single conditioned read-modify-write: of two concurrent rotations of
// the same token, exactly one proceeds and the other observes Revoked.
func (s *TokenService) Rotate(ctx context.Context, presentedRefresh string) (domain.TokenPair, error) {
	ctx, span := s.tracer.Start(ctx, "TokenService.Rotate")
	defer span.End()

	claims, err := s.codec.Decode(presentedRefresh)
	if err != nil {
		return domain.TokenPair{}, err
	}
	if claims.Type != token.TypeRefresh {
		return domain.TokenPair{}, fmt.Errorf("%w: not a refresh token", domain.ErrInvalidToken)
	}

	account, err := s.accounts.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return domain.TokenPair{}, fmt.Errorf("%w: unknown subject", domain.ErrInvalidToken)
		}
		span.RecordError(err)
		return domain.TokenPair{}, fmt.Errorf("load account: %w", err)
	}

	if account.RefreshToken != presentedRefresh {
		s.audit("token.rotate.revoked", "account_id", account.ID)
		return domain.TokenPair{}, domain.ErrTokenRevoked
	}

	nextRefresh, err := s.codec.IssueRefresh(account.ID)
	if err != nil {
		span.RecordError(err)
		return domain.TokenPair{}, fmt.Errorf("issue refresh token: %w", err)
	}
	ok, err := s.accounts.UpdateRefreshToken(ctx, account.ID, presentedRefresh, nextRefresh)
	if err != nil {
		span.RecordError(err)
		return domain.TokenPair{}, fmt.Errorf("rotate refresh token: %w", err)
	}
	if !ok {
		// Lost the race: a concurrent rotation already replaced the token.
		s.audit("token.rotate.revoked", "account_id", account.ID)
		return domain.TokenPair{}, domain.ErrTokenRevoked
	}

	access, err := s.codec.IssueAccess(account.ID, account.Permissions)
	if err != nil {
		span.RecordError(err)
		return domain.TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}

	s.audit("token.rotate.success", "account_id", account.ID)
	return domain.TokenPair{AccessToken: access, RefreshToken: nextRefresh}, nil
}

// Revoke clears the account's stored refresh token if the presented one is
// still current, ending the session. A later Rotate of the presented token
// fails Revoked.
func (s *TokenService) Revoke(ctx context.Context, presentedRefresh string) error {
	ctx, span := s.tracer.Start(ctx, "TokenService.Revoke")
	defer span.End()

	claims, err := s.codec.Decode(presentedRefresh)
	if err != nil {
		return err
	}
	if claims.Type != token.TypeRefresh {
		return fmt.Errorf("%w: not a refresh token", domain.ErrInvalidToken)
	}
	ok, err := s.accounts.UpdateRefreshToken(ctx, claims.Subject, presentedRefresh, "")
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	if !ok {
		return domain.ErrTokenRevoked
	}
	s.audit("token.revoked", "account_id", claims.Subject)
	return nil
}

// DecodeAccess validates a bearer access token for protected endpoints.
func (s *TokenService) DecodeAccess(raw string) (token.Claims, error) {
	claims, err := s.codec.Decode(raw)
	if err != nil {
		return token.Claims{}, err
	}
	if claims.Type != token.TypeAccess {
		return token.Claims{}, fmt.Errorf("%w: not an access token", domain.ErrInvalidToken)
	}
	return claims, nil
}

func (s *TokenService) audit(event string, attrs ...any) {
	fields := make([]zap.Field, 0, len(attrs)/2+1)
	fields = append(fields, zap.String("event", event))
	for i := 0; i+1 < len(attrs); i += 2 {
		key, ok := attrs[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, attrs[i+1]))
	}
	s.log().Info("audit", fields...)
}

func (s *TokenService) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}
