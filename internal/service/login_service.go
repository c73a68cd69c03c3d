package service

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	oauthadapter "github.com/lectory/lectory-auth/internal/adapter/oauth"
	"github.com/lectory/lectory-auth/internal/correlation"
	"github.com/lectory/lectory-auth/internal/domain"
	"github.com/lectory/lectory-auth/internal/identity"
	"github.com/lectory/lectory-auth/internal/paircode"
)

// LoginService orchestrates the three entry flows: OAuth start/callback,
// pairing code start/confirm, and refresh.
type LoginService struct {
	attempts  correlation.Store
	codes     paircode.Registry
	providers oauthadapter.Exchanger
	resolver  *identity.Resolver
	tokens    *TokenService
	logger    *zap.Logger
	tracer    trace.Tracer
}

// NewLoginService wires dependencies.
func NewLoginService(
	attempts correlation.Store,
	codes paircode.Registry,
	providers oauthadapter.Exchanger,
	resolver *identity.Resolver,
	tokens *TokenService,
	logger *zap.Logger,
) *LoginService {
	return &LoginService{
		attempts:  attempts,
		codes:     codes,
		providers: providers,
		resolver:  resolver,
		tokens:    tokens,
		logger:    logger,
		tracer:    otel.Tracer("github.com/lectory/lectory-auth/internal/service"),
	}
}

// OAuthStart registers a Pending attempt and returns the provider redirect
// URL carrying the correlation id as the opaque state value. The provider
// is validated before the attempt is created, so an unknown provider
// leaves no trace.
func (s *LoginService) OAuthStart(ctx context.Context, provider, correlationID string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "LoginService.OAuthStart")
	defer span.End()

	correlationID = strings.TrimSpace(correlationID)
	if correlationID == "" {
		return "", fmt.Errorf("%w: empty correlation id", domain.ErrUnknownCorrelation)
	}

	redirectURL, err := s.providers.AuthorizationURL(provider, correlationID)
	if err != nil {
		return "", err
	}
	if err := s.attempts.Begin(ctx, correlationID); err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("begin attempt: %w", err)
	}

	s.log().Info("oauth login started",
		zap.String("provider", provider),
		zap.String("correlation_id", correlationID))
	return redirectURL, nil
}

// OAuthCallback completes (or denies) the attempt named by state. The
// provider exchange is a blocking network call and runs with no store
// locks held; the attempt is only touched before and after it.
func (s *LoginService) OAuthCallback(ctx context.Context, provider, code, state, providerErr string) error {
	ctx, span := s.tracer.Start(ctx, "LoginService.OAuthCallback")
	defer span.End()

	state = strings.TrimSpace(state)
	if state == "" {
		return fmt.Errorf("%w: callback without state", domain.ErrUnknownCorrelation)
	}

	if providerErr != "" {
		if err := s.attempts.Deny(ctx, state); err != nil {
			span.RecordError(err)
			return fmt.Errorf("deny attempt: %w", err)
		}
		s.log().Info("oauth login denied",
			zap.String("provider", provider),
			zap.String("correlation_id", state))
		return domain.ErrProviderDenied
	}

	providerIdentity, err := s.providers.Exchange(ctx, provider, code)
	if err != nil {
		span.RecordError(err)
		return err
	}

	account, err := s.resolver.Resolve(ctx, providerIdentity.Email, providerIdentity.DisplayNameHint)
	if err != nil {
		span.RecordError(err)
		return err
	}

	pair, err := s.tokens.IssuePair(ctx, account)
	if err != nil {
		span.RecordError(err)
		return err
	}

	if err := s.attempts.Succeed(ctx, state, pair.AccessToken, pair.RefreshToken); err != nil {
		span.RecordError(err)
		return fmt.Errorf("complete attempt: %w", err)
	}

	s.log().Info("oauth login succeeded",
		zap.String("provider", provider),
		zap.Int64("account_id", account.ID),
		zap.String("correlation_id", state))
	return nil
}

// CodeStart registers a Pending attempt and mints a pairing code for it.
func (s *LoginService) CodeStart(ctx context.Context, correlationID string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "LoginService.CodeStart")
	defer span.End()

	correlationID = strings.TrimSpace(correlationID)
	if correlationID == "" {
		return "", fmt.Errorf("%w: empty correlation id", domain.ErrUnknownCorrelation)
	}

	if err := s.attempts.Begin(ctx, correlationID); err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("begin attempt: %w", err)
	}
	code, err := s.codes.Generate(ctx, correlationID)
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	s.log().Info("pairing code issued", zap.String("correlation_id", correlationID))
	return code, nil
}

// CodeConfirm pairs a second device: the code names the waiting attempt,
// and the presented refresh token proves an existing session. Rotation
// binds the fresh pair to the same account as the presented token; on
// success the waiting attempt completes.
func (s *LoginService) CodeConfirm(ctx context.Context, code, presentedRefresh string) error {
	ctx, span := s.tracer.Start(ctx, "LoginService.CodeConfirm")
	defer span.End()

	correlationID, err := s.codes.Consume(ctx, code)
	if err != nil {
		return err
	}

	pair, err := s.tokens.Rotate(ctx, presentedRefresh)
	if err != nil {
		return err
	}

	if err := s.attempts.Succeed(ctx, correlationID, pair.AccessToken, pair.RefreshToken); err != nil {
		span.RecordError(err)
		return fmt.Errorf("complete attempt: %w", err)
	}

	s.log().Info("pairing confirmed", zap.String("correlation_id", correlationID))
	return nil
}

// Refresh is the stateless rotation entry for already-logged-in clients,
// independent of the correlation mechanism.
func (s *LoginService) Refresh(ctx context.Context, presentedRefresh string) (domain.TokenPair, error) {
	return s.tokens.Rotate(ctx, presentedRefresh)
}

// Logout revokes the presented refresh token.
func (s *LoginService) Logout(ctx context.Context, presentedRefresh string) error {
	return s.tokens.Revoke(ctx, presentedRefresh)
}

// Status reports the attempt for a correlation id.
func (s *LoginService) Status(ctx context.Context, correlationID string) (domain.LoginAttempt, error) {
	return s.attempts.Status(ctx, correlationID)
}

func (s *LoginService) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}
