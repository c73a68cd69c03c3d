package main

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	cacheadapter "github.com/lectory/lectory-auth/internal/adapter/cache"
	oauthadapter "github.com/lectory/lectory-auth/internal/adapter/oauth"
	"github.com/lectory/lectory-auth/internal/bootstrap"
	"github.com/lectory/lectory-auth/internal/config"
	"github.com/lectory/lectory-auth/internal/correlation"
	httptransport "github.com/lectory/lectory-auth/internal/http"
	"github.com/lectory/lectory-auth/internal/http/handler"
	httpmiddleware "github.com/lectory/lectory-auth/internal/http/middleware"
	"github.com/lectory/lectory-auth/internal/identity"
	apimiddleware "github.com/lectory/lectory-auth/internal/middleware"
	"github.com/lectory/lectory-auth/internal/paircode"
	"github.com/lectory/lectory-auth/internal/repository"
	"github.com/lectory/lectory-auth/internal/server"
	"github.com/lectory/lectory-auth/internal/service"
	"github.com/lectory/lectory-auth/internal/telemetry"
	"github.com/lectory/lectory-auth/internal/token"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newSnowflake,
			newPGXPool,
			newAccountRepository,
			newRedisClient,
			newCorrelationStore,
			newCodeRegistry,
			newCodec,
			newProviderClient,
			newRateLimiter,
			identity.NewResolver,
			service.NewTokenService,
			service.NewLoginService,
			newAuthHandler,
			httpmiddleware.NewAuth,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, bootstrap.EnsureSchema, startHTTPServer),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Environment == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})

	return provider, nil
}

func newSnowflake() (*snowflake.Node, error) {
	node, err := snowflake.NewNode(1)
	return node, err
}

// newPGXPool returns a nil pool when DATABASE_URL is unset. Account state
// then lives in memory, which is the single-process default.
func newPGXPool(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	if cfg.DatabaseURL == "" {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})

	return pool, nil
}

func newAccountRepository(pool *pgxpool.Pool, logger *zap.Logger) repository.AccountRepository {
	if pool == nil {
		logger.Info("account store: in-memory")
		return repository.NewMemoryAccountRepo()
	}
	logger.Info("account store: postgres")
	return repository.NewPostgresAccountRepo(pool)
}

// newRedisClient returns nil when REDIS_ADDR is unset and the in-memory
// stores take over.
func newRedisClient(lc fx.Lifecycle, cfg config.Config) (redis.UniversalClient, error) {
	if cfg.RedisAddr == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

func newCorrelationStore(client redis.UniversalClient, cfg config.Config) correlation.Store {
	if client == nil {
		return correlation.NewMemoryStore(cfg.LoginAttemptTTL)
	}
	return cacheadapter.NewRedisLoginStore(client, cfg.LoginAttemptTTL)
}

func newCodeRegistry(client redis.UniversalClient, cfg config.Config) paircode.Registry {
	if client == nil {
		return paircode.NewMemoryRegistry(cfg.PairingCodeTTL)
	}
	return cacheadapter.NewRedisCodeRegistry(client, cfg.PairingCodeTTL)
}

func newCodec(cfg config.Config) (*token.Codec, error) {
	return token.NewCodec([]byte(cfg.SigningSecret), cfg.Issuer, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
}

func newProviderClient(cfg config.Config) oauthadapter.Exchanger {
	return oauthadapter.NewHTTPProviderClient(cfg, nil)
}

func newRateLimiter(cfg config.Config, logger *zap.Logger) *apimiddleware.RateLimiter {
	return apimiddleware.NewRateLimiter(cfg, logger)
}

func newAuthHandler(login *service.LoginService, cfg config.Config) *handler.AuthHandler {
	return handler.NewAuthHandler(login, cfg.AccessTokenTTL)
}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, logger *zap.Logger) {
	addr := ":" + cfg.HTTPPort
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				if err := srv.Run(runCtx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func useTelemetry(*telemetry.Provider) {}
