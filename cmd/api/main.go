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

	cacheadapter "github.com/mentalapp/mentalapp-api/internal/adapter/cache"
	"github.com/mentalapp/mentalapp-api/internal/bootstrap"
	"github.com/mentalapp/mentalapp-api/internal/config"
	httptransport "github.com/mentalapp/mentalapp-api/internal/http"
	"github.com/mentalapp/mentalapp-api/internal/http/handler"
	httpmiddleware "github.com/mentalapp/mentalapp-api/internal/http/middleware"
	"github.com/mentalapp/mentalapp-api/internal/notify"
	"github.com/mentalapp/mentalapp-api/internal/repository"
	"github.com/mentalapp/mentalapp-api/internal/server"
	"github.com/mentalapp/mentalapp-api/internal/service"
	"github.com/mentalapp/mentalapp-api/internal/telemetry"
	"github.com/mentalapp/mentalapp-api/internal/token"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newSnowflake,
			newPGXPool,
			newUserRepository,
			newTokenRepository,
			newKeyRepository,
			newReviewRepository,
			newRedisClient,
			newRevokedTokenStore,
			newNotifier,
			newKeyManager,
			newTokenIssuer,
			service.NewAuthService,
			newReviewService,
			handler.NewAuthHandler,
			handler.NewReviewHandler,
			newAuthMiddleware,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, bootstrap.EnsureSeedAccount, startHTTPServer),
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
	return snowflake.NewNode(1)
}

func newPGXPool(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
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

func newUserRepository(pool *pgxpool.Pool) repository.UserRepository {
	return repository.NewPostgresUserRepo(pool)
}

func newTokenRepository(pool *pgxpool.Pool) repository.TokenRepository {
	return repository.NewPostgresTokenRepo(pool)
}

func newKeyRepository(pool *pgxpool.Pool) repository.KeyRepository {
	return repository.NewPostgresKeyRepo(pool)
}

func newReviewRepository(pool *pgxpool.Pool) repository.ReviewRepository {
	return repository.NewPostgresReviewRepo(pool)
}

func newRedisClient(lc fx.Lifecycle, cfg config.Config) (redis.UniversalClient, error) {
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

func newRevokedTokenStore(client redis.UniversalClient) repository.RevokedTokenStore {
	return cacheadapter.NewRedisRevokedTokenStore(client)
}

func newNotifier(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (notify.Notifier, error) {
	if cfg.AMQPURL == "" {
		logger.Info("amqp disabled, verification events discarded")
		return notify.Noop{}, nil
	}

	notifier, err := notify.NewAMQPNotifier(cfg.AMQPURL, cfg.AMQPExchange, logger)
	if err != nil {
		return nil, fmt.Errorf("amqp notifier: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			notifier.Close()
			return nil
		},
	})
	return notifier, nil
}

func newKeyManager(repo repository.KeyRepository) *token.KeyManager {
	return token.NewKeyManager(repo)
}

func newTokenIssuer(manager *token.KeyManager, cfg config.Config) *token.Issuer {
	return token.NewIssuer(manager, cfg.TokenIssuer, cfg.AccessTokenTTL)
}

func newReviewService(reviews repository.ReviewRepository, users repository.UserRepository, node *snowflake.Node, logger *zap.Logger) *service.ReviewService {
	return service.NewReviewService(reviews, users, node, logger)
}

func newAuthMiddleware(authService *service.AuthService) *httpmiddleware.Auth {
	return &httpmiddleware.Auth{AuthService: authService}
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
				logger.Info("http server listening", zap.String("addr", addr))
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
