package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"

	"github.com/comitanigiacomo/kanso-organizer/internal/adapters/cache"
	adapterHTTP "github.com/comitanigiacomo/kanso-organizer/internal/adapters/handler/http"
	"github.com/comitanigiacomo/kanso-organizer/internal/adapters/repository"
	"github.com/comitanigiacomo/kanso-organizer/internal/config"
	"github.com/comitanigiacomo/kanso-organizer/internal/core/domain"
	"github.com/comitanigiacomo/kanso-organizer/internal/core/services"
	"github.com/comitanigiacomo/kanso-organizer/internal/logging"
)

func main() {
	startTime := time.Now()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Critical: %v\n", err)
		os.Exit(1)
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	logger := logging.New("api")

	if cfg.Server.JWTSecret == "" {
		logger.Fatal().Msg("Critical: JWT_SECRET is not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Critical: failed to open storage")
	}
	defer b.Close()

	router := newRouter(cfg, b, startTime, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.Server.Port).Msg("Kanso sync server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Critical server error")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Stop signal received. Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Forced shutdown")
		return
	}
	logger.Info().Msg("Server stopped gracefully.")
}

// backend is the storage behind the snapshot API. db and redis are nil when
// the server runs without them.
type backend struct {
	db       *sqlx.DB
	redis    *redis.Client
	repo     domain.SnapshotRepository
	accounts domain.AccountRepository
	notifier domain.ChangeNotifier
}

func openBackend(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*backend, error) {
	b := &backend{}

	if cfg.Database.Host == "" {
		logger.Warn().Msg("[STORE] database.host is empty, snapshots are kept in memory")
		b.repo = repository.NewInMemorySnapshotRepository()
		b.accounts = repository.NewInMemoryAccountRepository()
	} else {
		logger.Info().Str("driver", cfg.Database.Driver).Str("host", cfg.Database.Host).Msg("Connecting to database...")

		db, err := sqlx.Connect(cfg.Database.Driver, cfg.PostgresDSN())
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)

		pg := repository.NewPostgresSnapshotRepository(db)
		accounts := repository.NewPostgresAccountRepository(db)
		for _, ensure := range []func(context.Context) error{pg.EnsureSchema, accounts.EnsureSchema} {
			if err := ensure(ctx); err != nil {
				db.Close()
				return nil, err
			}
		}
		b.db = db
		b.repo = pg
		b.accounts = accounts
		logger.Info().Msg("Database connected successfully.")
	}

	if cfg.Redis.Enabled {
		rdb, err := cache.NewRedisClient(cfg.Redis)
		if err != nil {
			logger.Warn().Err(err).Msg("[CACHE] Redis unavailable, running without cache and rate limiting")
		} else {
			b.redis = rdb
			b.repo = repository.NewCachedSnapshotRepository(b.repo, rdb, logging.New("cache"))
			b.notifier = cache.NewRedisNotifier(rdb, logging.New("realtime"))
		}
	}
	if b.notifier == nil {
		b.notifier = repository.NewInMemoryNotifier()
	}

	return b, nil
}

func (b *backend) Close() {
	if b.redis != nil {
		b.redis.Close()
	}
	if b.db != nil {
		b.db.Close()
	}
}

func newRouter(cfg *config.Config, b *backend, startTime time.Time, logger zerolog.Logger) *gin.Engine {
	svc := services.NewSnapshotService(b.repo, b.notifier, logging.New("snapshots"))
	tokens := services.NewTokenService(cfg.Server.JWTSecret, cfg.Server.JWTIssuer, cfg.Server.TokenTTL)

	deps := adapterHTTP.RouterDependencies{
		SnapshotHandler: adapterHTTP.NewSnapshotHandler(svc, logging.New("http")),
		AccountHandler:  adapterHTTP.NewAccountHandler(services.NewAccountService(b.accounts, tokens, logging.New("accounts")), logging.New("http")),
		Tokens:          tokens,
		Redis:           b.redis,
		RateLimit:       cfg.Server.RateLimit,
		RateLimitWindow: cfg.Server.RateLimitWindow,
		StartTime:       startTime,
		Logger:          logger,
	}
	if b.db != nil {
		deps.DB = b.db
	}
	return adapterHTTP.NewRouter(deps)
}
