package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"signupd/internal/audit"
	"signupd/internal/platform/config"
	"signupd/internal/platform/httpserver"
	"signupd/internal/platform/logger"
	"signupd/internal/platform/metrics"
	redisplatform "signupd/internal/platform/redis"
	"signupd/internal/registration/backend"
	"signupd/internal/registration/backend/directory"
	"signupd/internal/registration/backend/ratelimit"
	"signupd/internal/registration/persistence"
	"signupd/internal/registration/schema"
	httptransport "signupd/internal/transport/http"
	"signupd/internal/welcome"
)

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	redisClient, err := redisplatform.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis unavailable, snapshots fall back to local storage", "error", err)
	}

	dir, cleanup, err := newDirectoryStore(ctx, cfg, log)
	if err != nil {
		log.Error("directory store init failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	validator, err := schema.New()
	if err != nil {
		log.Error("schema init failed", "error", err)
		os.Exit(1)
	}

	inbox := make(chan audit.Event, 256)
	auditStore := audit.NewInMemoryStore()
	auditWorker := audit.NewWorker(auditStore, inbox)
	publisher := audit.NewAsyncPublisher(inbox)

	limiter := ratelimit.New(cfg.RateLimitMax, cfg.RateLimitWindow)
	client := backend.New(dir, limiter, log,
		backend.WithLatency(cfg.CheckLatency),
		backend.WithAuditPublisher(publisher),
		backend.WithMetrics(m),
	)

	snapshotStore, err := newSnapshotStore(cfg, redisClient)
	if err != nil {
		log.Error("snapshot store init failed", "error", err)
		os.Exit(1)
	}
	snapshots := persistence.NewAdapter(snapshotStore, log, m)

	welcomeSvc := welcome.NewService(cfg.JWTSigningKey)

	router := httptransport.NewRouter(httptransport.Deps{
		Registration: httptransport.NewRegistrationHandler(client, validator, welcomeSvc, log),
		Snapshots:    httptransport.NewSnapshotHandler(snapshots),
		Auth:         httptransport.NewAuthHandler(),
		Gatherer:     registry,
		Redis:        redisClient,
		Logger:       log,
	})
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting signupd", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		err := auditWorker.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	log.Info("shutdown complete")
}

// newDirectoryStore picks Postgres when configured, otherwise the in-memory
// seeded store.
func newDirectoryStore(ctx context.Context, cfg config.Server, log *slog.Logger) (directory.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Info("using in-memory directory store")
		return directory.NewInMemoryStore(), func() {}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	store := directory.NewPostgres(pool)
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	log.Info("using postgres directory store")
	return store, pool.Close, nil
}

// newSnapshotStore prefers Redis, then the snapshot directory, then memory.
func newSnapshotStore(cfg config.Server, redisClient *redisplatform.Client) (persistence.SnapshotStore, error) {
	if redisClient != nil {
		return persistence.NewRedisStore(redisClient), nil
	}
	if cfg.SnapshotDir != "" {
		return persistence.NewFileStore(cfg.SnapshotDir)
	}
	return persistence.NewInMemoryStore(), nil
}
