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

	"leadhandler_backend/internal/events"
	apphttp "leadhandler_backend/internal/http"
	"leadhandler_backend/internal/http/router"
	"leadhandler_backend/internal/leads"
	"leadhandler_backend/internal/leads/repository"
	"leadhandler_backend/internal/scheduler"
	"leadhandler_backend/internal/sms"
	"leadhandler_backend/platform/ai"
	"leadhandler_backend/platform/config"
	"leadhandler_backend/platform/db"
	"leadhandler_backend/platform/keylock"
	"leadhandler_backend/platform/logger"
	"leadhandler_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, pool)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	locker, closeLocker := initLeadLocker(cfg, log)
	defer closeLocker()

	alertQueue, closeAlerts := initAlertQueue(cfg, log)
	if closeAlerts != nil {
		defer closeAlerts()
	}

	generator, err := ai.Select(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize language model", "error", err)
		panic("failed to initialize language model: " + err.Error())
	}

	smsClient := sms.NewClient(cfg, log)
	if smsClient == nil {
		log.Warn("twilio credentials not configured; outbound SMS disabled")
	}

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	leadsModule := leads.NewModule(leads.ModuleDeps{
		Store:     repository.New(pool),
		Locker:    locker,
		Generator: generator,
		Sender:    smsClient,
		Bus:       eventBus,
		Alerts:    alertQueue,
		Validator: val,
		Config:    cfg,
		Log:       log,
	})

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			leadsModule,
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		eventBus.Wait()
		leadsModule.Wait()
		return err
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		panic("server error: " + err.Error())
	}
}

// initLeadLocker returns the distributed lock when Redis is configured so that
// several API replicas serialize the same lead.
func initLeadLocker(cfg *config.Config, log *logger.Logger) (keylock.Locker, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; per-lead lock is process local")
		return keylock.NewLocal(), func() {}
	}

	client, err := scheduler.NewRedisClient(cfg)
	if err != nil {
		log.Error("failed to initialize redis lock client", "error", err)
		return keylock.NewLocal(), func() {}
	}

	return keylock.NewRedis(client, cfg.GetLeadLockTTL()), func() {
		_ = client.Close()
	}
}

func initAlertQueue(cfg config.SchedulerConfig, log *logger.Logger) (scheduler.AlertEnqueuer, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; agent alerts are delivered in-process")
		return nil, nil
	}

	alertClient, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize alert queue client", "error", err)
		return nil, nil
	}

	return alertClient, func() {
		_ = alertClient.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
