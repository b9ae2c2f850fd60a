package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadhandler_backend/internal/events"
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
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	eventBus := events.NewInMemoryBus(log)

	var locker keylock.Locker = keylock.NewLocal()
	if cfg.GetRedisURL() != "" {
		redisClient, err := scheduler.NewRedisClient(cfg)
		if err != nil {
			log.Error("failed to initialize redis lock client", "error", err)
			panic("failed to initialize redis lock client: " + err.Error())
		}
		defer func() { _ = redisClient.Close() }()
		locker = keylock.NewRedis(redisClient, cfg.GetLeadLockTTL())
	}

	// Worker-side routing only; the qualification model is never called here.
	leadsModule := leads.NewModule(leads.ModuleDeps{
		Store:     repository.New(pool),
		Locker:    locker,
		Generator: ai.Unavailable{},
		Sender:    sms.NewClient(cfg, log),
		Bus:       eventBus,
		Validator: validator.New(),
		Config:    cfg,
		Log:       log,
	})
	defer leadsModule.Wait()
	defer eventBus.Wait()

	if interval := cfg.GetRouteSweepInterval(); interval > 0 {
		sweeper := scheduler.NewRouteSweeper(repository.New(pool), leadsModule.Pipeline(), log, interval)
		go sweeper.Run(ctx)
		log.Info("route sweeper started", "interval", interval.String())
	}

	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; queued agent alerts disabled")
		<-ctx.Done()
		return
	}

	worker, err := scheduler.NewWorker(cfg, leadsModule.Alerter(), log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
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
