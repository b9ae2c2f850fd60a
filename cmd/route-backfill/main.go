package main

import (
	"context"
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
)

// route-backfill assigns qualified leads that never got an agent, e.g. after
// agents were added to a brokerage that had none active.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting lead routing backfill")

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	store := repository.New(pool)
	eventBus := events.NewInMemoryBus(log)
	leadsModule := leads.NewModule(leads.ModuleDeps{
		Store:     store,
		Locker:    keylock.NewLocal(),
		Generator: ai.Unavailable{},
		Sender:    sms.NewClient(cfg, log),
		Bus:       eventBus,
		Validator: validator.New(),
		Config:    cfg,
		Log:       log,
	})

	sweeper := scheduler.NewRouteSweeper(store, leadsModule.Pipeline(), log, 0)

	total := 0
	for {
		considered, assigned := sweeper.Sweep(ctx)
		total += assigned
		if considered == 0 {
			log.Info("no routable leads left")
			break
		}
		if assigned == 0 {
			log.Info("no routing progress in batch, stopping", "considered", considered)
			break
		}
		time.Sleep(time.Second)
	}

	eventBus.Wait()
	leadsModule.Wait()
	log.Info("lead routing backfill complete", "assigned", total)
}
