package scheduler

import (
	"context"
	"fmt"

	"leadhandler_backend/platform/config"
	"leadhandler_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// AlertDeliverer sends one agent alert.
type AlertDeliverer interface {
	DeliverAlert(ctx context.Context, payload AgentAlertPayload) error
}

type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	alerter AlertDeliverer
	log     *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, alerter AlertDeliverer, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:  server,
		mux:     mux,
		alerter: alerter,
		log:     log,
	}

	mux.HandleFunc(TaskAgentAlert, w.handleAgentAlert)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

// handleAgentAlert never reports failure to asynq: alerts are best effort.
func (w *Worker) handleAgentAlert(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseAgentAlertPayload(task)
	if err != nil {
		w.log.Warn("invalid agent alert payload", "error", err)
		return nil
	}

	if err := w.alerter.DeliverAlert(ctx, payload); err != nil {
		w.log.Warn("agent alert failed", "leadId", payload.LeadID, "agentId", payload.AgentID, "error", err)
	}
	return nil
}
