// This file defines the module that encapsulates all leads setup and route registration.
package leads

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"leadhandler_backend/internal/events"
	apphttp "leadhandler_backend/internal/http"
	"leadhandler_backend/internal/leads/handler"
	"leadhandler_backend/internal/leads/notify"
	"leadhandler_backend/internal/leads/qualify"
	"leadhandler_backend/internal/leads/reply"
	"leadhandler_backend/internal/leads/repository"
	"leadhandler_backend/internal/leads/routing"
	"leadhandler_backend/internal/leads/transport"
	"leadhandler_backend/internal/scheduler"
	"leadhandler_backend/internal/sms"
	"leadhandler_backend/platform/ai"
	"leadhandler_backend/platform/apperr"
	"leadhandler_backend/platform/config"
	"leadhandler_backend/platform/keylock"
	"leadhandler_backend/platform/logger"
	"leadhandler_backend/platform/validator"
)

// ModuleDeps are the infrastructure pieces the composition root provides.
type ModuleDeps struct {
	Store     repository.Store
	Locker    keylock.Locker
	Generator ai.TextGenerator
	Sender    sms.Sender
	Bus       events.Bus
	// Alerts queues agent alerts on the task worker; nil alerts in-process.
	Alerts    scheduler.AlertEnqueuer
	Validator *validator.Validator
	Config    config.PipelineConfig
	Log       *logger.Logger
}

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler  *handler.Handler
	pipeline *Pipeline
	alerter  *notify.Alerter
	notifier notify.Notifier
}

// NewModule creates and initializes the leads module with all its dependencies.
func NewModule(deps ModuleDeps) *Module {
	replies := reply.New(deps.Sender, deps.Store, deps.Log)
	router := routing.New(deps.Store, deps.Store, deps.Store, deps.Bus, deps.Log)

	pipeline := NewPipeline(PipelineDeps{
		Messages:     deps.Store,
		Leads:        deps.Store,
		Locker:       deps.Locker,
		Qualifier:    qualify.New(deps.Generator, deps.Log),
		Replies:      replies,
		Router:       router,
		Bus:          deps.Bus,
		Log:          deps.Log,
		HistoryLimit: deps.Config.GetQualifyHistoryLimit(),
	})

	// Agent alerts ride on LeadAssigned so every routing entry point triggers them.
	alerter := notify.NewAlerter(deps.Store, deps.Sender, deps.Log)
	var notifier notify.Notifier
	if deps.Alerts != nil {
		notifier = notify.NewQueued(deps.Alerts, deps.Log)
	} else {
		notifier = notify.NewLocal(alerter, deps.Log)
	}
	notify.Subscribe(deps.Bus, notifier)

	adapter := httpAdapter{pipeline: pipeline}
	return &Module{
		handler:  handler.New(adapter, adapter, deps.Validator),
		pipeline: pipeline,
		alerter:  alerter,
		notifier: notifier,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// RegisterRoutes mounts leads routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Webhooks.POST("/sms/inbound", ctx.TwilioSignature, m.handler.HandleTwilioInbound)
	ctx.Webhooks.POST("/sms/events", ctx.APIKey, m.handler.HandleInboundEvent)
	ctx.Internal.POST("/leads/:leadId/route", m.handler.RouteLead)
}

// Pipeline exposes the inbound pipeline for batch jobs.
func (m *Module) Pipeline() *Pipeline {
	return m.pipeline
}

// Alerter exposes alert delivery for the task worker.
func (m *Module) Alerter() *notify.Alerter {
	return m.alerter
}

// Wait blocks until in-process alerts finished. Queued alerts are not tracked.
func (m *Module) Wait() {
	if local, ok := m.notifier.(*notify.Local); ok {
		local.Wait()
	}
}

// httpAdapter maps pipeline results onto the handler's transport types.
type httpAdapter struct {
	pipeline *Pipeline
}

func (a httpAdapter) ProcessInbound(ctx context.Context, req transport.InboundSMSRequest) (string, error) {
	outcome, err := a.pipeline.HandleInbound(ctx, InboundEvent{
		From:              req.From,
		To:                req.To,
		Body:              req.Body,
		ProviderMessageID: req.MessageSID,
	})
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "inbound message not processed", err)
	}
	return string(outcome), nil
}

func (a httpAdapter) RouteLead(ctx context.Context, leadID uuid.UUID) (transport.RouteLeadResponse, error) {
	result, err := a.pipeline.Route(ctx, leadID)
	if errors.Is(err, repository.ErrNotFound) {
		return transport.RouteLeadResponse{}, apperr.NotFound("lead not found")
	}
	if err != nil {
		return transport.RouteLeadResponse{}, apperr.Wrap(apperr.KindInternal, "routing failed", err)
	}

	resp := transport.RouteLeadResponse{
		LeadID:          leadID.String(),
		Outcome:         string(result.Outcome),
		Reason:          result.Reason,
		PointerAdvanced: result.PointerAdvanced,
	}
	if result.AgentID != nil {
		id := result.AgentID.String()
		resp.AgentID = &id
	}
	return resp, nil
}
