// Package notify alerts agents about newly assigned leads. Alerts are fire
// and forget: failures are logged and never retried.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"leadhandler_backend/internal/events"
	"leadhandler_backend/internal/leads/repository"
	"leadhandler_backend/internal/scheduler"
	"leadhandler_backend/internal/sms"
	"leadhandler_backend/platform/logger"
	"leadhandler_backend/platform/metrics"
	"leadhandler_backend/platform/phone"
	"leadhandler_backend/platform/sanitize"
)

const (
	maxAlertLength = 320
	alertTimeout   = 30 * time.Second
	purposeAlert   = "agent_alert"
)

var (
	// ErrAlertSkipped is returned when the agent cannot or does not want to be alerted.
	ErrAlertSkipped = errors.New("agent alert skipped")
	// ErrAlertRejected is returned when the transport did not accept the alert.
	ErrAlertRejected = errors.New("agent alert not accepted by transport")
)

// Assignment identifies a lead that was just handed to an agent.
type Assignment struct {
	LeadID    uuid.UUID
	AgentID   uuid.UUID
	LeadPhone string
	Summary   string
}

// Notifier dispatches an alert without blocking the caller.
type Notifier interface {
	Notify(ctx context.Context, a Assignment)
}

// Alerter performs the actual delivery.
type Alerter struct {
	agents repository.AgentReader
	sender sms.Sender
	log    *logger.Logger
}

func NewAlerter(agents repository.AgentReader, sender sms.Sender, log *logger.Logger) *Alerter {
	return &Alerter{agents: agents, sender: sender, log: log}
}

// Deliver sends the alert when the agent has a phone and opted in to alerts.
func (a *Alerter) Deliver(ctx context.Context, assignment Assignment) error {
	agent, err := a.agents.GetAgent(ctx, assignment.AgentID)
	if err != nil {
		return fmt.Errorf("load agent: %w", err)
	}
	if strings.TrimSpace(agent.Phone) == "" || !agent.AlertsOptIn {
		metrics.SMSSends.WithLabelValues(purposeAlert, "skipped").Inc()
		return ErrAlertSkipped
	}

	result, err := a.sender.Send(ctx, agent.Phone, AlertBody(assignment))
	switch {
	case err != nil:
		metrics.SMSSends.WithLabelValues(purposeAlert, "error").Inc()
		return fmt.Errorf("send agent alert: %w", err)
	case !result.Accepted:
		metrics.SMSSends.WithLabelValues(purposeAlert, "rejected").Inc()
		return ErrAlertRejected
	}
	metrics.SMSSends.WithLabelValues(purposeAlert, "ok").Inc()
	a.log.Info("agent alerted", "leadId", assignment.LeadID.String(), "agentId", agent.ID.String())
	return nil
}

// DeliverAlert adapts Deliver to the queued alert payload.
func (a *Alerter) DeliverAlert(ctx context.Context, payload scheduler.AgentAlertPayload) error {
	leadID, err := uuid.Parse(payload.LeadID)
	if err != nil {
		return fmt.Errorf("invalid lead id: %w", err)
	}
	agentID, err := uuid.Parse(payload.AgentID)
	if err != nil {
		return fmt.Errorf("invalid agent id: %w", err)
	}
	err = a.Deliver(ctx, Assignment{
		LeadID:    leadID,
		AgentID:   agentID,
		LeadPhone: payload.LeadPhone,
		Summary:   payload.Summary,
	})
	if errors.Is(err, ErrAlertSkipped) {
		return nil
	}
	return err
}

// AlertBody renders the SMS sent to the agent.
func AlertBody(a Assignment) string {
	summary := strings.TrimSpace(a.Summary)
	if summary == "" {
		summary = "New lead"
	}
	body := fmt.Sprintf("New lead assigned: %s. Phone: %s", summary, phone.NormalizeE164(a.LeadPhone))
	return sanitize.Truncate(body, maxAlertLength)
}

// Local delivers alerts on detached goroutines within this process.
type Local struct {
	alerter *Alerter
	log     *logger.Logger
	wg      sync.WaitGroup
}

func NewLocal(alerter *Alerter, log *logger.Logger) *Local {
	return &Local{alerter: alerter, log: log}
}

func (l *Local) Notify(ctx context.Context, a Assignment) {
	detached := context.WithoutCancel(ctx)
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		ctx, cancel := context.WithTimeout(detached, alertTimeout)
		defer cancel()
		if err := l.alerter.Deliver(ctx, a); err != nil && !errors.Is(err, ErrAlertSkipped) {
			l.log.Warn("agent alert failed", "leadId", a.LeadID.String(), "agentId", a.AgentID.String(), "error", err)
		}
	}()
}

// Wait blocks until all in-flight alerts finished.
func (l *Local) Wait() {
	l.wg.Wait()
}

// Queued hands alerts to the task worker.
type Queued struct {
	queue scheduler.AlertEnqueuer
	log   *logger.Logger
}

func NewQueued(queue scheduler.AlertEnqueuer, log *logger.Logger) *Queued {
	return &Queued{queue: queue, log: log}
}

func (q *Queued) Notify(ctx context.Context, a Assignment) {
	err := q.queue.EnqueueAgentAlert(context.WithoutCancel(ctx), scheduler.AgentAlertPayload{
		LeadID:    a.LeadID.String(),
		AgentID:   a.AgentID.String(),
		LeadPhone: a.LeadPhone,
		Summary:   a.Summary,
	})
	if err != nil {
		q.log.Warn("agent alert enqueue failed", "leadId", a.LeadID.String(), "agentId", a.AgentID.String(), "error", err)
	}
}

// Subscribe wires n to LeadAssigned events.
func Subscribe(bus events.Bus, n Notifier) {
	bus.Subscribe(events.LeadAssigned{}.EventName(), events.HandlerFunc(func(ctx context.Context, e events.Event) error {
		assigned, ok := e.(events.LeadAssigned)
		if !ok {
			return fmt.Errorf("unexpected event type %T", e)
		}
		n.Notify(ctx, Assignment{
			LeadID:    assigned.LeadID,
			AgentID:   assigned.AgentID,
			LeadPhone: assigned.LeadPhone,
			Summary:   assigned.Summary,
		})
		return nil
	}))
}
