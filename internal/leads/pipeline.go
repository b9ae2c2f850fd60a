// Package leads provides the SMS lead bounded context: inbound message
// handling, qualification, routing and agent alerts.
package leads

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"leadhandler_backend/internal/events"
	"leadhandler_backend/internal/leads/domain"
	"leadhandler_backend/internal/leads/qualify"
	"leadhandler_backend/internal/leads/reply"
	"leadhandler_backend/internal/leads/repository"
	"leadhandler_backend/internal/leads/routing"
	"leadhandler_backend/platform/keylock"
	"leadhandler_backend/platform/logger"
	"leadhandler_backend/platform/metrics"
	"leadhandler_backend/platform/phone"
)

const defaultHistoryLimit = 20

// InboundEvent is one SMS delivered by the transport.
type InboundEvent struct {
	From              string
	To                string
	Body              string
	ProviderMessageID string
}

// Outcome is how an inbound event was handled.
type Outcome string

const (
	OutcomeDuplicate     Outcome = "duplicate"
	OutcomeUnknownSender Outcome = "unknown_sender"
	OutcomeStoreOnly     Outcome = "store_only"
	OutcomeOptedOut      Outcome = "opted_out"
	OutcomeQualifying    Outcome = "qualifying"
	OutcomeQualified     Outcome = "qualified"
	OutcomeAssigned      Outcome = "assigned"
	OutcomeUnassigned    Outcome = "unassigned"
)

// Qualifier produces the reply and the guarded qualification decision.
type Qualifier interface {
	Qualify(ctx context.Context, lead repository.Lead, history []repository.Message) qualify.Result
}

// ReplySender sends and records an outbound message.
type ReplySender interface {
	Send(ctx context.Context, purpose reply.Purpose, leadID uuid.UUID, to, body string) (repository.Message, error)
}

// Router assigns a qualified lead.
type Router interface {
	Route(ctx context.Context, leadID uuid.UUID) (routing.Result, error)
}

// PipelineDeps are the collaborators of the inbound pipeline.
type PipelineDeps struct {
	Messages     repository.MessageStore
	Leads        repository.LeadStore
	Locker       keylock.Locker
	Qualifier    Qualifier
	Replies      ReplySender
	Router       Router
	Bus          events.Bus
	Log          *logger.Logger
	HistoryLimit int
}

// Pipeline handles inbound SMS for known leads, one lead at a time.
type Pipeline struct {
	messages     repository.MessageStore
	leads        repository.LeadStore
	locker       keylock.Locker
	qualifier    Qualifier
	replies      ReplySender
	router       Router
	bus          events.Bus
	log          *logger.Logger
	historyLimit int
	now          func() time.Time
}

func NewPipeline(deps PipelineDeps) *Pipeline {
	locker := deps.Locker
	if locker == nil {
		locker = keylock.NewLocal()
	}
	limit := deps.HistoryLimit
	if limit < 1 {
		limit = defaultHistoryLimit
	}
	return &Pipeline{
		messages:     deps.Messages,
		leads:        deps.Leads,
		locker:       locker,
		qualifier:    deps.Qualifier,
		replies:      deps.Replies,
		router:       deps.Router,
		bus:          deps.Bus,
		log:          deps.Log,
		historyLimit: limit,
		now:          time.Now,
	}
}

func leadLockKey(id uuid.UUID) string {
	return "lead:" + id.String()
}

// HandleInbound runs one delivery through idempotency, the state-machine gate,
// opt-out detection, qualification, the reply and routing. Only failures to
// look up the lead or persist the inbound message are returned; the transport
// may redeliver those safely.
func (p *Pipeline) HandleInbound(ctx context.Context, event InboundEvent) (outcome Outcome, err error) {
	ctx = logger.ContextWithValue(ctx, logger.ProviderMessageIDKey, event.ProviderMessageID)
	defer func() {
		if err == nil {
			metrics.InboundMessages.WithLabelValues(string(outcome)).Inc()
		} else {
			metrics.InboundMessages.WithLabelValues("error").Inc()
		}
	}()

	if event.ProviderMessageID != "" {
		_, err := p.messages.FindMessageByProviderID(ctx, event.ProviderMessageID)
		if err == nil {
			p.log.WithContext(ctx).Info("duplicate inbound message ignored")
			return OutcomeDuplicate, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return "", fmt.Errorf("check provider message id: %w", err)
		}
	}

	lead, err := p.leads.FindLeadByPhoneKey(ctx, phone.MatchKey(event.From))
	if errors.Is(err, repository.ErrNotFound) {
		p.log.WithContext(ctx).Warn("inbound message from unknown sender dropped", "from", event.From)
		return OutcomeUnknownSender, nil
	}
	if err != nil {
		return "", fmt.Errorf("lookup lead by phone: %w", err)
	}

	ctx = logger.ContextWithValue(ctx, logger.LeadIDKey, lead.ID.String())
	log := p.log.WithContext(ctx)

	unlock, err := p.locker.Lock(ctx, leadLockKey(lead.ID))
	if err != nil {
		return "", fmt.Errorf("lock lead: %w", err)
	}
	defer unlock()

	// The conditional insert decides idempotency; the lookup above only saves work.
	inbound, err := p.messages.InsertMessage(ctx, repository.CreateMessageParams{
		LeadID:            lead.ID,
		Direction:         repository.DirectionInbound,
		Body:              event.Body,
		SenderRole:        repository.SenderRoleLead,
		ProviderMessageID: event.ProviderMessageID,
	})
	if errors.Is(err, repository.ErrDuplicateMessage) {
		log.Info("duplicate inbound message lost insert race")
		return OutcomeDuplicate, nil
	}
	if err != nil {
		log.DatabaseError("insert_inbound_message", err)
		return "", fmt.Errorf("persist inbound message: %w", err)
	}

	if err := p.leads.TouchLastMessage(ctx, lead.ID, inbound.CreatedAt); err != nil {
		log.DatabaseError("touch_last_message", err)
	}

	// Re-read under the lock: a delivery that held it may have changed the lead.
	if fresh, err := p.leads.GetLead(ctx, lead.ID); err == nil {
		lead = fresh
	} else {
		log.DatabaseError("reload_lead", err)
	}

	if !domain.CanRunPipeline(lead.Status, lead.HasAssignedAgent()) {
		log.PipelineStep("store_only", lead.ID.String(), "status", string(lead.Status))
		return OutcomeStoreOnly, nil
	}

	if domain.IsOptOut(event.Body) {
		p.handleOptOut(ctx, log, lead)
		return OutcomeOptedOut, nil
	}

	return p.qualifyAndRoute(ctx, log, lead, inbound), nil
}

func (p *Pipeline) handleOptOut(ctx context.Context, log *logger.Logger, lead repository.Lead) {
	if _, err := p.replies.Send(ctx, reply.PurposeOptOut, lead.ID, lead.Phone, domain.OptOutConfirmation); err != nil {
		log.Error("opt-out confirmation not recorded", "error", err)
	}

	note := "Opted out at " + p.now().UTC().Format(time.RFC3339)
	if _, err := p.leads.MarkOptedOut(ctx, lead.ID, domain.IntentOptOut, note); err != nil {
		log.DatabaseError("mark_opted_out", err)
		return
	}
	log.PipelineStep("opted_out", lead.ID.String())

	if p.bus != nil {
		p.bus.Publish(ctx, events.LeadOptedOut{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    lead.ID,
			Phone:     lead.Phone,
		})
	}
}

func (p *Pipeline) qualifyAndRoute(ctx context.Context, log *logger.Logger, lead repository.Lead, inbound repository.Message) Outcome {
	history, err := p.messages.ListRecentMessages(ctx, lead.ID, p.historyLimit)
	if err != nil || len(history) == 0 {
		if err != nil {
			log.DatabaseError("list_recent_messages", err)
		}
		history = []repository.Message{inbound}
	}

	result := p.qualifier.Qualify(ctx, lead, history)
	log.PipelineStep("qualified_check", lead.ID.String(),
		"qualified", result.Qualified,
		"modelQualified", result.ModelQualified,
		"fallback", result.Fallback,
	)

	if _, err := p.replies.Send(ctx, reply.PurposeQualification, lead.ID, lead.Phone, result.Reply); err != nil {
		log.Error("qualification reply not recorded", "error", err)
	}

	next := domain.NextStatusAfterReply(lead.Status, result.Qualified)
	if !domain.CanTransition(lead.Status, next) {
		log.Warn("status transition rejected", "from", string(lead.Status), "to", string(next))
		return OutcomeQualifying
	}

	params := repository.UpdateQualificationParams{
		LeadID:     lead.ID,
		Status:     next,
		Extraction: result.Extraction,
	}
	if result.Qualified {
		now := p.now().UTC()
		params.Summary = result.Summary
		params.QualifiedAt = &now
	}
	updated, err := p.leads.UpdateQualification(ctx, params)
	if err != nil {
		log.DatabaseError("update_qualification", err)
		return OutcomeQualifying
	}

	if updated.Status != domain.StatusQualified {
		return OutcomeQualifying
	}

	if lead.Status != domain.StatusQualified && p.bus != nil {
		p.bus.Publish(ctx, events.LeadQualified{
			BaseEvent:   events.NewBaseEvent(),
			LeadID:      updated.ID,
			BrokerageID: updated.BrokerageID,
			Summary:     updated.Summary,
		})
	}

	if p.router == nil {
		return OutcomeQualified
	}
	routed, err := p.router.Route(ctx, updated.ID)
	if err != nil {
		log.Error("routing failed", "error", err)
		return OutcomeUnassigned
	}
	switch {
	case routed.Assigned():
		return OutcomeAssigned
	case routed.Outcome == routing.OutcomeNotRoutable:
		return OutcomeQualified
	default:
		return OutcomeUnassigned
	}
}

// Route runs the routing engine for one lead under the per-lead lock.
func (p *Pipeline) Route(ctx context.Context, leadID uuid.UUID) (routing.Result, error) {
	if p.router == nil {
		return routing.Result{LeadID: leadID, Outcome: routing.OutcomeUnassigned}, nil
	}
	unlock, err := p.locker.Lock(ctx, leadLockKey(leadID))
	if err != nil {
		return routing.Result{}, fmt.Errorf("lock lead: %w", err)
	}
	defer unlock()
	return p.router.Route(ctx, leadID)
}

// RouteQualified routes a lead and reports whether it was assigned.
func (p *Pipeline) RouteQualified(ctx context.Context, leadID uuid.UUID) (bool, error) {
	result, err := p.Route(ctx, leadID)
	if err != nil {
		return false, err
	}
	return result.Assigned(), nil
}
