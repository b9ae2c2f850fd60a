// Package routing assigns qualified leads to agents with a weighted round
// robin over each brokerage's shared pointer.
package routing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"leadhandler_backend/internal/events"
	"leadhandler_backend/internal/leads/domain"
	"leadhandler_backend/internal/leads/repository"
	"leadhandler_backend/platform/logger"
	"leadhandler_backend/platform/metrics"
)

// Outcome is the result category of one routing attempt.
type Outcome string

const (
	OutcomeAssigned        Outcome = "assigned"
	OutcomeAssignedDefault Outcome = "assigned_default"
	OutcomeUnassigned      Outcome = "unassigned"
	// OutcomeNotRoutable means the lead changed underneath the attempt.
	OutcomeNotRoutable Outcome = "not_routable"
)

// Reasons reported with OutcomeUnassigned.
const (
	ReasonNotQualified      = "not_qualified"
	ReasonAlreadyAssigned   = "already_assigned"
	ReasonNoGroup           = "no_group"
	ReasonGroupUnavailable  = "group_unavailable"
	ReasonRoutingDisabled   = "routing_disabled"
	ReasonAgentsUnavailable = "agents_unavailable"
	ReasonNoActiveAgents    = "no_active_agents"
)

// Result describes one routing attempt.
type Result struct {
	Outcome Outcome
	Reason  string
	LeadID  uuid.UUID
	AgentID *uuid.UUID
	// Pointer is the pointer value the selection used.
	Pointer int64
	// PointerAdvanced is false when the compare-and-swap lost or was skipped.
	PointerAdvanced bool
}

// Assigned reports whether the lead now has an agent.
func (r Result) Assigned() bool {
	return r.Outcome == OutcomeAssigned || r.Outcome == OutcomeAssignedDefault
}

type Engine struct {
	leads  repository.LeadStore
	agents repository.AgentReader
	groups repository.GroupPointerStore
	bus    events.Bus
	log    *logger.Logger
	now    func() time.Time
}

func New(leads repository.LeadStore, agents repository.AgentReader, groups repository.GroupPointerStore, bus events.Bus, log *logger.Logger) *Engine {
	return &Engine{
		leads:  leads,
		agents: agents,
		groups: groups,
		bus:    bus,
		log:    log,
		now:    time.Now,
	}
}

// Route assigns leadID when it is qualified and its brokerage routes. Only a
// missing lead or a failed assignment write is returned as an error; every
// other unmet precondition is an unassigned result.
func (e *Engine) Route(ctx context.Context, leadID uuid.UUID) (Result, error) {
	ctx = logger.ContextWithValue(ctx, logger.LeadIDKey, leadID.String())
	log := e.log.WithContext(ctx)
	result := Result{LeadID: leadID, Outcome: OutcomeUnassigned}

	lead, err := e.leads.GetLead(ctx, leadID)
	if err != nil {
		return result, fmt.Errorf("load lead for routing: %w", err)
	}
	if lead.HasAssignedAgent() {
		return e.unassigned(log, result, ReasonAlreadyAssigned), nil
	}
	if lead.Status != domain.StatusQualified {
		return e.unassigned(log, result, ReasonNotQualified), nil
	}
	if lead.BrokerageID == nil {
		return e.unassigned(log, result, ReasonNoGroup), nil
	}

	// Pointer and version come from one read taken before selection; the
	// compare-and-swap below is conditioned on that snapshot.
	group, err := e.groups.GetBrokerage(ctx, *lead.BrokerageID)
	if err != nil {
		log.Error("routing group lookup failed", "brokerageId", lead.BrokerageID.String(), "error", err)
		return e.unassigned(log, result, ReasonGroupUnavailable), nil
	}
	if !group.RoutingEnabled {
		return e.unassigned(log, result, ReasonRoutingDisabled), nil
	}

	agents, err := e.agents.ListActiveAgents(ctx, group.ID)
	if err != nil {
		log.Error("active agent lookup failed", "brokerageId", group.ID.String(), "error", err)
		return e.unassigned(log, result, ReasonAgentsUnavailable), nil
	}

	if len(agents) == 0 {
		if group.DefaultAgentID == nil {
			return e.unassigned(log, result, ReasonNoActiveAgents), nil
		}
		return e.assign(ctx, log, lead, group, *group.DefaultAgentID, result, true)
	}

	candidates := make([]domain.Candidate[uuid.UUID], 0, len(agents))
	for _, a := range agents {
		candidates = append(candidates, domain.Candidate[uuid.UUID]{ID: a.ID, Weight: a.Weight})
	}
	list := domain.BuildWeightedList(candidates)
	agentID, _ := domain.SelectAt(list, group.RRPointer)
	result.Pointer = group.RRPointer

	return e.assign(ctx, log, lead, group, agentID, result, false)
}

func (e *Engine) assign(ctx context.Context, log *logger.Logger, lead repository.Lead, group repository.Brokerage, agentID uuid.UUID, result Result, viaDefault bool) (Result, error) {
	now := e.now().UTC()
	assigned, err := e.leads.AssignLead(ctx, repository.AssignLeadParams{
		LeadID:     lead.ID,
		AgentID:    agentID,
		AssignedAt: now,
	})
	if errors.Is(err, repository.ErrLeadNotRoutable) {
		log.Info("lead changed before assignment, skipping")
		result.Outcome = OutcomeNotRoutable
		metrics.Routing.WithLabelValues(string(result.Outcome)).Inc()
		return result, nil
	}
	if err != nil {
		log.DatabaseError("assign_lead", err)
		return result, fmt.Errorf("assign lead: %w", err)
	}

	result.AgentID = &agentID
	result.Outcome = OutcomeAssigned
	if viaDefault {
		result.Outcome = OutcomeAssignedDefault
	} else {
		result.PointerAdvanced = e.advancePointer(ctx, log, group)
	}

	log.Info("lead assigned",
		"agentId", agentID.String(),
		"brokerageId", group.ID.String(),
		"outcome", string(result.Outcome),
		"pointer", result.Pointer,
		"pointerAdvanced", result.PointerAdvanced,
	)
	metrics.Routing.WithLabelValues(string(result.Outcome)).Inc()

	if e.bus != nil {
		e.bus.Publish(ctx, events.LeadAssigned{
			BaseEvent:   events.NewBaseEvent(),
			LeadID:      assigned.ID,
			AgentID:     agentID,
			BrokerageID: group.ID,
			LeadPhone:   assigned.Phone,
			Summary:     assigned.Summary,
			ViaDefault:  viaDefault,
			AssignedAt:  now,
		})
	}
	return result, nil
}

// advancePointer writes pointer+1 conditioned on the observed version. A lost
// race is logged and counted; the assignment stands either way.
func (e *Engine) advancePointer(ctx context.Context, log *logger.Logger, group repository.Brokerage) bool {
	err := e.groups.CompareAndSwapPointer(ctx, group.ID, group.RRVersion, group.RRPointer+1)
	if errors.Is(err, repository.ErrVersionConflict) {
		metrics.PointerConflicts.Inc()
		log.Warn("round-robin pointer conflict",
			"brokerageId", group.ID.String(),
			"observedVersion", group.RRVersion,
			"observedPointer", group.RRPointer,
		)
		return false
	}
	if err != nil {
		log.Error("round-robin pointer update failed", "brokerageId", group.ID.String(), "error", err)
		return false
	}
	return true
}

func (e *Engine) unassigned(log *logger.Logger, result Result, reason string) Result {
	result.Outcome = OutcomeUnassigned
	result.Reason = reason
	log.Info("lead left unassigned", "reason", reason)
	metrics.Routing.WithLabelValues(string(OutcomeUnassigned)).Inc()
	return result
}
