// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"leadhandler_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Lead Domain Events
// =============================================================================

// LeadQualified is published when the completeness guard first passes for a lead.
type LeadQualified struct {
	BaseEvent
	LeadID      uuid.UUID  `json:"leadId"`
	BrokerageID *uuid.UUID `json:"brokerageId,omitempty"`
	Summary     string     `json:"summary"`
}

func (e LeadQualified) EventName() string { return "leads.lead.qualified" }

// LeadAssigned is published after the routing engine persisted an assignment.
type LeadAssigned struct {
	BaseEvent
	LeadID      uuid.UUID `json:"leadId"`
	AgentID     uuid.UUID `json:"agentId"`
	BrokerageID uuid.UUID `json:"brokerageId"`
	LeadPhone   string    `json:"leadPhone"`
	Summary     string    `json:"summary"`
	// ViaDefault is true when no active agent existed and the brokerage default was used.
	ViaDefault bool      `json:"viaDefault"`
	AssignedAt time.Time `json:"assignedAt"`
}

func (e LeadAssigned) EventName() string { return "leads.lead.assigned" }

// LeadOptedOut is published when a lead unsubscribed.
type LeadOptedOut struct {
	BaseEvent
	LeadID uuid.UUID `json:"leadId"`
	Phone  string    `json:"phone"`
}

func (e LeadOptedOut) EventName() string { return "leads.lead.opted_out" }
