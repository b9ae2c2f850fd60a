package repository

import (
	"time"

	"github.com/google/uuid"

	"leadhandler_backend/internal/leads/domain"
)

const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"

	SenderRoleAI    = "ai"
	SenderRoleAgent = "agent"
	SenderRoleLead  = "lead"
)

// Lead is a prospect reached over SMS.
type Lead struct {
	ID                uuid.UUID
	BrokerageID       *uuid.UUID
	Phone             string
	PhoneKey          string
	Status            domain.Status
	Intent            string
	Area              string
	Timeline          string
	Budget            string
	Notes             string
	Summary           string
	AssignedAgentID   *uuid.UUID
	QualifiedAt       *time.Time
	AssignedAt        *time.Time
	LastRoutedAt      *time.Time
	LastLeadMessageAt *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// HasAssignedAgent reports whether an agent owns the lead.
func (l Lead) HasAssignedAgent() bool {
	return l.AssignedAgentID != nil
}

// Message is one SMS in a lead conversation.
type Message struct {
	ID                uuid.UUID
	LeadID            uuid.UUID
	Direction         string
	Body              string
	SenderRole        string
	ProviderMessageID string
	CreatedAt         time.Time
}

// Agent is a salesperson eligible for lead assignment.
type Agent struct {
	ID          uuid.UUID
	BrokerageID uuid.UUID
	Name        string
	Phone       string
	Weight      int
	AlertsOptIn bool
	IsActive    bool
	CreatedAt   time.Time
}

// Brokerage is the routing group: a set of agents sharing one round-robin pointer.
type Brokerage struct {
	ID             uuid.UUID
	Name           string
	RRPointer      int64
	RRVersion      int64
	RoutingEnabled bool
	DefaultAgentID *uuid.UUID
}

type CreateMessageParams struct {
	LeadID            uuid.UUID
	Direction         string
	Body              string
	SenderRole        string
	ProviderMessageID string
}

type UpdateQualificationParams struct {
	LeadID      uuid.UUID
	Status      domain.Status
	Extraction  domain.Extraction
	Summary     string
	QualifiedAt *time.Time
}

type AssignLeadParams struct {
	LeadID     uuid.UUID
	AgentID    uuid.UUID
	AssignedAt time.Time
}
