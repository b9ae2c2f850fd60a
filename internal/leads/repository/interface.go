package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrDuplicateMessage is returned when a message with the same provider id is already stored.
	ErrDuplicateMessage = errors.New("duplicate provider message id")
	// ErrVersionConflict is returned when a pointer write lost its compare-and-swap.
	ErrVersionConflict = errors.New("routing pointer version conflict")
	// ErrLeadNotRoutable is returned when an assignment finds the lead no longer qualified and unassigned.
	ErrLeadNotRoutable = errors.New("lead is not routable")
)

// =====================================
// Segregated Interfaces (Interface Segregation Principle)
// =====================================

// MessageStore persists the conversation log.
type MessageStore interface {
	FindMessageByProviderID(ctx context.Context, providerMessageID string) (Message, error)
	// InsertMessage stores a message atomically; a non-empty provider id that is
	// already stored yields ErrDuplicateMessage and writes nothing.
	InsertMessage(ctx context.Context, params CreateMessageParams) (Message, error)
	// ListRecentMessages returns up to limit of the newest messages, oldest first.
	ListRecentMessages(ctx context.Context, leadID uuid.UUID, limit int) ([]Message, error)
}

// LeadStore reads and updates lead state.
type LeadStore interface {
	GetLead(ctx context.Context, id uuid.UUID) (Lead, error)
	FindLeadByPhoneKey(ctx context.Context, phoneKey string) (Lead, error)
	TouchLastMessage(ctx context.Context, id uuid.UUID, at time.Time) error
	UpdateQualification(ctx context.Context, params UpdateQualificationParams) (Lead, error)
	MarkOptedOut(ctx context.Context, id uuid.UUID, intent, note string) (Lead, error)
	// AssignLead sets the assignment only while the lead is qualified and unassigned.
	AssignLead(ctx context.Context, params AssignLeadParams) (Lead, error)
	ListRoutableLeads(ctx context.Context, limit int) ([]Lead, error)
}

// AgentReader lists agents for routing and notification.
type AgentReader interface {
	GetAgent(ctx context.Context, id uuid.UUID) (Agent, error)
	// ListActiveAgents returns active agents of a brokerage ordered by created_at, id.
	ListActiveAgents(ctx context.Context, brokerageID uuid.UUID) ([]Agent, error)
}

// GroupPointerStore owns the shared round-robin pointer.
type GroupPointerStore interface {
	GetBrokerage(ctx context.Context, id uuid.UUID) (Brokerage, error)
	// CompareAndSwapPointer writes pointer only if the stored version still equals
	// expectedVersion, incrementing the version. A lost race yields ErrVersionConflict.
	CompareAndSwapPointer(ctx context.Context, id uuid.UUID, expectedVersion, pointer int64) error
}

// Store is the full set of persistence operations used by the pipeline.
type Store interface {
	MessageStore
	LeadStore
	AgentReader
	GroupPointerStore
}

var (
	_ Store = (*Repository)(nil)
	_ Store = (*MemoryStore)(nil)
)
