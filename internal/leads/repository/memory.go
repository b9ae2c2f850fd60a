package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"leadhandler_backend/internal/leads/domain"
	"leadhandler_backend/platform/phone"
)

// MemoryStore is a process-local Store with the same conditional-write
// semantics as the Postgres repository. It backs tests and local runs.
type MemoryStore struct {
	mu         sync.Mutex
	now        func() time.Time
	leads      map[uuid.UUID]Lead
	messages   []Message
	agents     map[uuid.UUID]Agent
	brokerages map[uuid.UUID]Brokerage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:        time.Now,
		leads:      make(map[uuid.UUID]Lead),
		agents:     make(map[uuid.UUID]Agent),
		brokerages: make(map[uuid.UUID]Brokerage),
	}
}

// PutLead inserts or replaces a lead, filling id, phone key and timestamps when empty.
func (s *MemoryStore) PutLead(lead Lead) Lead {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lead.ID == uuid.Nil {
		lead.ID = uuid.New()
	}
	if lead.PhoneKey == "" {
		lead.PhoneKey = phone.MatchKey(lead.Phone)
	}
	if lead.Status == "" {
		lead.Status = domain.StatusNew
	}
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = s.now()
	}
	lead.UpdatedAt = lead.CreatedAt
	s.leads[lead.ID] = lead
	return lead
}

// PutAgent inserts or replaces an agent.
func (s *MemoryStore) PutAgent(agent Agent) Agent {
	s.mu.Lock()
	defer s.mu.Unlock()
	if agent.ID == uuid.Nil {
		agent.ID = uuid.New()
	}
	if agent.CreatedAt.IsZero() {
		agent.CreatedAt = s.now()
	}
	s.agents[agent.ID] = agent
	return agent
}

// PutBrokerage inserts or replaces a brokerage.
func (s *MemoryStore) PutBrokerage(b Brokerage) Brokerage {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	s.brokerages[b.ID] = b
	return b
}

// Messages returns a snapshot of all stored messages of a lead in insertion order.
func (s *MemoryStore) Messages(leadID uuid.UUID) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, 0)
	for _, m := range s.messages {
		if m.LeadID == leadID {
			out = append(out, m)
		}
	}
	return out
}

func (s *MemoryStore) FindMessageByProviderID(_ context.Context, providerMessageID string) (Message, error) {
	if providerMessageID == "" {
		return Message{}, ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.ProviderMessageID == providerMessageID {
			return m, nil
		}
	}
	return Message{}, ErrNotFound
}

func (s *MemoryStore) InsertMessage(_ context.Context, params CreateMessageParams) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if params.ProviderMessageID != "" {
		for _, m := range s.messages {
			if m.ProviderMessageID == params.ProviderMessageID {
				return Message{}, ErrDuplicateMessage
			}
		}
	}
	msg := Message{
		ID:                uuid.New(),
		LeadID:            params.LeadID,
		Direction:         params.Direction,
		Body:              params.Body,
		SenderRole:        params.SenderRole,
		ProviderMessageID: params.ProviderMessageID,
		CreatedAt:         s.now(),
	}
	s.messages = append(s.messages, msg)
	return msg, nil
}

func (s *MemoryStore) ListRecentMessages(_ context.Context, leadID uuid.UUID, limit int) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, 0)
	for _, m := range s.messages {
		if m.LeadID == leadID {
			out = append(out, m)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *MemoryStore) GetLead(_ context.Context, id uuid.UUID) (Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leads[id]
	if !ok {
		return Lead{}, ErrNotFound
	}
	return lead, nil
}

func (s *MemoryStore) FindLeadByPhoneKey(_ context.Context, phoneKey string) (Lead, error) {
	if phoneKey == "" {
		return Lead{}, ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var found *Lead
	for _, lead := range s.leads {
		if lead.PhoneKey != phoneKey {
			continue
		}
		if found == nil || lead.CreatedAt.After(found.CreatedAt) {
			l := lead
			found = &l
		}
	}
	if found == nil {
		return Lead{}, ErrNotFound
	}
	return *found, nil
}

func (s *MemoryStore) TouchLastMessage(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leads[id]
	if !ok {
		return ErrNotFound
	}
	lead.LastLeadMessageAt = &at
	lead.UpdatedAt = s.now()
	s.leads[id] = lead
	return nil
}

func (s *MemoryStore) UpdateQualification(_ context.Context, params UpdateQualificationParams) (Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leads[params.LeadID]
	if !ok || lead.AssignedAgentID != nil {
		return Lead{}, ErrNotFound
	}
	e := params.Extraction.Normalized()
	lead.Status = params.Status
	lead.Intent = keep(e.Intent, lead.Intent)
	lead.Area = keep(e.Area, lead.Area)
	lead.Timeline = keep(e.Timeline, lead.Timeline)
	lead.Budget = keep(e.Budget, lead.Budget)
	lead.Notes = keep(e.Notes, lead.Notes)
	lead.Summary = keep(params.Summary, lead.Summary)
	if lead.QualifiedAt == nil && params.QualifiedAt != nil {
		at := *params.QualifiedAt
		lead.QualifiedAt = &at
	}
	lead.UpdatedAt = s.now()
	s.leads[lead.ID] = lead
	return lead, nil
}

func (s *MemoryStore) MarkOptedOut(_ context.Context, id uuid.UUID, intent, note string) (Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leads[id]
	if !ok || lead.AssignedAgentID != nil {
		return Lead{}, ErrNotFound
	}
	lead.Status = domain.StatusDoNotContact
	lead.Intent = intent
	if strings.TrimSpace(lead.Notes) == "" {
		lead.Notes = note
	} else {
		lead.Notes = lead.Notes + "\n" + note
	}
	lead.UpdatedAt = s.now()
	s.leads[id] = lead
	return lead, nil
}

func (s *MemoryStore) AssignLead(_ context.Context, params AssignLeadParams) (Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leads[params.LeadID]
	if !ok || lead.Status != domain.StatusQualified || lead.AssignedAgentID != nil {
		return Lead{}, ErrLeadNotRoutable
	}
	agentID := params.AgentID
	at := params.AssignedAt
	lead.Status = domain.StatusAssigned
	lead.AssignedAgentID = &agentID
	lead.AssignedAt = &at
	lead.LastRoutedAt = &at
	lead.UpdatedAt = s.now()
	s.leads[lead.ID] = lead
	return lead, nil
}

func (s *MemoryStore) ListRoutableLeads(_ context.Context, limit int) ([]Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Lead, 0)
	for _, lead := range s.leads {
		if lead.Status != domain.StatusQualified || lead.AssignedAgentID != nil || lead.BrokerageID == nil {
			continue
		}
		if b, ok := s.brokerages[*lead.BrokerageID]; !ok || !b.RoutingEnabled {
			continue
		}
		out = append(out, lead)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) GetAgent(_ context.Context, id uuid.UUID) (Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	agent, ok := s.agents[id]
	if !ok {
		return Agent{}, ErrNotFound
	}
	return agent, nil
}

func (s *MemoryStore) ListActiveAgents(_ context.Context, brokerageID uuid.UUID) ([]Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Agent, 0)
	for _, agent := range s.agents {
		if agent.BrokerageID == brokerageID && agent.IsActive {
			out = append(out, agent)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (s *MemoryStore) GetBrokerage(_ context.Context, id uuid.UUID) (Brokerage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.brokerages[id]
	if !ok {
		return Brokerage{}, ErrNotFound
	}
	return b, nil
}

func (s *MemoryStore) CompareAndSwapPointer(_ context.Context, id uuid.UUID, expectedVersion, pointer int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.brokerages[id]
	if !ok || b.RRVersion != expectedVersion {
		return ErrVersionConflict
	}
	b.RRPointer = pointer
	b.RRVersion++
	s.brokerages[id] = b
	return nil
}

func keep(next, current string) string {
	if next == "" {
		return current
	}
	return next
}
