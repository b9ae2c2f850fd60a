package routing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"leadhandler_backend/internal/events"
	"leadhandler_backend/internal/leads/domain"
	"leadhandler_backend/internal/leads/repository"
	"leadhandler_backend/platform/logger"
)

type fixture struct {
	store     *repository.MemoryStore
	brokerage repository.Brokerage
	base      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	return &fixture{
		store:     store,
		brokerage: store.PutBrokerage(repository.Brokerage{Name: "Acme Realty", RoutingEnabled: true}),
		base:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (f *fixture) agent(name string, weight int, offset time.Duration) repository.Agent {
	return f.store.PutAgent(repository.Agent{
		BrokerageID: f.brokerage.ID,
		Name:        name,
		Phone:       "+12015550150",
		Weight:      weight,
		AlertsOptIn: true,
		IsActive:    true,
		CreatedAt:   f.base.Add(offset),
	})
}

func (f *fixture) qualifiedLead() repository.Lead {
	id := f.brokerage.ID
	return f.store.PutLead(repository.Lead{
		BrokerageID: &id,
		Phone:       "+12015550123",
		Status:      domain.StatusQualified,
		Summary:     "Buying in Heights, timeline: within a month",
	})
}

type conflictingGroups struct {
	repository.GroupPointerStore
	calls int
}

func (c *conflictingGroups) CompareAndSwapPointer(context.Context, uuid.UUID, int64, int64) error {
	c.calls++
	return repository.ErrVersionConflict
}

func TestRouteDistributesByWeight(t *testing.T) {
	f := newFixture(t)
	a := f.agent("A", 1, 0)
	b := f.agent("B", 3, time.Minute)
	engine := New(f.store, f.store, f.store, nil, logger.Nop())

	counts := map[uuid.UUID]int{}
	var sequence []uuid.UUID
	for i := 0; i < 4; i++ {
		lead := f.qualifiedLead()
		result, err := engine.Route(context.Background(), lead.ID)
		if err != nil {
			t.Fatalf("route %d: %v", i, err)
		}
		if result.Outcome != OutcomeAssigned || result.AgentID == nil {
			t.Fatalf("route %d: unexpected result %+v", i, result)
		}
		if result.Pointer != int64(i) || !result.PointerAdvanced {
			t.Fatalf("route %d: expected pointer %d advanced, got %+v", i, i, result)
		}
		counts[*result.AgentID]++
		sequence = append(sequence, *result.AgentID)
	}

	if counts[a.ID] != 1 || counts[b.ID] != 3 {
		t.Fatalf("expected A x1 and B x3, got A=%d B=%d", counts[a.ID], counts[b.ID])
	}
	want := []uuid.UUID{a.ID, b.ID, b.ID, b.ID}
	for i := range want {
		if sequence[i] != want[i] {
			t.Fatalf("position %d: expected %s, got %s", i, want[i], sequence[i])
		}
	}

	group, _ := f.store.GetBrokerage(context.Background(), f.brokerage.ID)
	if group.RRPointer != 4 || group.RRVersion != 4 {
		t.Fatalf("expected pointer and version 4, got %+v", group)
	}
}

func TestRoutePersistsAssignment(t *testing.T) {
	f := newFixture(t)
	agent := f.agent("A", 1, 0)
	lead := f.qualifiedLead()

	if _, err := New(f.store, f.store, f.store, nil, logger.Nop()).Route(context.Background(), lead.ID); err != nil {
		t.Fatalf("route: %v", err)
	}

	got, _ := f.store.GetLead(context.Background(), lead.ID)
	if got.Status != domain.StatusAssigned || got.AssignedAgentID == nil || *got.AssignedAgentID != agent.ID {
		t.Fatalf("unexpected lead state %+v", got)
	}
	if got.AssignedAt == nil || got.LastRoutedAt == nil {
		t.Fatal("expected assigned_at and last_routed_at to be set")
	}
}

func TestRouteUsesDefaultAgentWithoutTouchingPointer(t *testing.T) {
	f := newFixture(t)
	fallback := f.store.PutAgent(repository.Agent{BrokerageID: f.brokerage.ID, Name: "Broker", IsActive: false})
	f.brokerage.DefaultAgentID = &fallback.ID
	f.brokerage.RRPointer = 7
	f.brokerage.RRVersion = 3
	f.store.PutBrokerage(f.brokerage)
	lead := f.qualifiedLead()

	result, err := New(f.store, f.store, f.store, nil, logger.Nop()).Route(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if result.Outcome != OutcomeAssignedDefault || result.AgentID == nil || *result.AgentID != fallback.ID {
		t.Fatalf("unexpected result %+v", result)
	}
	group, _ := f.store.GetBrokerage(context.Background(), f.brokerage.ID)
	if group.RRPointer != 7 || group.RRVersion != 3 {
		t.Fatalf("pointer must be untouched, got %+v", group)
	}
}

func TestRouteWithoutAgentsLeavesLeadQualified(t *testing.T) {
	f := newFixture(t)
	lead := f.qualifiedLead()

	result, err := New(f.store, f.store, f.store, nil, logger.Nop()).Route(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if result.Outcome != OutcomeUnassigned || result.Reason != ReasonNoActiveAgents {
		t.Fatalf("unexpected result %+v", result)
	}
	got, _ := f.store.GetLead(context.Background(), lead.ID)
	if got.Status != domain.StatusQualified || got.AssignedAgentID != nil {
		t.Fatalf("lead must stay qualified and unassigned, got %+v", got)
	}
}

func TestRoutePreconditions(t *testing.T) {
	f := newFixture(t)
	f.agent("A", 1, 0)
	engine := New(f.store, f.store, f.store, nil, logger.Nop())

	qualifying := f.store.PutLead(repository.Lead{BrokerageID: &f.brokerage.ID, Phone: "+12015550111", Status: domain.StatusQualifying})
	noGroup := f.store.PutLead(repository.Lead{Phone: "+12015550112", Status: domain.StatusQualified})

	disabled := f.store.PutBrokerage(repository.Brokerage{Name: "Paused", RoutingEnabled: false})
	pausedLead := f.store.PutLead(repository.Lead{BrokerageID: &disabled.ID, Phone: "+12015550113", Status: domain.StatusQualified})

	tests := []struct {
		name   string
		leadID uuid.UUID
		reason string
	}{
		{"not qualified", qualifying.ID, ReasonNotQualified},
		{"no group", noGroup.ID, ReasonNoGroup},
		{"routing disabled", pausedLead.ID, ReasonRoutingDisabled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := engine.Route(context.Background(), tt.leadID)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Outcome != OutcomeUnassigned || result.Reason != tt.reason {
				t.Fatalf("expected unassigned/%s, got %+v", tt.reason, result)
			}
		})
	}

	if _, err := engine.Route(context.Background(), uuid.New()); err == nil {
		t.Fatal("expected error for unknown lead")
	}
}

func TestRoutePointerConflictKeepsAssignment(t *testing.T) {
	f := newFixture(t)
	agent := f.agent("A", 1, 0)
	lead := f.qualifiedLead()
	groups := &conflictingGroups{GroupPointerStore: f.store}

	result, err := New(f.store, f.store, groups, nil, logger.Nop()).Route(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if groups.calls != 1 {
		t.Fatalf("expected one compare-and-swap attempt, got %d", groups.calls)
	}
	if result.Outcome != OutcomeAssigned || result.PointerAdvanced {
		t.Fatalf("expected assignment without pointer advance, got %+v", result)
	}
	got, _ := f.store.GetLead(context.Background(), lead.ID)
	if got.AssignedAgentID == nil || *got.AssignedAgentID != agent.ID {
		t.Fatal("assignment must not be rolled back on pointer conflict")
	}
}

func TestRoutePublishesLeadAssigned(t *testing.T) {
	f := newFixture(t)
	agent := f.agent("A", 1, 0)
	lead := f.qualifiedLead()
	bus := events.NewInMemoryBus(logger.Nop())

	var mu sync.Mutex
	var received []events.LeadAssigned
	bus.Subscribe(events.LeadAssigned{}.EventName(), events.HandlerFunc(func(_ context.Context, e events.Event) error {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, e.(events.LeadAssigned))
		return nil
	}))

	if _, err := New(f.store, f.store, f.store, bus, logger.Nop()).Route(context.Background(), lead.ID); err != nil {
		t.Fatalf("route: %v", err)
	}
	bus.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 {
		t.Fatalf("expected one event, got %d", len(received))
	}
	if received[0].AgentID != agent.ID || received[0].LeadID != lead.ID || received[0].Summary == "" {
		t.Fatalf("unexpected event %+v", received[0])
	}
}
