package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"

	"leadhandler_backend/internal/leads/repository"
	"leadhandler_backend/platform/logger"
)

const (
	defaultRouteSweepInterval = 5 * time.Minute
	routeSweepBatchSize       = 100
)

// LeadRouter routes one lead.
type LeadRouter interface {
	RouteQualified(ctx context.Context, leadID uuid.UUID) (bool, error)
}

// RoutableLeadLister lists qualified, unassigned leads.
type RoutableLeadLister interface {
	ListRoutableLeads(ctx context.Context, limit int) ([]repository.Lead, error)
}

// RouteSweeper periodically retries routing for leads that stayed qualified
// without an agent, e.g. because no agent was active when they qualified.
type RouteSweeper struct {
	leads    RoutableLeadLister
	router   LeadRouter
	log      *logger.Logger
	interval time.Duration
}

func NewRouteSweeper(leads RoutableLeadLister, router LeadRouter, log *logger.Logger, interval time.Duration) *RouteSweeper {
	if interval <= 0 {
		interval = defaultRouteSweepInterval
	}
	return &RouteSweeper{
		leads:    leads,
		router:   router,
		log:      log,
		interval: interval,
	}
}

func (s *RouteSweeper) Run(ctx context.Context) {
	if s == nil || s.leads == nil || s.router == nil {
		return
	}

	s.Sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep routes one batch and returns how many leads were considered and assigned.
func (s *RouteSweeper) Sweep(ctx context.Context) (considered, assigned int) {
	leads, err := s.leads.ListRoutableLeads(ctx, routeSweepBatchSize)
	if err != nil {
		s.log.Warn("route sweep listing failed", "error", err)
		return 0, 0
	}

	for _, lead := range leads {
		if ctx.Err() != nil {
			break
		}
		considered++
		ok, err := s.router.RouteQualified(ctx, lead.ID)
		if err != nil {
			s.log.Warn("route sweep failed for lead", "leadId", lead.ID.String(), "error", err)
			continue
		}
		if ok {
			assigned++
		}
	}

	if assigned > 0 {
		s.log.Info("route sweep assigned leads", "considered", considered, "assigned", assigned)
	}
	return considered, assigned
}
