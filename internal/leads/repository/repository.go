package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"leadhandler_backend/internal/leads/domain"
)

// Repository implements Store on Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const leadColumns = `
	id, brokerage_id, phone, phone_key, status,
	COALESCE(intent, ''), COALESCE(area, ''), COALESCE(timeline, ''), COALESCE(budget, ''),
	COALESCE(notes, ''), COALESCE(summary, ''),
	assigned_agent_id, qualified_at, assigned_at, last_routed_at, last_lead_message_at,
	created_at, updated_at`

func scanLead(row pgx.Row) (Lead, error) {
	var lead Lead
	var status string
	err := row.Scan(
		&lead.ID, &lead.BrokerageID, &lead.Phone, &lead.PhoneKey, &status,
		&lead.Intent, &lead.Area, &lead.Timeline, &lead.Budget,
		&lead.Notes, &lead.Summary,
		&lead.AssignedAgentID, &lead.QualifiedAt, &lead.AssignedAt, &lead.LastRoutedAt, &lead.LastLeadMessageAt,
		&lead.CreatedAt, &lead.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	if err != nil {
		return Lead{}, err
	}
	lead.Status = domain.Status(status)
	return lead, nil
}

const messageColumns = `id, lead_id, direction, body, sender_role, provider_message_id, created_at`

func scanMessage(row pgx.Row) (Message, error) {
	var msg Message
	err := row.Scan(&msg.ID, &msg.LeadID, &msg.Direction, &msg.Body, &msg.SenderRole, &msg.ProviderMessageID, &msg.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Message{}, ErrNotFound
	}
	return msg, err
}

// =====================================
// Messages
// =====================================

func (r *Repository) FindMessageByProviderID(ctx context.Context, providerMessageID string) (Message, error) {
	if providerMessageID == "" {
		return Message{}, ErrNotFound
	}
	return scanMessage(r.pool.QueryRow(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE provider_message_id = $1
	`, providerMessageID))
}

func (r *Repository) InsertMessage(ctx context.Context, params CreateMessageParams) (Message, error) {
	msg, err := scanMessage(r.pool.QueryRow(ctx, `
		INSERT INTO messages (id, lead_id, direction, body, sender_role, provider_message_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (provider_message_id) WHERE provider_message_id <> '' DO NOTHING
		RETURNING `+messageColumns,
		uuid.New(), params.LeadID, params.Direction, params.Body, params.SenderRole, params.ProviderMessageID,
	))
	if errors.Is(err, ErrNotFound) {
		// No row returned means the conflict target already existed.
		return Message{}, ErrDuplicateMessage
	}
	if err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}
	return msg, nil
}

func (r *Repository) ListRecentMessages(ctx context.Context, leadID uuid.UUID, limit int) ([]Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+messageColumns+` FROM (
			SELECT `+messageColumns+`
			FROM messages
			WHERE lead_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC, id ASC
	`, leadID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Message, 0, limit)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, msg)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return items, nil
}

// =====================================
// Leads
// =====================================

func (r *Repository) GetLead(ctx context.Context, id uuid.UUID) (Lead, error) {
	return scanLead(r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id))
}

// FindLeadByPhoneKey returns the most recently created lead whose phone shares the key.
func (r *Repository) FindLeadByPhoneKey(ctx context.Context, phoneKey string) (Lead, error) {
	if phoneKey == "" {
		return Lead{}, ErrNotFound
	}
	return scanLead(r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE phone_key = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, phoneKey))
}

func (r *Repository) TouchLastMessage(ctx context.Context, id uuid.UUID, at time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE leads SET last_lead_message_at = $2, updated_at = now()
		WHERE id = $1
	`, id, at)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateQualification stores the status and extracted fields. Empty extracted
// fields keep the previously stored value.
func (r *Repository) UpdateQualification(ctx context.Context, params UpdateQualificationParams) (Lead, error) {
	e := params.Extraction.Normalized()
	return scanLead(r.pool.QueryRow(ctx, `
		UPDATE leads SET
			status = $2,
			intent = COALESCE(NULLIF($3, ''), intent),
			area = COALESCE(NULLIF($4, ''), area),
			timeline = COALESCE(NULLIF($5, ''), timeline),
			budget = COALESCE(NULLIF($6, ''), budget),
			notes = COALESCE(NULLIF($7, ''), notes),
			summary = COALESCE(NULLIF($8, ''), summary),
			qualified_at = COALESCE(qualified_at, $9),
			updated_at = now()
		WHERE id = $1 AND assigned_agent_id IS NULL
		RETURNING `+leadColumns,
		params.LeadID, string(params.Status), e.Intent, e.Area, e.Timeline, e.Budget, e.Notes, params.Summary, params.QualifiedAt,
	))
}

func (r *Repository) MarkOptedOut(ctx context.Context, id uuid.UUID, intent, note string) (Lead, error) {
	return scanLead(r.pool.QueryRow(ctx, `
		UPDATE leads SET
			status = $2,
			intent = $3,
			notes = CASE WHEN COALESCE(notes, '') = '' THEN $4 ELSE notes || E'\n' || $4 END,
			updated_at = now()
		WHERE id = $1 AND assigned_agent_id IS NULL
		RETURNING `+leadColumns,
		id, string(domain.StatusDoNotContact), intent, note,
	))
}

func (r *Repository) AssignLead(ctx context.Context, params AssignLeadParams) (Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `
		UPDATE leads SET
			status = $3,
			assigned_agent_id = $2,
			assigned_at = $4,
			last_routed_at = $4,
			updated_at = now()
		WHERE id = $1 AND status = $5 AND assigned_agent_id IS NULL
		RETURNING `+leadColumns,
		params.LeadID, params.AgentID, string(domain.StatusAssigned), params.AssignedAt, string(domain.StatusQualified),
	))
	if errors.Is(err, ErrNotFound) {
		return Lead{}, ErrLeadNotRoutable
	}
	return lead, err
}

// ListRoutableLeads returns qualified, unassigned leads of routing-enabled brokerages, oldest first.
func (r *Repository) ListRoutableLeads(ctx context.Context, limit int) ([]Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE status = $1
			AND assigned_agent_id IS NULL
			AND brokerage_id IN (SELECT id FROM brokerages WHERE routing_enabled = true)
		ORDER BY qualified_at ASC NULLS LAST, created_at ASC
		LIMIT $2
	`, string(domain.StatusQualified), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, lead)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return items, nil
}

// =====================================
// Agents and brokerages
// =====================================

const agentColumns = `id, brokerage_id, name, phone, weight, alerts_opt_in, is_active, created_at`

func scanAgent(row pgx.Row) (Agent, error) {
	var agent Agent
	err := row.Scan(&agent.ID, &agent.BrokerageID, &agent.Name, &agent.Phone, &agent.Weight, &agent.AlertsOptIn, &agent.IsActive, &agent.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Agent{}, ErrNotFound
	}
	return agent, err
}

func (r *Repository) GetAgent(ctx context.Context, id uuid.UUID) (Agent, error) {
	return scanAgent(r.pool.QueryRow(ctx, `SELECT `+agentColumns+` FROM agents WHERE id = $1`, id))
}

func (r *Repository) ListActiveAgents(ctx context.Context, brokerageID uuid.UUID) ([]Agent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+agentColumns+`
		FROM agents
		WHERE brokerage_id = $1 AND is_active = true
		ORDER BY created_at ASC, id ASC
	`, brokerageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	agents := make([]Agent, 0)
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, agent)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return agents, nil
}

func (r *Repository) GetBrokerage(ctx context.Context, id uuid.UUID) (Brokerage, error) {
	var b Brokerage
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, rr_pointer, rr_version, routing_enabled, default_agent_id
		FROM brokerages
		WHERE id = $1
	`, id).Scan(&b.ID, &b.Name, &b.RRPointer, &b.RRVersion, &b.RoutingEnabled, &b.DefaultAgentID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Brokerage{}, ErrNotFound
	}
	return b, err
}

func (r *Repository) CompareAndSwapPointer(ctx context.Context, id uuid.UUID, expectedVersion, pointer int64) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE brokerages
		SET rr_pointer = $2, rr_version = rr_version + 1, updated_at = now()
		WHERE id = $1 AND rr_version = $3
	`, id, pointer, expectedVersion)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	return nil
}
