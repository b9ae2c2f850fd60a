// Package reply sends outbound SMS to leads and records them in the conversation log.
package reply

import (
	"context"

	"github.com/google/uuid"

	"leadhandler_backend/internal/leads/repository"
	"leadhandler_backend/internal/sms"
	"leadhandler_backend/platform/logger"
	"leadhandler_backend/platform/metrics"
)

// Purpose labels what an outbound message is for.
type Purpose string

const (
	PurposeQualification Purpose = "qualification"
	PurposeOptOut        Purpose = "opt_out"
)

type Dispatcher struct {
	sender   sms.Sender
	messages repository.MessageStore
	log      *logger.Logger
}

func New(sender sms.Sender, messages repository.MessageStore, log *logger.Logger) *Dispatcher {
	return &Dispatcher{sender: sender, messages: messages, log: log}
}

// Send delivers body to the lead and persists it as an outbound ai message
// whether or not the transport accepted it. Transport failures are logged
// and leave the provider id empty; only a failure to persist is returned.
func (d *Dispatcher) Send(ctx context.Context, purpose Purpose, leadID uuid.UUID, to, body string) (repository.Message, error) {
	log := d.log.WithContext(ctx)

	result, err := d.sender.Send(ctx, to, body)
	providerID := ""
	switch {
	case err != nil:
		log.Error("sms send failed", "purpose", string(purpose), "leadId", leadID.String(), "error", err)
		metrics.SMSSends.WithLabelValues(string(purpose), "error").Inc()
	case !result.Accepted:
		log.Warn("sms not accepted by transport", "purpose", string(purpose), "leadId", leadID.String())
		metrics.SMSSends.WithLabelValues(string(purpose), "rejected").Inc()
	default:
		providerID = result.ProviderID
		metrics.SMSSends.WithLabelValues(string(purpose), "ok").Inc()
	}

	msg, err := d.messages.InsertMessage(ctx, repository.CreateMessageParams{
		LeadID:            leadID,
		Direction:         repository.DirectionOutbound,
		Body:              body,
		SenderRole:        repository.SenderRoleAI,
		ProviderMessageID: providerID,
	})
	if err != nil {
		log.DatabaseError("insert_outbound_message", err)
		return repository.Message{}, err
	}
	return msg, nil
}
