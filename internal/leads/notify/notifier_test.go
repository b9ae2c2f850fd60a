package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/google/uuid"

	"leadhandler_backend/internal/events"
	"leadhandler_backend/internal/leads/repository"
	"leadhandler_backend/internal/scheduler"
	"leadhandler_backend/internal/sms"
	"leadhandler_backend/platform/logger"
)

type recordingSender struct {
	mu       sync.Mutex
	sent     []string
	err      error
	rejected bool
}

func (r *recordingSender) Send(_ context.Context, to, body string) (sms.SendResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, to+"|"+body)
	if r.err != nil {
		return sms.SendResult{}, r.err
	}
	if r.rejected {
		return sms.SendResult{Accepted: false}, nil
	}
	return sms.SendResult{Accepted: true, ProviderID: "SM1"}, nil
}

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func TestDeliverSendsToOptedInAgent(t *testing.T) {
	store := repository.NewMemoryStore()
	agent := store.PutAgent(repository.Agent{Name: "B", Phone: "+12015550150", AlertsOptIn: true, IsActive: true})
	sender := &recordingSender{}

	err := NewAlerter(store, sender, logger.Nop()).Deliver(context.Background(), Assignment{
		LeadID:    uuid.New(),
		AgentID:   agent.ID,
		LeadPhone: "2015550123",
		Summary:   "Buying in Heights, timeline: within a month",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sender.count() != 1 {
		t.Fatalf("expected one alert, got %d", sender.count())
	}
	if !strings.HasPrefix(sender.sent[0], "+12015550150|New lead assigned: Buying in Heights") || !strings.Contains(sender.sent[0], "+12015550123") {
		t.Fatalf("unexpected alert %q", sender.sent[0])
	}
}

func TestDeliverSkipsAgentsWithoutPhoneOrOptIn(t *testing.T) {
	store := repository.NewMemoryStore()
	noPhone := store.PutAgent(repository.Agent{Name: "A", AlertsOptIn: true})
	optedOut := store.PutAgent(repository.Agent{Name: "B", Phone: "+12015550150", AlertsOptIn: false})
	sender := &recordingSender{}
	alerter := NewAlerter(store, sender, logger.Nop())

	for _, id := range []uuid.UUID{noPhone.ID, optedOut.ID} {
		if err := alerter.Deliver(context.Background(), Assignment{AgentID: id}); !errors.Is(err, ErrAlertSkipped) {
			t.Fatalf("expected ErrAlertSkipped, got %v", err)
		}
	}
	if sender.count() != 0 {
		t.Fatalf("expected no alerts, got %d", sender.count())
	}
}

func TestLocalNotifyLogsFailures(t *testing.T) {
	store := repository.NewMemoryStore()
	agent := store.PutAgent(repository.Agent{Phone: "+12015550150", AlertsOptIn: true})
	sender := &recordingSender{err: errors.New("down")}
	local := NewLocal(NewAlerter(store, sender, logger.Nop()), logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	local.Notify(ctx, Assignment{LeadID: uuid.New(), AgentID: agent.ID})
	cancel()
	local.Wait()

	if sender.count() != 1 {
		t.Fatalf("expected alert attempt despite cancelled caller, got %d", sender.count())
	}
}

type recordingQueue struct {
	payloads []scheduler.AgentAlertPayload
}

func (r *recordingQueue) EnqueueAgentAlert(_ context.Context, payload scheduler.AgentAlertPayload) error {
	r.payloads = append(r.payloads, payload)
	return nil
}

func TestQueuedNotifyEnqueues(t *testing.T) {
	queue := &recordingQueue{}
	leadID, agentID := uuid.New(), uuid.New()

	NewQueued(queue, logger.Nop()).Notify(context.Background(), Assignment{LeadID: leadID, AgentID: agentID, Summary: "s"})

	if len(queue.payloads) != 1 || queue.payloads[0].LeadID != leadID.String() || queue.payloads[0].AgentID != agentID.String() {
		t.Fatalf("unexpected payloads %+v", queue.payloads)
	}
}

func TestDeliverAlertIgnoresSkips(t *testing.T) {
	store := repository.NewMemoryStore()
	agent := store.PutAgent(repository.Agent{AlertsOptIn: false})
	alerter := NewAlerter(store, &recordingSender{}, logger.Nop())

	err := alerter.DeliverAlert(context.Background(), scheduler.AgentAlertPayload{LeadID: uuid.NewString(), AgentID: agent.ID.String()})
	if err != nil {
		t.Fatalf("expected skip to be nil, got %v", err)
	}
	if err := alerter.DeliverAlert(context.Background(), scheduler.AgentAlertPayload{LeadID: "x", AgentID: agent.ID.String()}); err == nil {
		t.Fatal("expected invalid lead id error")
	}
}

func TestSubscribeForwardsLeadAssigned(t *testing.T) {
	bus := events.NewInMemoryBus(logger.Nop())
	queue := &recordingQueue{}
	Subscribe(bus, NewQueued(queue, logger.Nop()))

	if err := bus.PublishSync(context.Background(), events.LeadAssigned{LeadID: uuid.New(), AgentID: uuid.New()}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(queue.payloads) != 1 {
		t.Fatalf("expected one enqueued alert, got %d", len(queue.payloads))
	}
}

func TestDeliverReportsRejectedSend(t *testing.T) {
	store := repository.NewMemoryStore()
	agent := store.PutAgent(repository.Agent{Name: "B", Phone: "+12015550150", AlertsOptIn: true, IsActive: true})
	sender := &recordingSender{rejected: true}

	err := NewAlerter(store, sender, logger.Nop()).Deliver(context.Background(), Assignment{LeadID: uuid.New(), AgentID: agent.ID})
	if !errors.Is(err, ErrAlertRejected) {
		t.Fatalf("expected ErrAlertRejected, got %v", err)
	}
	if sender.count() != 1 {
		t.Fatalf("expected one send attempt, got %d", sender.count())
	}
}

func TestAlertBodyStaysValidUTF8(t *testing.T) {
	body := AlertBody(Assignment{LeadPhone: "+12015550123", Summary: strings.Repeat("\u00e9", 200)})
	if len(body) > maxAlertLength {
		t.Fatalf("alert length %d exceeds %d", len(body), maxAlertLength)
	}
	if !utf8.ValidString(body) {
		t.Fatalf("alert body is not valid UTF-8")
	}
	if !strings.HasPrefix(body, "New lead assigned: \u00e9") {
		t.Fatalf("unexpected alert prefix %q", body[:24])
	}
}
