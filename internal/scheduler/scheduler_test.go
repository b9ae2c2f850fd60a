package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"leadhandler_backend/internal/leads/repository"
	"leadhandler_backend/platform/config"
	"leadhandler_backend/platform/logger"
)

func TestAgentAlertPayloadRoundTrip(t *testing.T) {
	payload := AgentAlertPayload{LeadID: uuid.NewString(), AgentID: uuid.NewString(), LeadPhone: "+12015550123", Summary: "Buying in Heights"}
	task, err := NewAgentAlertTask(payload)
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	if task.Type() != TaskAgentAlert {
		t.Fatalf("unexpected task type %q", task.Type())
	}
	got, err := ParseAgentAlertPayload(task)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != payload {
		t.Fatalf("expected %+v, got %+v", payload, got)
	}
}

type recordingDeliverer struct {
	payloads []AgentAlertPayload
	err      error
}

func (r *recordingDeliverer) DeliverAlert(_ context.Context, payload AgentAlertPayload) error {
	r.payloads = append(r.payloads, payload)
	return r.err
}

func TestHandleAgentAlertSwallowsFailures(t *testing.T) {
	deliverer := &recordingDeliverer{err: errors.New("sms down")}
	w := &Worker{alerter: deliverer, log: logger.Nop()}

	task, _ := NewAgentAlertTask(AgentAlertPayload{LeadID: "l", AgentID: "a"})
	if err := w.handleAgentAlert(context.Background(), task); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(deliverer.payloads) != 1 {
		t.Fatalf("expected one delivery, got %d", len(deliverer.payloads))
	}

	if err := w.handleAgentAlert(context.Background(), asynq.NewTask(TaskAgentAlert, []byte("{"))); err != nil {
		t.Fatalf("expected invalid payload to be dropped, got %v", err)
	}
}

func TestClientEnqueueAgentAlertWithoutRetry(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &config.Config{RedisURL: "redis://" + mr.Addr(), AsynqQueueName: "alerts"}

	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer func() { _ = client.Close() }()

	if err := client.EnqueueAgentAlert(context.Background(), AgentAlertPayload{LeadID: "l", AgentID: "a"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	pending, err := mr.List("asynq:{alerts}:pending")
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected one pending task, got %d", len(pending))
	}
}

func TestNilClientIsNoop(t *testing.T) {
	var client *Client
	if err := client.EnqueueAgentAlert(context.Background(), AgentAlertPayload{}); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestRedisOptionsTLSInsecure(t *testing.T) {
	opt, err := redisOptions("redis://localhost:6379/2", true)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if opt.DB != 2 || opt.TLSConfig == nil || !opt.TLSConfig.InsecureSkipVerify {
		t.Fatalf("unexpected options %+v", opt)
	}
	if _, err := redisOptions("://bad", false); err == nil {
		t.Fatal("expected parse error")
	}
}

type stubLister struct {
	leads []repository.Lead
}

func (s stubLister) ListRoutableLeads(context.Context, int) ([]repository.Lead, error) {
	return s.leads, nil
}

type stubRouter struct {
	assign map[uuid.UUID]bool
	calls  int
}

func (s *stubRouter) RouteQualified(_ context.Context, leadID uuid.UUID) (bool, error) {
	s.calls++
	if s.assign[leadID] {
		return true, nil
	}
	return false, errors.New("no agents")
}

func TestRouteSweeperSweep(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	router := &stubRouter{assign: map[uuid.UUID]bool{a: true}}
	sweeper := NewRouteSweeper(stubLister{leads: []repository.Lead{{ID: a}, {ID: b}}}, router, logger.Nop(), 0)

	considered, assigned := sweeper.Sweep(context.Background())
	if considered != 2 || assigned != 1 {
		t.Fatalf("expected 2 considered and 1 assigned, got %d/%d", considered, assigned)
	}
	if router.calls != 2 {
		t.Fatalf("expected 2 route calls, got %d", router.calls)
	}
}
