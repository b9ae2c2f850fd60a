package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"leadhandler_backend/internal/leads/transport"
	"leadhandler_backend/platform/apperr"
	"leadhandler_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type fakeInbound struct {
	got     []transport.InboundSMSRequest
	outcome string
	err     error
}

func (f *fakeInbound) ProcessInbound(_ context.Context, req transport.InboundSMSRequest) (string, error) {
	f.got = append(f.got, req)
	return f.outcome, f.err
}

type fakeRouter struct {
	resp transport.RouteLeadResponse
	err  error
}

func (f *fakeRouter) RouteLead(_ context.Context, leadID uuid.UUID) (transport.RouteLeadResponse, error) {
	f.resp.LeadID = leadID.String()
	return f.resp, f.err
}

func newEngine(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.POST("/webhooks/sms/inbound", h.HandleTwilioInbound)
	engine.POST("/webhooks/sms/events", h.HandleInboundEvent)
	engine.POST("/leads/:leadId/route", h.RouteLead)
	return engine
}

func postForm(engine *gin.Engine, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestTwilioInboundRespondsWithEmptyTwiML(t *testing.T) {
	inbound := &fakeInbound{outcome: "duplicate"}
	engine := newEngine(New(inbound, &fakeRouter{}, validator.New()))

	rec := postForm(engine, "/webhooks/sms/inbound", url.Values{
		"From":       {"+12015550123"},
		"To":         {"+12015550100"},
		"Body":       {"Hi there"},
		"MessageSid": {"SM123"},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "<Response></Response>") {
		t.Fatalf("expected empty TwiML, got %q", rec.Body.String())
	}
	if len(inbound.got) != 1 || inbound.got[0].MessageSID != "SM123" || inbound.got[0].Body != "Hi there" {
		t.Fatalf("unexpected forwarded request %+v", inbound.got)
	}
}

func TestTwilioInboundRejectsMissingSender(t *testing.T) {
	inbound := &fakeInbound{}
	engine := newEngine(New(inbound, &fakeRouter{}, validator.New()))

	rec := postForm(engine, "/webhooks/sms/inbound", url.Values{"Body": {"hello"}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(inbound.got) != 0 {
		t.Fatal("pipeline must not run for invalid input")
	}
}

func TestTwilioInboundSurfacesStoreFailures(t *testing.T) {
	inbound := &fakeInbound{err: errors.New("db down")}
	engine := newEngine(New(inbound, &fakeRouter{}, validator.New()))

	rec := postForm(engine, "/webhooks/sms/inbound", url.Values{"From": {"+12015550123"}, "Body": {"hi"}})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 so the transport retries, got %d", rec.Code)
	}
}

func TestInboundEventReturnsOutcome(t *testing.T) {
	inbound := &fakeInbound{outcome: "qualifying"}
	engine := newEngine(New(inbound, &fakeRouter{}, validator.New()))

	req := httptest.NewRequest(http.MethodPost, "/webhooks/sms/events", strings.NewReader(`{"from":"+12015550123","body":"hi","messageSid":"SM9"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp transport.InboundSMSResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Outcome != "qualifying" {
		t.Fatalf("unexpected outcome %q", resp.Outcome)
	}
}

func TestRouteLead(t *testing.T) {
	router := &fakeRouter{resp: transport.RouteLeadResponse{Outcome: "assigned"}}
	engine := newEngine(New(&fakeInbound{}, router, validator.New()))

	leadID := uuid.New()
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/leads/"+leadID.String()+"/route", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), leadID.String()) {
		t.Fatalf("expected lead id in response, got %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/leads/not-a-uuid/route", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", rec.Code)
	}

	router.err = apperr.NotFound("lead not found")
	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/leads/"+leadID.String()+"/route", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
