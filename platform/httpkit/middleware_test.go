package httpkit

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"leadhandler_backend/platform/apperr"

	"github.com/gin-gonic/gin"
)

func newTestEngine(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	handlers := append(mw, func(c *gin.Context) { c.Status(http.StatusNoContent) })
	engine.POST("/hook", handlers...)
	return engine
}

func TestValidateTwilioSignature(t *testing.T) {
	const token = "secret-token"
	const base = "https://example.test"
	engine := newTestEngine(ValidateTwilioSignature(true, token, base))

	form := url.Values{"From": {"+17135550100"}, "Body": {"hello"}, "MessageSid": {"SM1"}}

	send := func(sig string) int {
		req := httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set(HeaderTwilioSignature, sig)
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := send(TwilioSignature(token, base+"/hook", form)); code != http.StatusNoContent {
		t.Fatalf("expected valid signature to pass, got %d", code)
	}
	if code := send("bogus"); code != http.StatusForbidden {
		t.Fatalf("expected invalid signature to be rejected, got %d", code)
	}
}

func TestTwilioSignatureDependsOnParams(t *testing.T) {
	a := TwilioSignature("t", "https://x/hook", url.Values{"Body": {"a"}})
	b := TwilioSignature("t", "https://x/hook", url.Values{"Body": {"b"}})
	if a == b {
		t.Fatalf("expected different bodies to produce different signatures")
	}
}

func TestAPIKeyRequired(t *testing.T) {
	engine := newTestEngine(APIKeyRequired("k1"))

	req := httptest.NewRequest(http.MethodPost, "/hook", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/hook", nil)
	req.Header.Set(HeaderAPIKey, "k1")
	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected key to pass, got %d", rec.Code)
	}

	disabled := newTestEngine(APIKeyRequired(""))
	rec = httptest.NewRecorder()
	disabled.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/hook", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when no key is configured, got %d", rec.Code)
	}
}

func TestHandleErrorMapsKinds(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		err  error
		code int
	}{
		{apperr.NotFound("lead not found"), http.StatusNotFound},
		{apperr.Conflict("lead already assigned"), http.StatusConflict},
		{apperr.Unavailable("routing disabled"), http.StatusServiceUnavailable},
		{apperr.Validation("invalid lead id"), http.StatusBadRequest},
		{apperr.Unauthorized("invalid api key"), http.StatusUnauthorized},
		{http.ErrBodyNotAllowed, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		if !HandleError(c, tc.err) {
			t.Fatalf("expected error to be handled")
		}
		if rec.Code != tc.code {
			t.Fatalf("error %v: expected %d, got %d", tc.err, tc.code, rec.Code)
		}
	}
}
