package sms

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"leadhandler_backend/platform/config"
	"leadhandler_backend/platform/logger"
)

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		TwilioAccountSID: "AC123",
		TwilioAuthToken:  "secret",
		TwilioFromNumber: "+12015550100",
		TwilioBaseURL:    baseURL,
	}
}

func TestSendPostsFormAndReturnsSID(t *testing.T) {
	var gotPath, gotTo, gotFrom, gotBody, gotUser, gotPass string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, gotPass, _ = r.BasicAuth()
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotTo = r.PostForm.Get("To")
		gotFrom = r.PostForm.Get("From")
		gotBody = r.PostForm.Get("Body")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM42","status":"queued"}`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), logger.Nop())
	result, err := client.Send(context.Background(), "(201) 555-0123", "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Accepted || result.ProviderID != "SM42" {
		t.Fatalf("unexpected result %+v", result)
	}
	if gotPath != "/2010-04-01/Accounts/AC123/Messages.json" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotUser != "AC123" || gotPass != "secret" {
		t.Fatalf("expected basic auth with account credentials")
	}
	if gotTo != "+12015550123" || gotFrom != "+12015550100" || gotBody != "hello" {
		t.Fatalf("unexpected form To=%q From=%q Body=%q", gotTo, gotFrom, gotBody)
	}
}

func TestSendReturnsErrorOnRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":21211,"message":"Invalid 'To' Phone Number"}`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), logger.Nop())
	result, err := client.Send(context.Background(), "+12015550123", "hello")
	if err == nil {
		t.Fatal("expected error")
	}
	if result.Accepted || result.ProviderID != "" {
		t.Fatalf("expected empty result, got %+v", result)
	}
}

func TestNilClientIsNotConfigured(t *testing.T) {
	client := NewClient(&config.Config{}, logger.Nop())
	if client != nil {
		t.Fatal("expected nil client without credentials")
	}
	if _, err := client.Send(context.Background(), "+12015550123", "hi"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
