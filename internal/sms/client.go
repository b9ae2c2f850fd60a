// Package sms sends text messages through the Twilio Messages API.
package sms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"leadhandler_backend/platform/config"
	"leadhandler_backend/platform/logger"
	"leadhandler_backend/platform/phone"
)

// ErrNotConfigured is returned by a nil Client.
var ErrNotConfigured = errors.New("sms transport not configured")

// SendResult describes the transport's answer to one send.
type SendResult struct {
	Accepted   bool
	ProviderID string
}

// Sender delivers one SMS.
type Sender interface {
	Send(ctx context.Context, to, body string) (SendResult, error)
}

type Client struct {
	baseURL    string
	accountSID string
	authToken  string
	from       string
	http       *http.Client
	limiter    *rate.Limiter
	log        *logger.Logger
}

type twilioMessage struct {
	SID          string `json:"sid"`
	Status       string `json:"status"`
	ErrorCode    *int   `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

type twilioError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewClient returns nil when the transport has no credentials.
func NewClient(cfg config.SMSConfig, log *logger.Logger) *Client {
	if !cfg.IsSMSEnabled() {
		return nil
	}

	perSecond := cfg.GetSMSRatePerSecond()
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.GetTwilioBaseURL(), "/"),
		accountSID: cfg.GetTwilioAccountSID(),
		authToken:  cfg.GetTwilioAuthToken(),
		from:       cfg.GetTwilioFromNumber(),
		http:       &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(limit, 1),
		log:        log,
	}
}

func (c *Client) Send(ctx context.Context, to, body string) (SendResult, error) {
	if c == nil {
		return SendResult{}, ErrNotConfigured
	}

	normalized := phone.NormalizeE164(to)
	if normalized == "" {
		return SendResult{}, fmt.Errorf("sms recipient is empty")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return SendResult{}, fmt.Errorf("sms rate limit wait: %w", err)
	}

	form := url.Values{}
	form.Set("To", normalized)
	form.Set("From", c.from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, url.PathEscape(c.accountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return SendResult{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return SendResult{}, fmt.Errorf("twilio request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr twilioError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Message != "" {
			return SendResult{}, fmt.Errorf("twilio returned %d (code %d): %s", resp.StatusCode, apiErr.Code, apiErr.Message)
		}
		return SendResult{}, fmt.Errorf("twilio returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var msg twilioMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return SendResult{}, fmt.Errorf("decode twilio response: %w", err)
	}
	if msg.Status == "failed" || msg.Status == "undelivered" {
		return SendResult{ProviderID: msg.SID}, fmt.Errorf("twilio rejected message %s: %s", msg.SID, msg.ErrorMessage)
	}

	c.log.Info("sms sent via twilio", "phone", normalized, "sid", msg.SID, "status", msg.Status)
	return SendResult{Accepted: true, ProviderID: msg.SID}, nil
}
