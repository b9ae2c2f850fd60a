package handler

import (
	"context"
	"net/http"

	"leadhandler_backend/internal/leads/transport"
	"leadhandler_backend/platform/apperr"
	"leadhandler_backend/platform/httpkit"
	"leadhandler_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidLeadID    = "invalid lead id"

	emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`
)

// InboundProcessor runs one inbound SMS through the pipeline.
type InboundProcessor interface {
	ProcessInbound(ctx context.Context, req transport.InboundSMSRequest) (string, error)
}

// LeadRouter triggers routing for one lead.
type LeadRouter interface {
	RouteLead(ctx context.Context, leadID uuid.UUID) (transport.RouteLeadResponse, error)
}

type Handler struct {
	inbound InboundProcessor
	router  LeadRouter
	val     *validator.Validator
}

func New(inbound InboundProcessor, router LeadRouter, val *validator.Validator) *Handler {
	return &Handler{inbound: inbound, router: router, val: val}
}

// HandleTwilioInbound accepts Twilio form webhooks.
// POST /api/v1/webhooks/sms/inbound
// Every handled delivery, duplicates and unknown senders included, gets an
// empty TwiML 200 so the transport does not redeliver.
func (h *Handler) HandleTwilioInbound(c *gin.Context) {
	var req transport.InboundSMSRequest
	if err := c.ShouldBind(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	if _, err := h.inbound.ProcessInbound(c.Request.Context(), req); httpkit.HandleError(c, err) {
		return
	}

	c.Data(http.StatusOK, "text/xml; charset=utf-8", []byte(emptyTwiML))
}

// HandleInboundEvent accepts JSON deliveries from other transports.
// POST /api/v1/webhooks/sms/events
func (h *Handler) HandleInboundEvent(c *gin.Context) {
	var req transport.InboundSMSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	outcome, err := h.inbound.ProcessInbound(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.InboundSMSResponse{Outcome: outcome})
}

// RouteLead runs the routing engine for a lead that became qualified elsewhere.
// POST /api/v1/leads/:leadId/route
func (h *Handler) RouteLead(c *gin.Context) {
	leadID, err := uuid.Parse(c.Param("leadId"))
	if err != nil {
		httpkit.HandleError(c, apperr.Validation(msgInvalidLeadID))
		return
	}

	resp, err := h.router.RouteLead(c.Request.Context(), leadID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, resp)
}
