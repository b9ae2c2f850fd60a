package transport

// InboundSMSRequest is an inbound SMS delivered by the transport, either as a
// Twilio form post or as JSON.
type InboundSMSRequest struct {
	From       string `form:"From" json:"from" validate:"required,phone"`
	To         string `form:"To" json:"to" validate:"omitempty,phone"`
	Body       string `form:"Body" json:"body" validate:"max=1600"`
	MessageSID string `form:"MessageSid" json:"messageSid" validate:"max=64"`
}

// InboundSMSResponse reports how a JSON delivery was handled.
type InboundSMSResponse struct {
	Outcome string `json:"outcome"`
}

// RouteLeadResponse reports a routing attempt.
type RouteLeadResponse struct {
	LeadID          string  `json:"leadId"`
	Outcome         string  `json:"outcome"`
	Reason          string  `json:"reason,omitempty"`
	AgentID         *string `json:"agentId,omitempty"`
	PointerAdvanced bool    `json:"pointerAdvanced"`
}
