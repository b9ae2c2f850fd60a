package domain

import "strings"

// OptOutConfirmation is sent once to a lead that unsubscribed.
const OptOutConfirmation = "You've been unsubscribed and will no longer receive messages from us. Reply START to resubscribe."

var optOutKeywords = []string{
	"stop",
	"stopall",
	"unsubscribe",
	"cancel",
	"end",
	"quit",
	"opt out",
	"optout",
	"opt-out",
	"remove me",
}

// IsOptOut reports whether body is an unsubscribe request: after trimming and
// lowercasing, it equals a keyword or starts with a keyword followed by a space.
func IsOptOut(body string) bool {
	normalized := strings.ToLower(strings.TrimSpace(body))
	if normalized == "" {
		return false
	}
	for _, kw := range optOutKeywords {
		if normalized == kw || strings.HasPrefix(normalized, kw+" ") {
			return true
		}
	}
	return false
}
