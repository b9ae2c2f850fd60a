// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const (
	defaultRegion = "US"
	// MatchDigits is how many trailing digits identify a subscriber regardless of
	// country code or formatting (10 = NANP national number).
	MatchDigits = 10
)

// NormalizeE164 formats a phone number to E.164. If parsing fails, it returns the trimmed input.
func NormalizeE164(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}

	number, err := phonenumbers.Parse(trimmed, defaultRegion)
	if err != nil {
		return trimmed
	}

	if !phonenumbers.IsValidNumber(number) {
		return trimmed
	}

	return phonenumbers.Format(number, phonenumbers.E164)
}

// Digits strips everything but ASCII digits.
func Digits(input string) string {
	var sb strings.Builder
	sb.Grow(len(input))
	for _, r := range input {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// MatchKey returns the trailing MatchDigits digits of input, or all digits when
// the number is shorter. "+1 (713) 555-0100", "713.555.0100" and "17135550100"
// share the key "7135550100".
func MatchKey(input string) string {
	digits := Digits(input)
	if len(digits) > MatchDigits {
		return digits[len(digits)-MatchDigits:]
	}
	return digits
}
