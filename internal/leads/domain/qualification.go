package domain

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Extraction holds the qualification fields pulled from a conversation.
type Extraction struct {
	Intent      string `json:"intent"`
	Timeline    string `json:"timeline"`
	Budget      string `json:"budget"`
	Area        string `json:"area"`
	Preapproved string `json:"preapproved"`
	Beds        string `json:"beds"`
	Baths       string `json:"baths"`
	PriceRange  string `json:"price_range"`
	Notes       string `json:"notes"`
}

// Normalized returns a copy with every field trimmed.
func (e Extraction) Normalized() Extraction {
	return Extraction{
		Intent:      strings.TrimSpace(e.Intent),
		Timeline:    strings.TrimSpace(e.Timeline),
		Budget:      strings.TrimSpace(e.Budget),
		Area:        strings.TrimSpace(e.Area),
		Preapproved: strings.TrimSpace(e.Preapproved),
		Beds:        strings.TrimSpace(e.Beds),
		Baths:       strings.TrimSpace(e.Baths),
		PriceRange:  strings.TrimSpace(e.PriceRange),
		Notes:       strings.TrimSpace(e.Notes),
	}
}

// IsQualified is the completeness guard and the only authority for the
// qualified decision: intent, area and timeline must all be non-blank.
// Any self-reported verdict from a model is ignored.
func IsQualified(e Extraction) bool {
	return strings.TrimSpace(e.Intent) != "" &&
		strings.TrimSpace(e.Area) != "" &&
		strings.TrimSpace(e.Timeline) != ""
}

// MissingFields lists the guard fields still empty, in a fixed order.
func MissingFields(e Extraction) []string {
	var missing []string
	if strings.TrimSpace(e.Intent) == "" {
		missing = append(missing, "intent")
	}
	if strings.TrimSpace(e.Area) == "" {
		missing = append(missing, "area")
	}
	if strings.TrimSpace(e.Timeline) == "" {
		missing = append(missing, "timeline")
	}
	return missing
}

// QualificationSummary renders the canonical one-line summary of a qualified
// extraction, e.g. "Buying in Heights, timeline: within a month, budget: 400k".
func QualificationSummary(e Extraction) string {
	e = e.Normalized()
	parts := []string{fmt.Sprintf("%s in %s", capitalize(e.Intent), e.Area), "timeline: " + e.Timeline}
	if e.Budget != "" {
		parts = append(parts, "budget: "+e.Budget)
	}
	if e.PriceRange != "" {
		parts = append(parts, "price range: "+e.PriceRange)
	}
	if e.Beds != "" {
		parts = append(parts, "beds: "+e.Beds)
	}
	if e.Baths != "" {
		parts = append(parts, "baths: "+e.Baths)
	}
	if e.Preapproved != "" {
		parts = append(parts, "preapproved: "+e.Preapproved)
	}
	return strings.Join(parts, ", ")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}
