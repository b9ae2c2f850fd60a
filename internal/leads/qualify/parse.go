package qualify

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"leadhandler_backend/internal/leads/domain"
)

var errNoJSONObject = errors.New("no JSON object in model output")

// modelOutput is the object the model is asked to produce.
type modelOutput struct {
	Reply     string          `json:"reply"`
	Extracted modelExtraction `json:"extracted"`
	Qualified flexBool        `json:"qualified"`
	Summary   string          `json:"summary"`
}

type modelExtraction struct {
	Intent      flexString `json:"intent"`
	Timeline    flexString `json:"timeline"`
	Budget      flexString `json:"budget"`
	Area        flexString `json:"area"`
	Preapproved flexString `json:"preapproved"`
	Beds        flexString `json:"beds"`
	Baths       flexString `json:"baths"`
	PriceRange  flexString `json:"price_range"`
	Notes       flexString `json:"notes"`
}

func (m modelExtraction) toDomain() domain.Extraction {
	return domain.Extraction{
		Intent:      string(m.Intent),
		Timeline:    string(m.Timeline),
		Budget:      string(m.Budget),
		Area:        string(m.Area),
		Preapproved: string(m.Preapproved),
		Beds:        string(m.Beds),
		Baths:       string(m.Baths),
		PriceRange:  string(m.PriceRange),
		Notes:       string(m.Notes),
	}.Normalized()
}

// flexString accepts a JSON string, number, boolean or null.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexString(n.String())
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexString(strconv.FormatBool(b))
		return nil
	}
	return fmt.Errorf("unsupported value %s", string(data))
}

// flexBool accepts true/false as booleans or strings.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(data); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(string(s))) {
	case "true", "yes", "1":
		*f = true
	default:
		*f = false
	}
	return nil
}

// extractJSONObject returns the outermost {...} of raw, ignoring markdown
// fences and surrounding prose.
func extractJSONObject(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```JSON")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", errNoJSONObject
	}
	return text[start : end+1], nil
}

func parseModelOutput(raw string) (modelOutput, error) {
	object, err := extractJSONObject(raw)
	if err != nil {
		return modelOutput{}, err
	}
	var out modelOutput
	if err := json.Unmarshal([]byte(object), &out); err != nil {
		return modelOutput{}, fmt.Errorf("decode model output: %w", err)
	}
	out.Reply = strings.TrimSpace(out.Reply)
	if out.Reply == "" {
		return modelOutput{}, errors.New("model output has empty reply")
	}
	return out, nil
}
