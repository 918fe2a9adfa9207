package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Source produces free-text forecasts, typically from an LLM. The text
// is expected to contain one JSON object keyed day_1..day_N; anything
// else is treated the same as a source outage and routes the caller to
// the statistical fallback.
type Source interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Advisory returns a short risk assessment for the evaluation stage.
type Advisory interface {
	Assess(ctx context.Context, prompt string) (AdvisorySignal, error)
}

// AdvisorySignal is the parsed advisory response.
type AdvisorySignal struct {
	ConfidenceAdjustment float64 `json:"confidence_adjustment"`
	RiskComment          string  `json:"risk_comment"`
}

// ErrNoJSONObject is returned when a source response contains no JSON object.
var ErrNoJSONObject = errors.New("no JSON object found in response")

// ExtractJSONObject pulls the substring between the first '{' and the
// last '}' of a free-text response. Deliberately lenient: source output
// wraps the object in prose more often than not. Callers must treat a
// failure here exactly like a source outage.
func ExtractJSONObject(text string) (string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return "", ErrNoJSONObject
	}
	return text[start : end+1], nil
}

// ParsePayload extracts and decodes a forecast payload from free text.
func ParsePayload(text string) (Payload, error) {
	raw, err := ExtractJSONObject(text)
	if err != nil {
		return nil, err
	}

	var payload Payload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("decode forecast payload: %w", err)
	}
	if len(payload) == 0 {
		return nil, ErrNoJSONObject
	}
	return payload, nil
}

// ClampAdjustment bounds an advisory confidence adjustment to [0.85, 1.15].
func ClampAdjustment(v float64) float64 {
	if v < 0.85 {
		return 0.85
	}
	if v > 1.15 {
		return 1.15
	}
	return v
}
