// Package signal turns free-form decision text from the advisory pipeline
// into a bounded, ledger-safe trade recommendation.
package signal

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"agentfolio/internal/models"
)

var fencedBlockRe = regexp.MustCompile("(?is)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// ParseResult is a tagged parse outcome. Parsed is true when a structured
// decision block was found; otherwise the action was inferred by scanning
// the raw text and Quantity is nil.
type ParseResult struct {
	Parsed      bool
	Action      models.Action
	Quantity    *int
	UpdatedPlan string
	Notes       string
	Raw         string
}

type decisionPayload struct {
	Decision    string          `json:"decision"`
	Quantity    json.RawMessage `json:"quantity"`
	UpdatedPlan string          `json:"updated_plan"`
	Notes       string          `json:"notes"`
}

// ParseDecision extracts a trading decision from free text.
//
// The fallback chain is deterministic: a fenced ```json block is tried
// first, then the first-to-last brace-delimited object, and finally the
// uppercased text is scanned for the literal tokens BUY, SELL, HOLD in that
// priority order. Nothing here ever fails; text with no recognizable
// decision parses as an unparsed HOLD. Malformed or non-numeric quantity
// fields are discarded rather than treated as errors.
func ParseDecision(text string) ParseResult {
	result := ParseResult{Action: models.ActionHold, Raw: text}

	if payload, ok := extractPayload(text); ok {
		action := strings.ToUpper(strings.TrimSpace(payload.Decision))
		switch models.Action(action) {
		case models.ActionBuy, models.ActionSell, models.ActionHold:
			result.Action = models.Action(action)
		default:
			result.Action = inferAction(text)
		}
		result.Parsed = true
		result.Quantity = coerceQuantity(payload.Quantity)
		result.UpdatedPlan = payload.UpdatedPlan
		result.Notes = payload.Notes
		return result
	}

	result.Action = inferAction(text)
	return result
}

// extractPayload tries the fenced block first, then the widest brace span.
func extractPayload(text string) (decisionPayload, bool) {
	if m := fencedBlockRe.FindStringSubmatch(text); m != nil {
		var payload decisionPayload
		if err := json.Unmarshal([]byte(m[1]), &payload); err == nil {
			return payload, true
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		var payload decisionPayload
		if err := json.Unmarshal([]byte(text[start:end+1]), &payload); err == nil {
			return payload, true
		}
	}

	return decisionPayload{}, false
}

// inferAction scans the uppercased text for action tokens, BUY before SELL
// before HOLD, defaulting to HOLD.
func inferAction(text string) models.Action {
	upper := strings.ToUpper(text)
	for _, candidate := range []models.Action{models.ActionBuy, models.ActionSell, models.ActionHold} {
		if strings.Contains(upper, string(candidate)) {
			return candidate
		}
	}
	return models.ActionHold
}

// coerceQuantity accepts a JSON number or a numeric string; anything else
// is discarded so the computed quantity is used instead.
func coerceQuantity(raw json.RawMessage) *int {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var asFloat float64
	if err := json.Unmarshal(raw, &asFloat); err == nil {
		qty := int(asFloat)
		return &qty
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		if qty, err := strconv.Atoi(strings.TrimSpace(asString)); err == nil {
			return &qty
		}
	}

	return nil
}
