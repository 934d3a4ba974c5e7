// Package order defines the order-status event shared by the intake endpoint,
// the portal registry, and the orchestrator.
package order

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// StatusActionable is the only order status that triggers processing.
const StatusActionable = "processing"

// Event is the unit of work handed to the orchestrator. Immutable once
// accepted. Payload carries the full delivery verbatim for the portal task.
type Event struct {
	OrderID string
	Status  string
	Site    string
	Payload map[string]any
}

// ParseEvent decodes a raw webhook body into an Event. The body must be a
// JSON object; WooCommerce puts the order identifier in either "id" or
// "order_id" (numeric or string).
func ParseEvent(raw []byte) (Event, error) {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Event{}, fmt.Errorf("invalid JSON payload: %w", err)
	}
	if payload == nil {
		return Event{}, fmt.Errorf("payload must be a JSON object")
	}

	ev := Event{
		OrderID: firstID(payload, "id", "order_id"),
		Payload: payload,
	}
	if s, ok := payload["status"].(string); ok {
		ev.Status = s
	}
	if s, ok := payload["site"].(string); ok {
		ev.Site = s
	}
	return ev, nil
}

// ShouldProcess reports whether the event is actionable. Only orders whose
// status equals "processing" case-insensitively proceed; every other status,
// including missing, is a normal exclusion rather than an error.
func ShouldProcess(ev Event) bool {
	return strings.EqualFold(strings.TrimSpace(ev.Status), StatusActionable)
}

func firstID(payload map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := payload[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			// JSON numbers decode as float64; order IDs are integral.
			return strconv.FormatInt(int64(v), 10)
		case json.Number:
			return v.String()
		}
	}
	return ""
}
