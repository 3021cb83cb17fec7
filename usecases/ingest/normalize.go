package ingest

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"use60backend/models"
)

// providerName tags everything ingested through the telephony webhook.
const providerName = "justcall"

// webhookEnvelope is the outer shape shared by every provider event.
type webhookEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// flexID decodes an id the provider sends as either a JSON number or string.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		*f = flexID(asString)
		return nil
	}
	var asNumber json.Number
	if err := json.Unmarshal(data, &asNumber); err != nil {
		return fmt.Errorf("id is neither string nor number: %w", err)
	}
	*f = flexID(asNumber.String())
	return nil
}

// callPayload is the subset of the provider's call event we consume. The
// provider sends ids as numbers on some event types and strings on others.
type callPayload struct {
	CallID       flexID  `json:"call_id"`
	ID           flexID  `json:"id"`
	Direction    string  `json:"direction"`
	Status       string  `json:"call_status"`
	StartedAt    string  `json:"started_at"`
	EndedAt      string  `json:"ended_at"`
	Duration     float64 `json:"duration_seconds"`
	FromNumber   string  `json:"from_number"`
	ToNumber     string  `json:"to_number"`
	AgentEmail   string  `json:"agent_email"`
	RecordingURL string  `json:"recording_url"`
	Transcript   string  `json:"transcript"`
}

// isCallEvent reports whether the envelope type carries a call payload.
// Everything else is acknowledged and ignored.
func isCallEvent(eventType string) bool {
	return strings.HasPrefix(eventType, "call.")
}

// normalizeCallEvent maps a raw provider call payload into the canonical
// form. Internal code never sees the provider shape.
func normalizeCallEvent(data json.RawMessage) (*models.CanonicalCallEvent, error) {
	var payload callPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode call payload: %w", err)
	}

	externalID := string(payload.CallID)
	if externalID == "" {
		externalID = string(payload.ID)
	}
	if externalID == "" {
		return nil, nil
	}

	event := &models.CanonicalCallEvent{
		Provider:   providerName,
		ExternalID: externalID,
		Direction:  normalizeDirection(payload.Direction),
	}
	if payload.Status != "" {
		event.Status = &payload.Status
	}
	event.StartedAt = parseEventTime(payload.StartedAt)
	event.EndedAt = parseEventTime(payload.EndedAt)
	if payload.Duration != 0 || payload.EndedAt != "" {
		seconds := int(math.Floor(math.Max(payload.Duration, 0)))
		event.DurationSeconds = &seconds
	}
	if payload.FromNumber != "" {
		event.FromNumber = &payload.FromNumber
	}
	if payload.ToNumber != "" {
		event.ToNumber = &payload.ToNumber
	}
	if payload.AgentEmail != "" {
		email := strings.ToLower(strings.TrimSpace(payload.AgentEmail))
		event.AgentEmail = &email
	}
	if payload.RecordingURL != "" {
		event.RecordingURL = &payload.RecordingURL
	}
	if payload.Transcript != "" {
		event.TranscriptText = &payload.Transcript
	}
	return event, nil
}

func normalizeDirection(raw string) models.CallDirection {
	switch strings.ToLower(raw) {
	case "inbound", "incoming":
		return models.CallDirectionInbound
	case "outbound", "outgoing":
		return models.CallDirectionOutbound
	case "internal":
		return models.CallDirectionInternal
	default:
		return models.CallDirectionUnknown
	}
}

// parseEventTime accepts the provider's two observed timestamp formats.
// Unparseable values are dropped rather than failing the whole event.
func parseEventTime(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			utc := t.UTC()
			return &utc
		}
	}
	return nil
}
