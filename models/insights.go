package models

import "encoding/json"

// InsightRequest is the input to the transcript insight provider.
type InsightRequest struct {
	CallID          string        `json:"call_id"`
	Title           string        `json:"title"`
	Direction       CallDirection `json:"direction"`
	DurationSeconds int           `json:"duration_seconds"`
	TranscriptText  string        `json:"transcript_text"`
}

// CallInsights is the structured debrief extracted from a call transcript.
// Source records whether the model or the heuristic fallback produced it.
type CallInsights struct {
	Summary     string   `json:"summary"`
	KeyPoints   []string `json:"key_points,omitempty"`
	ActionItems []string `json:"action_items,omitempty"`
	Sentiment   string   `json:"sentiment,omitempty"`
	Source      string   `json:"source"`
}

// FetchedTranscript is the provider's transcript payload for one call.
type FetchedTranscript struct {
	Text string          `json:"text"`
	Raw  json.RawMessage `json:"raw,omitempty"`
}
