package models

import (
	"encoding/json"
	"time"
)

type CallDirection string

const (
	CallDirectionInbound  CallDirection = "inbound"
	CallDirectionOutbound CallDirection = "outbound"
	CallDirectionInternal CallDirection = "internal"
	CallDirectionUnknown  CallDirection = "unknown"
)

type TranscriptStatus string

const (
	TranscriptStatusMissing TranscriptStatus = "missing"
	TranscriptStatusQueued  TranscriptStatus = "queued"
	TranscriptStatusReady   TranscriptStatus = "ready"
	TranscriptStatusFailed  TranscriptStatus = "failed"
)

// Call is the engine's view of a telephony call. Upserted by webhook ingest,
// keyed on (org, provider, external id).
type Call struct {
	ID               string           `db:"id"                json:"id"`
	OrgID            OrgID            `db:"organization_id"   json:"organization_id"`
	Provider         string           `db:"provider"          json:"provider"`
	ExternalID       string           `db:"external_id"       json:"external_id"`
	Direction        CallDirection    `db:"direction"         json:"direction"`
	Status           *string          `db:"status"            json:"status,omitempty"`
	StartedAt        *time.Time       `db:"started_at"        json:"started_at,omitempty"`
	EndedAt          *time.Time       `db:"ended_at"          json:"ended_at,omitempty"`
	DurationSeconds  *int             `db:"duration_seconds"  json:"duration_seconds,omitempty"`
	FromNumber       *string          `db:"from_number"       json:"from_number,omitempty"`
	ToNumber         *string          `db:"to_number"         json:"to_number,omitempty"`
	AgentEmail       *string          `db:"agent_email"       json:"agent_email,omitempty"`
	OwnerUserID      *string          `db:"owner_user_id"     json:"owner_user_id,omitempty"`
	OwnerEmail       *string          `db:"owner_email"       json:"owner_email,omitempty"`
	RecordingURL     *string          `db:"recording_url"     json:"recording_url,omitempty"`
	TranscriptText   *string          `db:"transcript_text"   json:"transcript_text,omitempty"`
	TranscriptJSON   json.RawMessage  `db:"transcript_json"   json:"transcript_json,omitempty"`
	TranscriptStatus TranscriptStatus `db:"transcript_status" json:"transcript_status"`
	CreatedAt        time.Time        `db:"created_at"        json:"created_at"`
	UpdatedAt        time.Time        `db:"updated_at"        json:"updated_at"`
}

func (c *Call) HasRecording() bool {
	return c.RecordingURL != nil && *c.RecordingURL != ""
}

func (c *Call) HasTranscript() bool {
	return c.TranscriptText != nil && *c.TranscriptText != ""
}

// CanonicalCallEvent is the boundary-normalized form of a provider call
// payload. Internal code never touches the raw webhook shape.
type CanonicalCallEvent struct {
	Provider        string                     `json:"provider"`
	ExternalID      string                     `json:"external_id"`
	Direction       CallDirection              `json:"direction"`
	Status          *string                    `json:"status,omitempty"`
	StartedAt       *time.Time                 `json:"started_at,omitempty"`
	EndedAt         *time.Time                 `json:"ended_at,omitempty"`
	DurationSeconds *int                       `json:"duration_seconds,omitempty"`
	FromNumber      *string                    `json:"from_number,omitempty"`
	ToNumber        *string                    `json:"to_number,omitempty"`
	AgentEmail      *string                    `json:"agent_email,omitempty"`
	OwnerUserID     *string                    `json:"owner_user_id,omitempty"`
	OwnerEmail      *string                    `json:"owner_email,omitempty"`
	RecordingURL    *string                    `json:"recording_url,omitempty"`
	TranscriptText  *string                    `json:"transcript_text,omitempty"`
	Extras          map[string]json.RawMessage `json:"extras,omitempty"`
}

type InteractionAction string

const (
	InteractionClicked   InteractionAction = "clicked"
	InteractionDismissed InteractionAction = "dismissed"
	InteractionReplied   InteractionAction = "replied"
)

// InteractionEvent is a normalized inbound chat interaction (button click,
// dismissal, threaded reply) tied back to a delivered notification.
type InteractionEvent struct {
	OrgID       OrgID             `json:"organization_id"`
	SlackUserID string            `json:"slack_user_id"`
	Feature     FeatureKey        `json:"feature"`
	Action      InteractionAction `json:"action"`
	OccurredAt  time.Time         `json:"occurred_at"`
}

// TranscriptQueueItem tracks the bounded retry loop for one call's
// transcript fetch. Deleted on success, carried forward on transient failure.
type TranscriptQueueItem struct {
	CallID        string     `db:"call_id"         json:"call_id"`
	OrgID         OrgID      `db:"organization_id" json:"organization_id"`
	Attempts      int        `db:"attempts"        json:"attempts"`
	MaxAttempts   int        `db:"max_attempts"    json:"max_attempts"`
	Priority      Priority   `db:"priority"        json:"priority"`
	LastAttemptAt *time.Time `db:"last_attempt_at" json:"last_attempt_at,omitempty"`
	LastError     *string    `db:"last_error"      json:"last_error,omitempty"`
	LeasedUntil   *time.Time `db:"leased_until"    json:"leased_until,omitempty"`
	CreatedAt     time.Time  `db:"created_at"      json:"created_at"`
}

// CommunicationEvent is the CRM-shared activity trail entry written for
// every ingested call, deduped on (user, external id, source).
type CommunicationEvent struct {
	ID         string    `db:"id"              json:"id"`
	UserID     string    `db:"user_id"         json:"user_id"`
	OrgID      OrgID     `db:"organization_id" json:"organization_id"`
	ExternalID string    `db:"external_id"     json:"external_id"`
	Source     string    `db:"source"          json:"source"`
	Type       string    `db:"event_type"      json:"event_type"`
	OccurredAt time.Time `db:"occurred_at"     json:"occurred_at"`
	CreatedAt  time.Time `db:"created_at"      json:"created_at"`
}

// OutboundActivity records a rep-initiated touch, deduped on
// (user, type, outbound type, original activity id).
type OutboundActivity struct {
	ID                 string    `db:"id"                   json:"id"`
	UserID             string    `db:"user_id"              json:"user_id"`
	OrgID              OrgID     `db:"organization_id"      json:"organization_id"`
	Type               string    `db:"activity_type"        json:"activity_type"`
	OutboundType       string    `db:"outbound_type"        json:"outbound_type"`
	OriginalActivityID string    `db:"original_activity_id" json:"original_activity_id"`
	OccurredAt         time.Time `db:"occurred_at"          json:"occurred_at"`
	CreatedAt          time.Time `db:"created_at"           json:"created_at"`
}

// IntegrationHeartbeat records the last time a provider successfully
// delivered a webhook for an org.
type IntegrationHeartbeat struct {
	OrgID       OrgID     `db:"organization_id" json:"organization_id"`
	Provider    string    `db:"provider"        json:"provider"`
	LastEventAt time.Time `db:"last_event_at"   json:"last_event_at"`
}
