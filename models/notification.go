package models

import (
	"encoding/json"
	"time"
)

type FeatureKey string

const (
	FeatureDailyDigest     FeatureKey = "daily_digest"
	FeatureMorningBrief    FeatureKey = "morning_brief"
	FeatureMeetingPrep     FeatureKey = "meeting_prep"
	FeatureDealMomentum    FeatureKey = "deal_momentum_nudge"
	FeatureMeetingDebrief  FeatureKey = "meeting_debrief"
	FeatureReengagement    FeatureKey = "reengagement"
	FeatureFeedbackRequest FeatureKey = "feedback_request"
)

type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

type DeliveryMethod string

const (
	DeliveryMethodDM      DeliveryMethod = "dm"
	DeliveryMethodChannel DeliveryMethod = "channel"
)

type NotificationChannel string

const (
	ChannelSlack NotificationChannel = "slack"
	ChannelEmail NotificationChannel = "email"
	ChannelChat  NotificationChannel = "chat"
)

// FeatureScope describes what entity one dispatch of a feature covers.
type FeatureScope string

const (
	FeatureScopeOrg    FeatureScope = "org"
	FeatureScopeUser   FeatureScope = "user"
	FeatureScopeEntity FeatureScope = "entity"
)

// FeatureSpec is the static registry entry for a notification feature.
// Adding a feature is a data change here, not a new code path.
type FeatureSpec struct {
	Key             FeatureKey
	Scope           FeatureScope
	DefaultPriority Priority
	Category        string
	// DedupeWindow overrides the policy-derived dedupe window when > 0.
	// DedupeForever pins one send per entity for all time (meeting prep).
	DedupeWindow  time.Duration
	DedupeForever bool
}

// FeatureRegistry holds the specs for every known feature key.
var FeatureRegistry = map[FeatureKey]FeatureSpec{
	FeatureDailyDigest: {
		Key:             FeatureDailyDigest,
		Scope:           FeatureScopeOrg,
		DefaultPriority: PriorityNormal,
		Category:        "digest",
		DedupeWindow:    20 * time.Hour,
	},
	FeatureMorningBrief: {
		Key:             FeatureMorningBrief,
		Scope:           FeatureScopeUser,
		DefaultPriority: PriorityNormal,
		Category:        "digest",
		DedupeWindow:    20 * time.Hour,
	},
	FeatureMeetingPrep: {
		Key:             FeatureMeetingPrep,
		Scope:           FeatureScopeEntity,
		DefaultPriority: PriorityHigh,
		Category:        "meetings",
		DedupeForever:   true,
	},
	FeatureDealMomentum: {
		Key:             FeatureDealMomentum,
		Scope:           FeatureScopeEntity,
		DefaultPriority: PriorityNormal,
		Category:        "deals",
	},
	FeatureMeetingDebrief: {
		Key:             FeatureMeetingDebrief,
		Scope:           FeatureScopeEntity,
		DefaultPriority: PriorityHigh,
		Category:        "meetings",
	},
	FeatureReengagement: {
		Key:             FeatureReengagement,
		Scope:           FeatureScopeUser,
		DefaultPriority: PriorityLow,
		Category:        "engagement",
	},
	FeatureFeedbackRequest: {
		Key:             FeatureFeedbackRequest,
		Scope:           FeatureScopeUser,
		DefaultPriority: PriorityLow,
		Category:        "engagement",
	},
}

// NotificationFeatureSettings is the per (org, feature) configuration.
type NotificationFeatureSettings struct {
	OrgID             OrgID              `json:"organization_id"`
	Feature           FeatureKey         `json:"feature"`
	Enabled           bool               `json:"enabled"`
	ChannelID         *string            `json:"channel_id,omitempty"`
	DeliveryMethod    DeliveryMethod     `json:"delivery_method"`
	ScheduleTimezone  string             `json:"schedule_timezone"`
	Thresholds        map[string]float64 `json:"thresholds,omitempty"`
	EnabledCategories []string           `json:"enabled_categories,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// CategoryEnabled reports whether a category is allowed. An empty category
// list means every category is allowed.
func (s *NotificationFeatureSettings) CategoryEnabled(category string) bool {
	if len(s.EnabledCategories) == 0 {
		return true
	}
	for _, c := range s.EnabledCategories {
		if c == category {
			return true
		}
	}
	return false
}

// Recipient is the per (org, user) chat delivery mapping. A user without a
// Slack mapping is skipped for Slack delivery.
type Recipient struct {
	OrgID       OrgID   `db:"organization_id" json:"organization_id"`
	UserID      string  `db:"user_id"         json:"user_id"`
	SlackUserID *string `db:"slack_user_id"   json:"slack_user_id,omitempty"`
	Email       string  `db:"email"           json:"email"`
	Name        string  `db:"name"            json:"name"`
}

// SentRecord is the primary dedupe record for a delivered notification.
type SentRecord struct {
	ID           string     `db:"id"              json:"id"`
	Feature      FeatureKey `db:"feature"         json:"feature"`
	OrgID        OrgID      `db:"organization_id" json:"organization_id"`
	SlackUserID  string     `db:"recipient_id"    json:"recipient_id"`
	EntityID     string     `db:"entity_id"       json:"entity_id"`
	WindowBucket string     `db:"window_bucket"   json:"window_bucket"`
	SentAt       time.Time  `db:"sent_at"         json:"sent_at"`
	SlackTS      string     `db:"slack_ts"        json:"slack_ts"`
	ChannelID    string     `db:"channel_id"      json:"channel_id"`
}

type QueuedNotificationStatus string

const (
	QueuedStatusPending   QueuedNotificationStatus = "pending"
	QueuedStatusScheduled QueuedNotificationStatus = "scheduled"
	QueuedStatusSent      QueuedNotificationStatus = "sent"
	QueuedStatusFailed    QueuedNotificationStatus = "failed"
	QueuedStatusCancelled QueuedNotificationStatus = "cancelled"
)

// IsTerminal reports whether a queued notification may never leave its state.
func (s QueuedNotificationStatus) IsTerminal() bool {
	return s == QueuedStatusSent || s == QueuedStatusCancelled
}

type QueuedNotification struct {
	ID            string                   `db:"id"              json:"id"`
	UserID        string                   `db:"user_id"         json:"user_id"`
	OrgID         OrgID                    `db:"organization_id" json:"organization_id"`
	Feature       FeatureKey               `db:"feature"         json:"feature"`
	Priority      Priority                 `db:"priority"        json:"priority"`
	Channel       NotificationChannel      `db:"channel"         json:"channel"`
	Payload       json.RawMessage          `db:"payload"         json:"payload"`
	ScheduledFor  time.Time                `db:"scheduled_for"   json:"scheduled_for"`
	Status        QueuedNotificationStatus `db:"status"          json:"status"`
	Attempts      int                      `db:"attempts"        json:"attempts"`
	MaxAttempts   int                      `db:"max_attempts"    json:"max_attempts"`
	LastAttemptAt *time.Time               `db:"last_attempt_at" json:"last_attempt_at,omitempty"`
	LastError     *string                  `db:"last_error"      json:"last_error,omitempty"`
	DedupeKey     *string                  `db:"dedupe_key"      json:"dedupe_key,omitempty"`
	CreatedAt     time.Time                `db:"created_at"      json:"created_at"`
	UpdatedAt     time.Time                `db:"updated_at"      json:"updated_at"`
}

// InAppNotification mirrors every chat delivery into the product's own inbox.
type InAppNotification struct {
	ID        string          `db:"id"              json:"id"`
	UserID    string          `db:"user_id"         json:"user_id"`
	OrgID     OrgID           `db:"organization_id" json:"organization_id"`
	Category  string          `db:"category"        json:"category"`
	Type      string          `db:"notif_type"      json:"type"`
	Title     string          `db:"title"           json:"title"`
	Message   string          `db:"message"         json:"message"`
	ActionURL string          `db:"action_url"      json:"action_url"`
	Metadata  json.RawMessage `db:"metadata"        json:"metadata,omitempty"`
	ReadAt    *time.Time      `db:"read_at"         json:"read_at,omitempty"`
	CreatedAt time.Time       `db:"created_at"      json:"created_at"`
}
