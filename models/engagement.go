package models

import (
	"time"
)

type Segment string

const (
	SegmentPowerUser Segment = "power_user"
	SegmentRegular   Segment = "regular"
	SegmentCasual    Segment = "casual"
	SegmentAtRisk    Segment = "at_risk"
	SegmentDormant   Segment = "dormant"
	SegmentChurned   Segment = "churned"
)

type FatigueLevel string

const (
	FatigueLevelLow      FatigueLevel = "low"
	FatigueLevelModerate FatigueLevel = "moderate"
	FatigueLevelHigh     FatigueLevel = "high"
	FatigueLevelCritical FatigueLevel = "critical"
)

type PreferredFrequency string

const (
	FrequencyHigh     PreferredFrequency = "high"
	FrequencyModerate PreferredFrequency = "moderate"
	FrequencyLow      PreferredFrequency = "low"
)

// EngagementScores are derived integers in [0, 100].
type EngagementScores struct {
	App          int `json:"app"`
	Chat         int `json:"chat"`
	Notification int `json:"notification"`
	Overall      int `json:"overall"`
}

// UserMetrics is the per-user derived engagement state. One row per user,
// recomputed by the daily metrics job and read by the dispatcher.
type UserMetrics struct {
	ID                         string             `json:"id"`
	UserID                     string             `json:"user_id"`
	OrgID                      OrgID              `json:"organization_id"`
	Scores                     EngagementScores   `json:"scores"`
	Segment                    Segment            `json:"segment"`
	FatigueScore               int                `json:"fatigue_score"`
	FatigueLevel               FatigueLevel       `json:"fatigue_level"`
	PreferredFrequency         PreferredFrequency `json:"preferred_frequency"`
	TypicalActiveHours         map[int][]int      `json:"typical_active_hours"` // weekday 0 (Sun) .. 6 (Sat) -> hours sorted by activity desc
	PeakHour                   *int               `json:"peak_hour,omitempty"`
	AvgDailySessions           float64            `json:"avg_daily_sessions"`
	NotificationsSinceFeedback int                `json:"notifications_since_feedback"`
	LastFeedbackRequestedAt    *time.Time         `json:"last_feedback_requested_at,omitempty"`
	LastActivityAt             *time.Time         `json:"last_activity_at,omitempty"`
	UpdatedAt                  time.Time          `json:"updated_at"`
}

// IsActiveHour reports whether hour is among the user's typical active hours
// for the given weekday (0 = Sunday). Returns the 0-based activity rank.
func (m *UserMetrics) IsActiveHour(weekday, hour int) (int, bool) {
	for rank, h := range m.TypicalActiveHours[weekday] {
		if h == hour {
			return rank, true
		}
	}
	return 0, false
}

type ActivitySource string

const (
	ActivitySourceApp  ActivitySource = "app"
	ActivitySourceChat ActivitySource = "chat"
)

// ActivityEvent is an append-only record of user activity, consumed only by
// the metric computer.
type ActivityEvent struct {
	ID         string         `db:"id"              json:"id"`
	UserID     string         `db:"user_id"         json:"user_id"`
	OrgID      OrgID          `db:"organization_id" json:"organization_id"`
	Source     ActivitySource `db:"source"          json:"source"`
	Type       string         `db:"event_type"      json:"event_type"`
	OccurredAt time.Time      `db:"occurred_at"     json:"occurred_at"`
	Weekday    int            `db:"weekday"         json:"weekday"`
	Hour       int            `db:"hour"            json:"hour"`
	SessionID  *string        `db:"session_id"      json:"session_id,omitempty"`
}

// NotificationInteraction is an append-only record of how a delivered
// notification was received. Drives fatigue and the notification score.
type NotificationInteraction struct {
	ID                       string     `db:"id"                          json:"id"`
	UserID                   string     `db:"user_id"                     json:"user_id"`
	OrgID                    OrgID      `db:"organization_id"             json:"organization_id"`
	Feature                  FeatureKey `db:"feature"                     json:"feature"`
	DeliveredAt              time.Time  `db:"delivered_at"                json:"delivered_at"`
	ClickedAt                *time.Time `db:"clicked_at"                  json:"clicked_at,omitempty"`
	DismissedAt              *time.Time `db:"dismissed_at"                json:"dismissed_at,omitempty"`
	TimeToInteractionSeconds *int       `db:"time_to_interaction_seconds" json:"time_to_interaction_seconds,omitempty"`
	Weekday                  int        `db:"weekday"                     json:"weekday"`
	Hour                     int        `db:"hour"                        json:"hour"`
}

// Ignored reports whether the interaction got neither a click nor a dismissal.
func (i *NotificationInteraction) Ignored() bool {
	return i.ClickedAt == nil && i.DismissedAt == nil
}
