package models

// MessageModel is the typed, channel-neutral shape a payload context builder
// produces. Rendering it into Slack blocks is a pure function elsewhere.
type MessageModel struct {
	Feature   FeatureKey     `json:"feature"`
	Category  string         `json:"category"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	Fields    []MessageField `json:"fields,omitempty"`
	Actions   []MessageAction `json:"actions,omitempty"`
	ActionURL string         `json:"action_url,omitempty"`
	Footer    string         `json:"footer,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type MessageField struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type MessageAction struct {
	Label string `json:"label"`
	URL   string `json:"url"`
	Style string `json:"style,omitempty"` // "primary" | "danger" | ""
}

// DispatchOutcome is the tri-state result of a single dispatch attempt.
type DispatchOutcome string

const (
	DispatchDelivered DispatchOutcome = "delivered"
	DispatchSkipped   DispatchOutcome = "skipped"
	DispatchFailed    DispatchOutcome = "failed"
)

// Skip reasons surfaced to callers. Manual invocations see these verbatim.
const (
	SkipReasonFeatureDisabled  = "feature_disabled"
	SkipReasonNoMapping        = "no_slack_mapping"
	SkipReasonDeduped          = "deduped"
	SkipReasonHourlyLimit      = "hourly_limit"
	SkipReasonDailyLimit       = "daily_limit"
	SkipReasonCooldown         = "cooldown_active"
	SkipReasonQuietHours       = "quiet_hours"
	SkipReasonDeferred         = "deferred"
	SkipReasonCategoryDisabled = "category_disabled"
	SkipReasonNoContent        = "no_content"
)

type DispatchResult struct {
	Outcome   DispatchOutcome `json:"outcome"`
	Reason    string          `json:"reason,omitempty"`
	SlackTS   string          `json:"slack_ts,omitempty"`
	ChannelID string          `json:"channel_id,omitempty"`
	// Retryable is meaningful only when Outcome is DispatchFailed.
	Retryable bool `json:"retryable,omitempty"`
	// NextAllowedAt is set on policy denials so the caller can requeue.
	NextAllowedAt *string `json:"next_allowed_at,omitempty"`
	// Unrecorded flags a delivery whose sent-log write kept failing after
	// retries. The user got the message; reconciliation has to patch the log.
	Unrecorded bool `json:"unrecorded,omitempty"`
}

func Delivered(ts, channelID string) DispatchResult {
	return DispatchResult{Outcome: DispatchDelivered, SlackTS: ts, ChannelID: channelID}
}

func Skipped(reason string) DispatchResult {
	return DispatchResult{Outcome: DispatchSkipped, Reason: reason}
}

func Failed(reason string, retryable bool) DispatchResult {
	return DispatchResult{Outcome: DispatchFailed, Reason: reason, Retryable: retryable}
}
