package engagement

import (
	"time"

	"use60backend/models"
)

// legalTransitions enumerates the allowed segment edges. Anything else is a
// data anomaly: the write is rejected and the previous segment retained.
var legalTransitions = map[models.Segment][]models.Segment{
	models.SegmentPowerUser: {models.SegmentRegular, models.SegmentAtRisk},
	models.SegmentRegular:   {models.SegmentPowerUser, models.SegmentCasual, models.SegmentAtRisk},
	models.SegmentCasual:    {models.SegmentRegular, models.SegmentAtRisk, models.SegmentDormant},
	models.SegmentAtRisk:    {models.SegmentCasual, models.SegmentRegular, models.SegmentDormant},
	models.SegmentDormant:   {models.SegmentAtRisk, models.SegmentCasual, models.SegmentChurned},
	models.SegmentChurned:   {models.SegmentDormant},
}

// CanTransition reports whether moving from one segment to another is legal.
// Staying in place is always legal.
func CanTransition(from, to models.Segment) bool {
	if from == to {
		return true
	}
	if from == "" {
		// First-ever assignment has no previous state to protect.
		return true
	}
	for _, allowed := range legalTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ReengagementState is what the candidacy check needs about prior attempts.
type ReengagementState struct {
	Attempts      int
	LastAttemptAt *time.Time
	DaysInactive  float64
}

// IsReengagementCandidate applies the eligibility gates: inactive segment,
// attempts left, cooldown elapsed, and the segment's inactivity trigger met.
func IsReengagementCandidate(segment models.Segment, state ReengagementState, now time.Time, cfg Config) bool {
	trigger, ok := cfg.Reengagement[segment]
	if !ok {
		return false
	}
	if state.Attempts >= trigger.MaxAttempts {
		return false
	}
	if state.LastAttemptAt != nil {
		daysSinceAttempt := now.Sub(*state.LastAttemptAt).Hours() / 24
		if daysSinceAttempt < float64(trigger.CooldownDays) {
			return false
		}
	}
	return state.DaysInactive >= float64(trigger.AfterDays)
}

// SelectTrigger picks the notification type for a re-engagement touch.
// Content-driven triggers win, in fixed order; otherwise the segment's
// default type applies.
func SelectTrigger(content models.ReengagementContent, segment models.Segment, cfg Config) (notificationType string, contentDriven bool) {
	switch {
	case content.UpcomingMeeting != nil:
		return "upcoming_meeting", true
	case content.DealUpdate != nil:
		return "deal_update", true
	case content.ChampionChange != nil:
		return "champion_change", true
	case content.NewEmailSummary != nil:
		return "new_email_summary", true
	}
	trigger := cfg.Reengagement[segment]
	if len(trigger.NotificationTypes) == 0 {
		return "feature_highlight", false
	}
	return trigger.NotificationTypes[0], false
}

// ReengagementPriorityScore ranks candidates 0..100 so the job can spend its
// budget on the users most likely to come back.
func ReengagementPriorityScore(previousOverall, attempts int, contentDriven bool, daysInactive float64) int {
	score := 50.0
	if previousOverall > 70 {
		score += 15
	} else if previousOverall > 50 {
		score += 10
	}
	score -= 10 * float64(attempts)
	if contentDriven {
		score += 20
	}
	switch {
	case daysInactive < 7:
		score += 5
	case daysInactive > 30:
		score -= 10
	case daysInactive >= 14:
		score -= 5
	}
	return clampScore(score)
}

// SelectReengagementChannel picks the outreach channel: long-gone users get
// email, at-risk users with a chat mapping get chat.
func SelectReengagementChannel(segment models.Segment, hasChatMapping bool) models.NotificationChannel {
	switch segment {
	case models.SegmentChurned, models.SegmentDormant:
		return models.ChannelEmail
	case models.SegmentAtRisk:
		if hasChatMapping {
			return models.ChannelChat
		}
	}
	return models.ChannelEmail
}
