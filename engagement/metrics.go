package engagement

import (
	"math"
	"sort"
	"time"

	"use60backend/models"
)

// ComputedMetrics is the output of one metric computation pass. All scores
// are integers in [0, 100].
type ComputedMetrics struct {
	Scores             models.EngagementScores
	Segment            models.Segment
	FatigueScore       int
	FatigueLevel       models.FatigueLevel
	PreferredFrequency models.PreferredFrequency
	PeakHour           *int
	TypicalActiveHours map[int][]int
	AvgDailySessions   float64
}

func clampScore(v float64) int {
	r := int(math.Round(v))
	if r < 0 {
		return 0
	}
	if r > 100 {
		return 100
	}
	return r
}

func daysSince(t *time.Time, now time.Time) float64 {
	if t == nil {
		return math.Inf(1)
	}
	return now.Sub(*t).Hours() / 24
}

// ComputeAppScore derives the in-app engagement score. With no events in the
// window the score decays from the last known activity; with events it blends
// frequency, intensity, and session spread.
func ComputeAppScore(events []models.ActivityEvent, lastAppActiveAt *time.Time, now time.Time) int {
	if len(events) == 0 {
		d := daysSince(lastAppActiveAt, now)
		switch {
		case d < 1:
			return 60
		case d < 3:
			return 40
		case d < 7:
			return 20
		default:
			return 10
		}
	}

	days := map[string]struct{}{}
	sessions := map[string]struct{}{}
	for _, e := range events {
		days[e.OccurredAt.Format("2006-01-02")] = struct{}{}
		if e.SessionID != nil && *e.SessionID != "" {
			sessions[*e.SessionID] = struct{}{}
		}
	}

	frequencyScore := math.Min(float64(len(days))/7, 1) * 40
	intensityScore := math.Min(float64(len(events))/50, 1) * 30
	sessionScore := math.Min(float64(len(sessions))/10, 1) * 30
	return clampScore(frequencyScore + intensityScore + sessionScore)
}

// ComputeChatScore derives the chat engagement score with the same shape as
// the app score but chat-specific decay and weights.
func ComputeChatScore(events []models.ActivityEvent, lastChatActiveAt *time.Time, now time.Time) int {
	if len(events) == 0 {
		d := daysSince(lastChatActiveAt, now)
		switch {
		case d < 1:
			return 50
		case d < 3:
			return 30
		case d < 7:
			return 15
		default:
			return 10
		}
	}

	days := map[string]struct{}{}
	for _, e := range events {
		days[e.OccurredAt.Format("2006-01-02")] = struct{}{}
	}

	frequencyScore := math.Min(float64(len(days))/7, 1) * 50
	intensityScore := math.Min(float64(len(events))/20, 1) * 50
	return clampScore(frequencyScore + intensityScore)
}

// ComputeNotificationScore derives the notification engagement score from
// click-through rate, response latency, and dismissal rate. No interaction
// history yields the neutral 50.
func ComputeNotificationScore(interactions []models.NotificationInteraction) int {
	if len(interactions) == 0 {
		return 50
	}

	total := len(interactions)
	clicked := 0
	dismissed := 0
	var responseSecondsSum, responsesCounted float64
	for _, i := range interactions {
		if i.ClickedAt != nil {
			clicked++
			if i.TimeToInteractionSeconds != nil {
				responseSecondsSum += float64(*i.TimeToInteractionSeconds)
				responsesCounted++
			}
		}
		if i.DismissedAt != nil {
			dismissed++
		}
	}

	ctr := float64(clicked) / float64(total)
	ctrScore := ctr * 60

	responseTimeScore := 0.0
	if responsesCounted > 0 {
		avgResponseSeconds := responseSecondsSum / responsesCounted
		responseTimeScore = math.Max(0, 25-(avgResponseSeconds/3600)*25)
	}

	dismissalPenalty := float64(dismissed) / float64(total) * 15

	const base = 15
	return clampScore(ctrScore + responseTimeScore - dismissalPenalty + base)
}

// ComputeOverallScore blends the channel scores with the configured weights.
func ComputeOverallScore(app, chat, notification int, w Weights) int {
	return clampScore(float64(app)*w.App + float64(chat)*w.Chat + float64(notification)*w.Notification)
}

// AssignSegment applies the ordered segmentation rules; the first matching
// branch wins.
func AssignSegment(overallScore int, daysSinceActive float64, sessionsPerDay float64, rules SegmentRules) models.Segment {
	switch {
	case daysSinceActive >= float64(rules.ChurnedAfterDays):
		return models.SegmentChurned
	case daysSinceActive >= float64(rules.DormantAfterDays):
		return models.SegmentDormant
	case daysSinceActive >= float64(rules.AtRiskAfterDays) || overallScore < rules.AtRiskBelowScore:
		return models.SegmentAtRisk
	case overallScore >= rules.PowerUserMinScore && sessionsPerDay >= rules.PowerUserMinSessions:
		return models.SegmentPowerUser
	case overallScore >= rules.RegularMinScore:
		return models.SegmentRegular
	case overallScore >= rules.CasualMinScore:
		return models.SegmentCasual
	default:
		return models.SegmentAtRisk
	}
}

// ComputeActivityPatterns buckets events by weekday and hour. The peak hour
// is the global mode (lowest hour wins a tie); each weekday gets its top 5
// hours sorted by activity count descending, ties broken by earlier hour.
func ComputeActivityPatterns(events []models.ActivityEvent) (peakHour *int, typicalActiveHours map[int][]int) {
	typicalActiveHours = make(map[int][]int)
	if len(events) == 0 {
		return nil, typicalActiveHours
	}

	globalCounts := map[int]int{}
	perWeekday := map[int]map[int]int{}
	for _, e := range events {
		globalCounts[e.Hour]++
		if perWeekday[e.Weekday] == nil {
			perWeekday[e.Weekday] = map[int]int{}
		}
		perWeekday[e.Weekday][e.Hour]++
	}

	best, bestCount := 0, -1
	for hour := 0; hour < 24; hour++ {
		if c := globalCounts[hour]; c > bestCount {
			best, bestCount = hour, c
		}
	}
	peakHour = &best

	for weekday, counts := range perWeekday {
		hours := make([]int, 0, len(counts))
		for h := range counts {
			hours = append(hours, h)
		}
		sort.Slice(hours, func(a, b int) bool {
			if counts[hours[a]] != counts[hours[b]] {
				return counts[hours[a]] > counts[hours[b]]
			}
			return hours[a] < hours[b]
		})
		if len(hours) > 5 {
			hours = hours[:5]
		}
		typicalActiveHours[weekday] = hours
	}
	return peakHour, typicalActiveHours
}

// ComputeFatigue scores notification fatigue over the most recent 20
// interactions (interactions must be ordered most-recent first).
func ComputeFatigue(interactions []models.NotificationInteraction) int {
	if len(interactions) == 0 {
		return 0
	}
	window := interactions
	if len(window) > 20 {
		window = window[:20]
	}

	dismissed, ignored := 0, 0
	for _, i := range window {
		if i.DismissedAt != nil {
			dismissed++
		} else if i.Ignored() {
			ignored++
		}
	}
	n := float64(len(window))
	dismissalRate := float64(dismissed) / n
	ignoreRate := float64(ignored) / n
	return clampScore((dismissalRate*50 + ignoreRate*50) * 100)
}

// ComputeAvgDailySessions returns unique sessions per active day.
func ComputeAvgDailySessions(events []models.ActivityEvent) float64 {
	days := map[string]struct{}{}
	sessions := map[string]struct{}{}
	for _, e := range events {
		day := e.OccurredAt.Format("2006-01-02")
		days[day] = struct{}{}
		if e.SessionID != nil && *e.SessionID != "" {
			sessions[day+"/"+*e.SessionID] = struct{}{}
		}
	}
	if len(days) == 0 {
		return 0
	}
	return float64(len(sessions)) / float64(len(days))
}

// DerivePreferredFrequency maps a segment onto its baseline notification
// frequency, stepped down when fatigue is elevated. Critical fatigue always
// means low.
func DerivePreferredFrequency(segment models.Segment, fatigueLevel models.FatigueLevel) models.PreferredFrequency {
	var base models.PreferredFrequency
	switch segment {
	case models.SegmentPowerUser:
		base = models.FrequencyHigh
	case models.SegmentRegular, models.SegmentCasual:
		base = models.FrequencyModerate
	default:
		base = models.FrequencyLow
	}

	switch fatigueLevel {
	case models.FatigueLevelCritical:
		return models.FrequencyLow
	case models.FatigueLevelHigh:
		if base == models.FrequencyHigh {
			return models.FrequencyModerate
		}
		return models.FrequencyLow
	}
	return base
}

// ShouldRequestFeedback gates in-product feedback prompts: the first request
// waits for enough delivered notifications, later ones for the configured
// interval.
func ShouldRequestFeedback(m *models.UserMetrics, now time.Time, cfg Config) bool {
	if m.LastFeedbackRequestedAt == nil {
		return m.NotificationsSinceFeedback >= cfg.MinNotificationsBeforeFeedback
	}
	return daysSince(m.LastFeedbackRequestedAt, now) >= float64(cfg.FeedbackIntervalDays)
}

// ComputeMetrics runs the full pure computation for one user. Missing data
// never fails; it produces conservative low scores instead.
func ComputeMetrics(
	user *models.User,
	events []models.ActivityEvent,
	interactions []models.NotificationInteraction,
	now time.Time,
	cfg Config,
) ComputedMetrics {
	var appEvents, chatEvents []models.ActivityEvent
	var lastActivityAt *time.Time
	for _, e := range events {
		switch e.Source {
		case models.ActivitySourceApp:
			appEvents = append(appEvents, e)
		case models.ActivitySourceChat:
			chatEvents = append(chatEvents, e)
		}
		if lastActivityAt == nil || e.OccurredAt.After(*lastActivityAt) {
			t := e.OccurredAt
			lastActivityAt = &t
		}
	}
	if lastActivityAt == nil {
		lastActivityAt = latestTime(user.LastAppActiveAt, user.LastChatActiveAt, user.LastLoginAt)
	}

	app := ComputeAppScore(appEvents, user.LastAppActiveAt, now)
	chat := ComputeChatScore(chatEvents, user.LastChatActiveAt, now)
	notif := ComputeNotificationScore(interactions)
	overall := ComputeOverallScore(app, chat, notif, cfg.Weights)

	sessionsPerDay := ComputeAvgDailySessions(events)
	segment := AssignSegment(overall, daysSince(lastActivityAt, now), sessionsPerDay, cfg.Segments)

	fatigue := ComputeFatigue(interactions)
	fatigueLevel := cfg.FatigueLevelFor(fatigue)
	peakHour, typical := ComputeActivityPatterns(events)

	return ComputedMetrics{
		Scores: models.EngagementScores{
			App:          app,
			Chat:         chat,
			Notification: notif,
			Overall:      overall,
		},
		Segment:            segment,
		FatigueScore:       fatigue,
		FatigueLevel:       fatigueLevel,
		PreferredFrequency: DerivePreferredFrequency(segment, fatigueLevel),
		PeakHour:           peakHour,
		TypicalActiveHours: typical,
		AvgDailySessions:   sessionsPerDay,
	}
}

func latestTime(ts ...*time.Time) *time.Time {
	var latest *time.Time
	for _, t := range ts {
		if t == nil {
			continue
		}
		if latest == nil || t.After(*latest) {
			latest = t
		}
	}
	return latest
}
