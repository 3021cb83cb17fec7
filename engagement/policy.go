package engagement

import (
	"math"
	"time"

	"use60backend/clock"
	"use60backend/models"
)

// DeliveryInput carries everything the policy engine needs to gate one
// candidate delivery. The engine is CPU-only: counts and timestamps are
// loaded by the caller.
type DeliveryInput struct {
	Now           time.Time
	Timezone      string
	Priority      models.Priority
	Metrics       *models.UserMetrics
	CountThisHour int
	CountToday    int
	LastSentAt    *time.Time
	PendingCount  int
}

// DeliveryDecision is the gate result. Denials carry the machine-readable
// reason and the earliest instant a retry could pass.
type DeliveryDecision struct {
	Allowed       bool
	Reason        string
	NextAllowedAt *time.Time
}

func allow() DeliveryDecision {
	return DeliveryDecision{Allowed: true}
}

func deny(reason string, next time.Time) DeliveryDecision {
	return DeliveryDecision{Allowed: false, Reason: reason, NextAllowedAt: &next}
}

// DowngradePriority lowers a candidate's priority under fatigue. Urgent is
// never downgraded. High fatigue downgrades only normal, not high: that
// asymmetry mirrors the shipped behavior.
// TODO(product): decide whether high fatigue should also downgrade high->normal.
func DowngradePriority(p models.Priority, fatigue models.FatigueLevel) models.Priority {
	if p == models.PriorityUrgent {
		return p
	}
	switch fatigue {
	case models.FatigueLevelCritical:
		switch p {
		case models.PriorityHigh:
			return models.PriorityNormal
		case models.PriorityNormal:
			return models.PriorityLow
		}
	case models.FatigueLevelHigh:
		if p == models.PriorityNormal {
			return models.PriorityLow
		}
	}
	return p
}

// EffectiveCooldown is the priority's base cooldown scaled by fatigue and
// segment multipliers.
func EffectiveCooldown(cfg Config, priority models.Priority, fatigue models.FatigueLevel, segment models.Segment) time.Duration {
	base := time.Duration(cfg.PriorityOverrideFor(priority).CooldownMinutes) * time.Minute
	scaled := float64(base) * cfg.FatigueMultiplier(fatigue) * cfg.SegmentCooldownMultiplier(segment)
	return time.Duration(scaled)
}

// EvaluateDelivery runs the delivery gates in order: active window, hourly
// limit, daily limit, cooldown.
func EvaluateDelivery(cfg Config, in DeliveryInput) DeliveryDecision {
	m := in.Metrics
	local := in.Now.In(clock.LoadLocation(in.Timezone))

	// 1. Quiet/active window. Urgent ignores it entirely.
	if in.Priority != models.PriorityUrgent {
		hour := local.Hour()
		inBusinessHours := hour >= cfg.Timing.DefaultStartHour && hour <= cfg.Timing.DefaultEndHour
		_, inActiveHours := m.IsActiveHour(clock.WeekdayIndex(local), hour)
		if !inBusinessHours && !inActiveHours {
			return deny(models.SkipReasonQuietHours, nextActiveWindow(cfg, m, local))
		}
	}

	override := cfg.PriorityOverrideFor(in.Priority)
	fatigueMultiplier := cfg.FatigueMultiplier(m.FatigueLevel)
	limits := cfg.FrequencyLimitFor(m.PreferredFrequency)

	// 2. Hourly limit, tightened under fatigue but never below one.
	effectiveMaxPerHour := int(math.Max(1, math.Floor(float64(limits.MaxPerHour)/fatigueMultiplier)))
	if in.CountThisHour >= effectiveMaxPerHour && !override.AllowExceed {
		return deny(models.SkipReasonHourlyLimit, clock.StartOfHour(local).Add(time.Hour))
	}

	// 3. Daily limit.
	effectiveMaxPerDay := int(math.Max(1, math.Floor(float64(limits.MaxPerDay)/fatigueMultiplier)))
	if in.CountToday >= effectiveMaxPerDay && !override.AllowExceed {
		return deny(models.SkipReasonDailyLimit, clock.StartOfDay(in.Now, in.Timezone).Add(24*time.Hour))
	}

	// 4. Cooldown, scaled by fatigue then segment. Urgent alone bypasses it.
	if in.Priority != models.PriorityUrgent && in.LastSentAt != nil {
		cooldown := EffectiveCooldown(cfg, in.Priority, m.FatigueLevel, m.Segment)
		if in.Now.Sub(*in.LastSentAt) < cooldown {
			return deny(models.SkipReasonCooldown, in.LastSentAt.Add(cooldown))
		}
	}

	return allow()
}

// nextActiveWindow finds the earliest top-of-hour at or after local time
// that is either within business hours or among the user's typical active
// hours for that weekday.
func nextActiveWindow(cfg Config, m *models.UserMetrics, local time.Time) time.Time {
	candidate := clock.StartOfHour(local).Add(time.Hour)
	for i := 0; i < 48; i++ {
		hour := candidate.Hour()
		if hour >= cfg.Timing.DefaultStartHour && hour <= cfg.Timing.DefaultEndHour {
			return candidate
		}
		if _, ok := m.IsActiveHour(clock.WeekdayIndex(candidate), hour); ok {
			return candidate
		}
		candidate = candidate.Add(time.Hour)
	}
	return candidate
}

// ShouldBatch decides whether a candidate joins a batch instead of going out
// on its own. Urgent and high priority always go alone.
func ShouldBatch(priority models.Priority, fatigue models.FatigueLevel, pendingCount int) bool {
	if priority == models.PriorityUrgent || priority == models.PriorityHigh {
		return false
	}
	if (fatigue == models.FatigueLevelHigh || fatigue == models.FatigueLevelCritical) && pendingCount < 5 {
		return true
	}
	if priority == models.PriorityLow && pendingCount > 0 && pendingCount < 3 {
		return true
	}
	return false
}

var priorityBoosts = map[models.Priority]float64{
	models.PriorityUrgent: 30,
	models.PriorityHigh:   15,
	models.PriorityNormal: 0,
	models.PriorityLow:    -10,
}

// OptimalTime is the scorer's pick for when to send.
type OptimalTime struct {
	SendAt     time.Time
	Confidence float64
	Score      float64
	Immediate  bool
}

// OptimalSendTime scores every candidate hour in the lookahead window and
// picks the best one above the confidence floor. Urgent notifications may use
// any hour; everything else is confined to business hours. When no candidate
// qualifies, non-urgent sends fall back to the user's peak hour and urgent
// sends go out immediately.
func OptimalSendTime(cfg Config, in DeliveryInput) OptimalTime {
	m := in.Metrics
	local := in.Now.In(clock.LoadLocation(in.Timezone))
	urgent := in.Priority == models.PriorityUrgent

	fatigueMultiplier := cfg.FatigueMultiplier(m.FatigueLevel)
	segmentFactor := cfg.SegmentPriorityFactor(m.Segment)
	notificationScore := float64(m.Scores.Notification)

	var best *OptimalTime
	for offset := 0; offset <= cfg.Timing.LookaheadHours; offset++ {
		candidate := clock.StartOfHour(local).Add(time.Duration(offset) * time.Hour)
		if offset == 0 {
			candidate = local
		}
		hour := candidate.Hour()
		if !urgent && (hour < cfg.Timing.DefaultStartHour || hour > cfg.Timing.DefaultEndHour) {
			continue
		}

		score := 50.0
		if m.PeakHour != nil && hour == *m.PeakHour {
			score += 30
		} else if rank, ok := m.IsActiveHour(clock.WeekdayIndex(candidate), hour); ok {
			score += math.Max(0, 25-5*float64(rank))
		}
		score += notificationScore / 100 * 20
		score -= math.Min(25, (fatigueMultiplier-1)*20)
		score += priorityBoosts[in.Priority]
		if clock.IsWeekend(candidate, in.Timezone) && !urgent {
			score *= cfg.Timing.WeekendFactor
		}
		score *= segmentFactor
		score -= 2 * candidate.Sub(local).Hours()

		if best == nil || score > best.Score || (score == best.Score && isPeak(m, hour) && !isPeak(m, best.SendAt.Hour())) {
			best = &OptimalTime{SendAt: candidate, Confidence: math.Min(1, score/100), Score: score}
		}
	}

	if best != nil && best.Score >= cfg.Timing.MinConfidence*100 {
		return *best
	}

	if urgent {
		return OptimalTime{SendAt: local, Confidence: 0.5, Immediate: true}
	}

	// Fall back to the peak hour with low confidence.
	fallback := clock.StartOfHour(local).Add(time.Hour)
	if m.PeakHour != nil {
		fallback = nextHourOccurrence(local, *m.PeakHour)
	}
	return OptimalTime{SendAt: fallback, Confidence: 0.3}
}

func isPeak(m *models.UserMetrics, hour int) bool {
	return m.PeakHour != nil && hour == *m.PeakHour
}

func nextHourOccurrence(from time.Time, hour int) time.Time {
	candidate := time.Date(from.Year(), from.Month(), from.Day(), hour, 0, 0, 0, from.Location())
	if !candidate.After(from) {
		candidate = candidate.Add(24 * time.Hour)
	}
	return candidate
}
