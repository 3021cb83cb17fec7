package engagement

import (
	"use60backend/models"
)

// Config is the immutable tuning registry for the engagement engine. It is
// constructed once and passed explicitly so tests can vary thresholds per
// case instead of mutating process globals.
type Config struct {
	Weights                Weights
	Segments               SegmentRules
	NotificationThresholds map[models.PreferredFrequency]FrequencyLimit
	Fatigue                FatigueConfig
	PriorityOverrides      map[models.Priority]PriorityOverride
	Timing                 TimingConfig
	SegmentCooldown        map[models.Segment]float64
	SegmentPriority        map[models.Segment]float64
	Reengagement           map[models.Segment]ReengagementTrigger

	FeedbackIntervalDays           int
	MinNotificationsBeforeFeedback int
}

// Weights split the overall engagement score across channels. They sum to 1.
type Weights struct {
	App          float64
	Chat         float64
	Notification float64
}

// SegmentRules hold the boundaries used by the ordered segment assignment.
type SegmentRules struct {
	ChurnedAfterDays     int
	DormantAfterDays     int
	AtRiskAfterDays      int
	AtRiskBelowScore     int
	PowerUserMinScore    int
	PowerUserMinSessions float64
	RegularMinScore      int
	CasualMinScore       int
}

type FrequencyLimit struct {
	MaxPerHour int
	MaxPerDay  int
}

type FatigueConfig struct {
	ModerateAt          int
	HighAt              int
	CriticalAt          int
	CooldownMultipliers map[models.FatigueLevel]float64
}

type PriorityOverride struct {
	AllowExceed     bool
	CooldownMinutes int
}

type TimingConfig struct {
	DefaultStartHour int
	DefaultEndHour   int
	WeekendFactor    float64
	LookaheadHours   int
	MinConfidence    float64
}

type ReengagementTrigger struct {
	AfterDays         int
	MaxAttempts       int
	CooldownDays      int
	NotificationTypes []string
}

// DefaultConfig returns the production tuning constants.
func DefaultConfig() Config {
	return Config{
		Weights: Weights{App: 0.5, Chat: 0.3, Notification: 0.2},
		Segments: SegmentRules{
			ChurnedAfterDays:     30,
			DormantAfterDays:     14,
			AtRiskAfterDays:      7,
			AtRiskBelowScore:     25,
			PowerUserMinScore:    80,
			PowerUserMinSessions: 3,
			RegularMinScore:      50,
			CasualMinScore:       25,
		},
		NotificationThresholds: map[models.PreferredFrequency]FrequencyLimit{
			models.FrequencyHigh:     {MaxPerHour: 3, MaxPerDay: 12},
			models.FrequencyModerate: {MaxPerHour: 2, MaxPerDay: 8},
			models.FrequencyLow:      {MaxPerHour: 1, MaxPerDay: 4},
		},
		Fatigue: FatigueConfig{
			ModerateAt: 25,
			HighAt:     50,
			CriticalAt: 75,
			CooldownMultipliers: map[models.FatigueLevel]float64{
				models.FatigueLevelLow:      1.0,
				models.FatigueLevelModerate: 1.25,
				models.FatigueLevelHigh:     1.75,
				models.FatigueLevelCritical: 2.5,
			},
		},
		PriorityOverrides: map[models.Priority]PriorityOverride{
			models.PriorityUrgent: {AllowExceed: true, CooldownMinutes: 0},
			models.PriorityHigh:   {AllowExceed: true, CooldownMinutes: 30},
			models.PriorityNormal: {AllowExceed: false, CooldownMinutes: 60},
			models.PriorityLow:    {AllowExceed: false, CooldownMinutes: 120},
		},
		Timing: TimingConfig{
			DefaultStartHour: 9,
			DefaultEndHour:   18,
			WeekendFactor:    0.5,
			LookaheadHours:   24,
			MinConfidence:    0.4,
		},
		SegmentCooldown: map[models.Segment]float64{
			models.SegmentPowerUser: 0.5,
			models.SegmentRegular:   1.0,
			models.SegmentCasual:    1.5,
			models.SegmentAtRisk:    2.0,
			models.SegmentDormant:   2.5,
			models.SegmentChurned:   3.0,
		},
		SegmentPriority: map[models.Segment]float64{
			models.SegmentPowerUser: 1.1,
			models.SegmentRegular:   1.0,
			models.SegmentCasual:    0.95,
			models.SegmentAtRisk:    0.9,
			models.SegmentDormant:   0.85,
			models.SegmentChurned:   0.8,
		},
		Reengagement: map[models.Segment]ReengagementTrigger{
			models.SegmentAtRisk: {
				AfterDays:         5,
				MaxAttempts:       3,
				CooldownDays:      7,
				NotificationTypes: []string{"feature_highlight", "pipeline_summary"},
			},
			models.SegmentDormant: {
				AfterDays:         3,
				MaxAttempts:       4,
				CooldownDays:      10,
				NotificationTypes: []string{"whats_new", "pipeline_summary"},
			},
			models.SegmentChurned: {
				AfterDays:         14,
				MaxAttempts:       2,
				CooldownDays:      30,
				NotificationTypes: []string{"win_back"},
			},
		},
		FeedbackIntervalDays:           14,
		MinNotificationsBeforeFeedback: 10,
	}
}

// FrequencyLimitFor returns the per-hour/per-day caps for a preferred
// frequency, defaulting to moderate for unknown values.
func (c Config) FrequencyLimitFor(f models.PreferredFrequency) FrequencyLimit {
	if limit, ok := c.NotificationThresholds[f]; ok {
		return limit
	}
	return c.NotificationThresholds[models.FrequencyModerate]
}

// FatigueLevelFor maps a fatigue score onto its level band.
func (c Config) FatigueLevelFor(score int) models.FatigueLevel {
	switch {
	case score >= c.Fatigue.CriticalAt:
		return models.FatigueLevelCritical
	case score >= c.Fatigue.HighAt:
		return models.FatigueLevelHigh
	case score >= c.Fatigue.ModerateAt:
		return models.FatigueLevelModerate
	default:
		return models.FatigueLevelLow
	}
}

// FatigueMultiplier returns the cooldown multiplier for a fatigue level.
func (c Config) FatigueMultiplier(level models.FatigueLevel) float64 {
	if m, ok := c.Fatigue.CooldownMultipliers[level]; ok {
		return m
	}
	return 1.0
}

// SegmentCooldownMultiplier returns the segment's cooldown multiplier,
// defaulting to 1.0 for unknown segments.
func (c Config) SegmentCooldownMultiplier(s models.Segment) float64 {
	if m, ok := c.SegmentCooldown[s]; ok {
		return m
	}
	return 1.0
}

// SegmentPriorityFactor returns the optimal-time scoring factor for a
// segment, defaulting to 1.0.
func (c Config) SegmentPriorityFactor(s models.Segment) float64 {
	if m, ok := c.SegmentPriority[s]; ok {
		return m
	}
	return 1.0
}

// PriorityOverrideFor returns the override row for a priority, defaulting to
// the normal-priority behavior.
func (c Config) PriorityOverrideFor(p models.Priority) PriorityOverride {
	if o, ok := c.PriorityOverrides[p]; ok {
		return o
	}
	return c.PriorityOverrides[models.PriorityNormal]
}
