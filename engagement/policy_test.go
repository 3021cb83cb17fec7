package engagement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"use60backend/models"
)

func baseMetrics() *models.UserMetrics {
	peak := 14
	return &models.UserMetrics{
		UserID: "u_policy",
		Scores: models.EngagementScores{
			App: 70, Chat: 60, Notification: 50, Overall: 63,
		},
		Segment:            models.SegmentRegular,
		FatigueScore:       10,
		FatigueLevel:       models.FatigueLevelLow,
		PreferredFrequency: models.FrequencyModerate,
		PeakHour:           &peak,
		TypicalActiveHours: map[int][]int{
			2: {14, 9, 15, 10, 16}, // Tuesday
		},
	}
}

func TestDowngradePriority(t *testing.T) {
	t.Run("urgent never downgrades", func(t *testing.T) {
		for _, lvl := range []models.FatigueLevel{
			models.FatigueLevelLow, models.FatigueLevelModerate,
			models.FatigueLevelHigh, models.FatigueLevelCritical,
		} {
			assert.Equal(t, models.PriorityUrgent, DowngradePriority(models.PriorityUrgent, lvl))
		}
	})

	t.Run("critical fatigue downgrades high and normal", func(t *testing.T) {
		assert.Equal(t, models.PriorityNormal, DowngradePriority(models.PriorityHigh, models.FatigueLevelCritical))
		assert.Equal(t, models.PriorityLow, DowngradePriority(models.PriorityNormal, models.FatigueLevelCritical))
		assert.Equal(t, models.PriorityLow, DowngradePriority(models.PriorityLow, models.FatigueLevelCritical))
	})

	t.Run("high fatigue downgrades only normal", func(t *testing.T) {
		assert.Equal(t, models.PriorityHigh, DowngradePriority(models.PriorityHigh, models.FatigueLevelHigh))
		assert.Equal(t, models.PriorityLow, DowngradePriority(models.PriorityNormal, models.FatigueLevelHigh))
	})

	t.Run("low fatigue leaves everything alone", func(t *testing.T) {
		assert.Equal(t, models.PriorityNormal, DowngradePriority(models.PriorityNormal, models.FatigueLevelLow))
	})
}

// Fatigue suppression: critical fatigue on a moderate-frequency user drops
// the hourly budget to one.
func TestEvaluateDeliveryFatigueSuppression(t *testing.T) {
	cfg := DefaultConfig()
	m := baseMetrics()
	m.FatigueScore = 80
	m.FatigueLevel = models.FatigueLevelCritical

	now := time.Date(2025, 6, 10, 10, 17, 0, 0, time.UTC) // Tuesday 10:17 UTC

	t.Run("first send allowed", func(t *testing.T) {
		decision := EvaluateDelivery(cfg, DeliveryInput{
			Now: now, Timezone: "UTC", Priority: models.PriorityNormal,
			Metrics: m, CountThisHour: 0, CountToday: 0,
		})
		assert.True(t, decision.Allowed)
	})

	t.Run("second send in same hour denied", func(t *testing.T) {
		decision := EvaluateDelivery(cfg, DeliveryInput{
			Now: now, Timezone: "UTC", Priority: models.PriorityNormal,
			Metrics: m, CountThisHour: 1, CountToday: 1,
			LastSentAt: timePtr(now.Add(-time.Minute)),
		})
		require.False(t, decision.Allowed)
		assert.Equal(t, models.SkipReasonHourlyLimit, decision.Reason)
		require.NotNil(t, decision.NextAllowedAt)
		assert.Equal(t, time.Date(2025, 6, 10, 11, 0, 0, 0, time.UTC), decision.NextAllowedAt.UTC())
	})

	t.Run("urgent bypasses the hourly limit", func(t *testing.T) {
		decision := EvaluateDelivery(cfg, DeliveryInput{
			Now: now, Timezone: "UTC", Priority: models.PriorityUrgent,
			Metrics: m, CountThisHour: 1, CountToday: 1,
			LastSentAt: timePtr(now.Add(-time.Minute)),
		})
		assert.True(t, decision.Allowed)
	})
}

func TestEvaluateDeliveryDailyLimit(t *testing.T) {
	cfg := DefaultConfig()
	m := baseMetrics()
	now := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)

	decision := EvaluateDelivery(cfg, DeliveryInput{
		Now: now, Timezone: "UTC", Priority: models.PriorityNormal,
		Metrics: m, CountThisHour: 0, CountToday: 8,
	})
	require.False(t, decision.Allowed)
	assert.Equal(t, models.SkipReasonDailyLimit, decision.Reason)
	require.NotNil(t, decision.NextAllowedAt)
	assert.Equal(t, time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC), decision.NextAllowedAt.UTC())
}

// Cooldown denial must carry nextAllowedAt = lastSent + effectiveCooldown to
// the second.
func TestEvaluateDeliveryCooldown(t *testing.T) {
	cfg := DefaultConfig()
	m := baseMetrics()
	now := time.Date(2025, 6, 10, 10, 30, 0, 0, time.UTC)
	lastSent := now.Add(-10 * time.Minute)

	decision := EvaluateDelivery(cfg, DeliveryInput{
		Now: now, Timezone: "UTC", Priority: models.PriorityNormal,
		Metrics: m, CountThisHour: 0, CountToday: 1,
		LastSentAt: &lastSent,
	})
	require.False(t, decision.Allowed)
	assert.Equal(t, models.SkipReasonCooldown, decision.Reason)

	// normal base 60m, low fatigue x1.0, regular segment x1.0
	expected := lastSent.Add(60 * time.Minute)
	require.NotNil(t, decision.NextAllowedAt)
	assert.Equal(t, expected, decision.NextAllowedAt.UTC())
}

func TestEvaluateDeliveryCooldownScaling(t *testing.T) {
	cfg := DefaultConfig()
	m := baseMetrics()
	m.FatigueLevel = models.FatigueLevelHigh // x1.75
	m.Segment = models.SegmentAtRisk         // x2.0
	now := time.Date(2025, 6, 10, 10, 30, 0, 0, time.UTC)
	lastSent := now.Add(-3 * time.Hour)

	// normal base 60m x 1.75 x 2.0 = 210m
	decision := EvaluateDelivery(cfg, DeliveryInput{
		Now: now, Timezone: "UTC", Priority: models.PriorityNormal,
		Metrics: m, LastSentAt: &lastSent,
	})
	require.False(t, decision.Allowed)
	require.NotNil(t, decision.NextAllowedAt)
	assert.Equal(t, lastSent.Add(210*time.Minute), decision.NextAllowedAt.UTC())

	assert.Equal(t, 210*time.Minute,
		EffectiveCooldown(cfg, models.PriorityNormal, models.FatigueLevelHigh, models.SegmentAtRisk))
}

func TestEvaluateDeliveryQuietHours(t *testing.T) {
	cfg := DefaultConfig()
	m := baseMetrics()

	t.Run("outside business and active hours defers", func(t *testing.T) {
		now := time.Date(2025, 6, 10, 3, 0, 0, 0, time.UTC) // Tuesday 03:00
		decision := EvaluateDelivery(cfg, DeliveryInput{
			Now: now, Timezone: "UTC", Priority: models.PriorityNormal, Metrics: m,
		})
		require.False(t, decision.Allowed)
		assert.Equal(t, models.SkipReasonQuietHours, decision.Reason)
		require.NotNil(t, decision.NextAllowedAt)
		assert.Equal(t, 9, decision.NextAllowedAt.Hour())
	})

	t.Run("typical active hour outside business hours passes", func(t *testing.T) {
		m := baseMetrics()
		m.TypicalActiveHours[2] = []int{22}
		now := time.Date(2025, 6, 10, 22, 15, 0, 0, time.UTC)
		decision := EvaluateDelivery(cfg, DeliveryInput{
			Now: now, Timezone: "UTC", Priority: models.PriorityNormal, Metrics: m,
		})
		assert.True(t, decision.Allowed)
	})

	t.Run("urgent ignores quiet hours", func(t *testing.T) {
		now := time.Date(2025, 6, 10, 3, 0, 0, 0, time.UTC)
		decision := EvaluateDelivery(cfg, DeliveryInput{
			Now: now, Timezone: "UTC", Priority: models.PriorityUrgent, Metrics: m,
		})
		assert.True(t, decision.Allowed)
	})
}

// Optimal time: Tuesday 08:30 with peak hour 14 recommends 14:00 same day
// with high confidence.
func TestOptimalSendTimeDefersToPeak(t *testing.T) {
	cfg := DefaultConfig()
	m := baseMetrics()
	now := time.Date(2025, 6, 10, 8, 30, 0, 0, time.UTC) // Tuesday 08:30

	pick := OptimalSendTime(cfg, DeliveryInput{
		Now: now, Timezone: "UTC", Priority: models.PriorityNormal, Metrics: m,
	})

	assert.Equal(t, time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC), pick.SendAt.UTC())
	assert.GreaterOrEqual(t, pick.Confidence, 0.7)
	assert.False(t, pick.Immediate)
}

func TestOptimalSendTimeUrgentImmediateFallback(t *testing.T) {
	cfg := DefaultConfig()
	m := baseMetrics()
	m.FatigueLevel = models.FatigueLevelCritical
	m.Segment = models.SegmentChurned
	m.Scores.Notification = 0
	m.PeakHour = nil
	m.TypicalActiveHours = map[int][]int{}

	// Saturday: weekend factor halves every non-urgent candidate below the
	// confidence floor.
	now := time.Date(2025, 6, 14, 10, 0, 0, 0, time.UTC)

	t.Run("non-urgent falls back with low confidence", func(t *testing.T) {
		pick := OptimalSendTime(cfg, DeliveryInput{
			Now: now, Timezone: "UTC", Priority: models.PriorityLow, Metrics: m,
		})
		assert.InDelta(t, 0.3, pick.Confidence, 0.0001)
	})

	t.Run("urgent sends immediately", func(t *testing.T) {
		pick := OptimalSendTime(cfg, DeliveryInput{
			Now: now, Timezone: "UTC", Priority: models.PriorityUrgent, Metrics: m,
		})
		// Urgent candidates keep a passing score, so either a qualifying
		// hour or the immediate fallback is acceptable; it must never defer
		// past the lookahead.
		assert.True(t, pick.SendAt.Sub(now) <= time.Duration(cfg.Timing.LookaheadHours)*time.Hour)
	})
}

func TestShouldBatch(t *testing.T) {
	t.Run("urgent and high never batch", func(t *testing.T) {
		assert.False(t, ShouldBatch(models.PriorityUrgent, models.FatigueLevelCritical, 4))
		assert.False(t, ShouldBatch(models.PriorityHigh, models.FatigueLevelCritical, 4))
	})

	t.Run("high fatigue batches small backlogs", func(t *testing.T) {
		assert.True(t, ShouldBatch(models.PriorityNormal, models.FatigueLevelHigh, 4))
		assert.False(t, ShouldBatch(models.PriorityNormal, models.FatigueLevelHigh, 5))
	})

	t.Run("low priority batches one or two pending", func(t *testing.T) {
		assert.False(t, ShouldBatch(models.PriorityLow, models.FatigueLevelLow, 0))
		assert.True(t, ShouldBatch(models.PriorityLow, models.FatigueLevelLow, 1))
		assert.True(t, ShouldBatch(models.PriorityLow, models.FatigueLevelLow, 2))
		assert.False(t, ShouldBatch(models.PriorityLow, models.FatigueLevelLow, 3))
	})
}
