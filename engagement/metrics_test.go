package engagement

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"use60backend/models"
)

var testNow = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC) // Tuesday

func timePtr(t time.Time) *time.Time { return &t }
func strPtr(s string) *string        { return &s }
func intPtr(i int) *int              { return &i }

func appEvent(at time.Time, session string) models.ActivityEvent {
	e := models.ActivityEvent{
		UserID:     "u_test",
		Source:     models.ActivitySourceApp,
		Type:       "page_view",
		OccurredAt: at,
		Weekday:    int(at.Weekday()),
		Hour:       at.Hour(),
	}
	if session != "" {
		e.SessionID = strPtr(session)
	}
	return e
}

func TestComputeAppScore(t *testing.T) {
	t.Run("no events decays from last activity", func(t *testing.T) {
		cases := []struct {
			name       string
			lastActive *time.Time
			expected   int
		}{
			{"active today", timePtr(testNow.Add(-6 * time.Hour)), 60},
			{"active two days ago", timePtr(testNow.Add(-48 * time.Hour)), 40},
			{"active five days ago", timePtr(testNow.Add(-5 * 24 * time.Hour)), 20},
			{"active last month", timePtr(testNow.Add(-30 * 24 * time.Hour)), 10},
			{"never active", nil, 10},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				assert.Equal(t, tc.expected, ComputeAppScore(nil, tc.lastActive, testNow))
			})
		}
	})

	t.Run("saturated activity hits 100", func(t *testing.T) {
		var events []models.ActivityEvent
		for day := 0; day < 7; day++ {
			for i := 0; i < 10; i++ {
				at := testNow.Add(-time.Duration(day)*24*time.Hour - time.Duration(i)*time.Minute)
				events = append(events, appEvent(at, fmt.Sprintf("s-%d-%d", day, i)))
			}
		}
		assert.Equal(t, 100, ComputeAppScore(events, nil, testNow))
	})

	t.Run("single event day scores partial credit", func(t *testing.T) {
		events := []models.ActivityEvent{appEvent(testNow.Add(-time.Hour), "s1")}
		// 1/7*40 + 1/50*30 + 1/10*30 = 5.714 + 0.6 + 3 = 9.31 -> 9
		assert.Equal(t, 9, ComputeAppScore(events, nil, testNow))
	})
}

func TestComputeChatScore(t *testing.T) {
	t.Run("no events decays from last chat activity", func(t *testing.T) {
		assert.Equal(t, 50, ComputeChatScore(nil, timePtr(testNow.Add(-time.Hour)), testNow))
		assert.Equal(t, 30, ComputeChatScore(nil, timePtr(testNow.Add(-2*24*time.Hour)), testNow))
		assert.Equal(t, 15, ComputeChatScore(nil, timePtr(testNow.Add(-4*24*time.Hour)), testNow))
		assert.Equal(t, 10, ComputeChatScore(nil, nil, testNow))
	})

	t.Run("daily chatting over a week saturates", func(t *testing.T) {
		var events []models.ActivityEvent
		for day := 0; day < 7; day++ {
			for i := 0; i < 3; i++ {
				at := testNow.Add(-time.Duration(day)*24*time.Hour - time.Duration(i)*time.Minute)
				e := appEvent(at, "")
				e.Source = models.ActivitySourceChat
				events = append(events, e)
			}
		}
		// 7/7*50 + 21/20 capped -> 50 + 50 = 100
		assert.Equal(t, 100, ComputeChatScore(events, nil, testNow))
	})
}

func TestComputeNotificationScore(t *testing.T) {
	t.Run("no interactions is neutral", func(t *testing.T) {
		assert.Equal(t, 50, ComputeNotificationScore(nil))
	})

	t.Run("all clicked fast is excellent", func(t *testing.T) {
		var inters []models.NotificationInteraction
		for i := 0; i < 10; i++ {
			inters = append(inters, models.NotificationInteraction{
				DeliveredAt:              testNow,
				ClickedAt:                timePtr(testNow.Add(time.Minute)),
				TimeToInteractionSeconds: intPtr(60),
			})
		}
		// ctr 1.0*60 + (25 - 60/3600*25) + 15 = 60 + 24.58 + 15 = 99.58 -> 100
		assert.Equal(t, 100, ComputeNotificationScore(inters))
	})

	t.Run("all dismissed is poor", func(t *testing.T) {
		var inters []models.NotificationInteraction
		for i := 0; i < 10; i++ {
			inters = append(inters, models.NotificationInteraction{
				DeliveredAt: testNow,
				DismissedAt: timePtr(testNow.Add(time.Minute)),
			})
		}
		// 0 + 0 - 15 + 15 = 0
		assert.Equal(t, 0, ComputeNotificationScore(inters))
	})
}

func TestComputeOverallScore(t *testing.T) {
	w := Weights{App: 0.5, Chat: 0.3, Notification: 0.2}
	assert.Equal(t, 100, ComputeOverallScore(100, 100, 100, w))
	assert.Equal(t, 0, ComputeOverallScore(0, 0, 0, w))
	// 80*0.5 + 50*0.3 + 60*0.2 = 40 + 15 + 12 = 67
	assert.Equal(t, 67, ComputeOverallScore(80, 50, 60, w))
}

// Every score must be an integer in [0, 100] no matter what the inputs look
// like.
func TestScoresAlwaysBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	cfg := DefaultConfig()

	for iter := 0; iter < 500; iter++ {
		var events []models.ActivityEvent
		for i := 0; i < rng.Intn(200); i++ {
			at := testNow.Add(-time.Duration(rng.Intn(14*24)) * time.Hour)
			e := appEvent(at, fmt.Sprintf("s%d", rng.Intn(30)))
			if rng.Intn(2) == 0 {
				e.Source = models.ActivitySourceChat
			}
			if rng.Intn(4) == 0 {
				e.SessionID = nil
			}
			events = append(events, e)
		}

		var inters []models.NotificationInteraction
		for i := 0; i < rng.Intn(60); i++ {
			inter := models.NotificationInteraction{DeliveredAt: testNow.Add(-time.Duration(i) * time.Hour)}
			switch rng.Intn(3) {
			case 0:
				inter.ClickedAt = timePtr(inter.DeliveredAt.Add(time.Minute))
				inter.TimeToInteractionSeconds = intPtr(rng.Intn(100000))
			case 1:
				inter.DismissedAt = timePtr(inter.DeliveredAt.Add(time.Minute))
			}
			inters = append(inters, inter)
		}

		user := &models.User{ID: "u_fuzz", Timezone: "UTC"}
		if rng.Intn(2) == 0 {
			user.LastAppActiveAt = timePtr(testNow.Add(-time.Duration(rng.Intn(60*24)) * time.Hour))
		}

		computed := ComputeMetrics(user, events, inters, testNow, cfg)
		for name, score := range map[string]int{
			"app":          computed.Scores.App,
			"chat":         computed.Scores.Chat,
			"notification": computed.Scores.Notification,
			"overall":      computed.Scores.Overall,
			"fatigue":      computed.FatigueScore,
		} {
			assert.GreaterOrEqual(t, score, 0, "%s score below 0", name)
			assert.LessOrEqual(t, score, 100, "%s score above 100", name)
		}
	}
}

func TestAssignSegment(t *testing.T) {
	rules := DefaultConfig().Segments

	cases := []struct {
		name       string
		overall    int
		daysSince  float64
		sessions   float64
		expected   models.Segment
	}{
		{"inactive 30d is churned regardless of score", 95, 31, 5, models.SegmentChurned},
		{"inactive 14d is dormant", 95, 15, 5, models.SegmentDormant},
		{"inactive 7d is at risk", 95, 8, 5, models.SegmentAtRisk},
		{"low score is at risk even when active", 20, 1, 5, models.SegmentAtRisk},
		{"high score and sessions is power user", 85, 1, 4, models.SegmentPowerUser},
		{"high score low sessions is regular", 85, 1, 1, models.SegmentRegular},
		{"mid score is regular", 55, 1, 1, models.SegmentRegular},
		{"low-mid score is casual", 30, 1, 1, models.SegmentCasual},
		{"boundary 25 is casual", 25, 1, 1, models.SegmentCasual},
		{"boundary 24 is at risk", 24, 1, 1, models.SegmentAtRisk},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, AssignSegment(tc.overall, tc.daysSince, tc.sessions, rules))
		})
	}
}

// The segment must always equal the first matching branch of the ordered
// rule list, reproduced independently here.
func TestAssignSegmentMatchesOrderedRules(t *testing.T) {
	rules := DefaultConfig().Segments
	rng := rand.New(rand.NewSource(7))

	reference := func(overall int, days, sessions float64) models.Segment {
		if days >= 30 {
			return models.SegmentChurned
		}
		if days >= 14 {
			return models.SegmentDormant
		}
		if days >= 7 || overall < 25 {
			return models.SegmentAtRisk
		}
		if overall >= 80 && sessions >= 3 {
			return models.SegmentPowerUser
		}
		if overall >= 50 {
			return models.SegmentRegular
		}
		if overall >= 25 {
			return models.SegmentCasual
		}
		return models.SegmentAtRisk
	}

	for i := 0; i < 2000; i++ {
		overall := rng.Intn(101)
		days := rng.Float64() * 45
		sessions := rng.Float64() * 6
		assert.Equal(t, reference(overall, days, sessions), AssignSegment(overall, days, sessions, rules),
			"overall=%d days=%.2f sessions=%.2f", overall, days, sessions)
	}
}

func TestComputeActivityPatterns(t *testing.T) {
	t.Run("empty events yield no patterns", func(t *testing.T) {
		peak, typical := ComputeActivityPatterns(nil)
		assert.Nil(t, peak)
		assert.Empty(t, typical)
	})

	t.Run("peak hour is the global mode", func(t *testing.T) {
		var events []models.ActivityEvent
		addAt := func(weekday, hour, n int) {
			for i := 0; i < n; i++ {
				events = append(events, models.ActivityEvent{Weekday: weekday, Hour: hour, OccurredAt: testNow})
			}
		}
		addAt(2, 14, 10)
		addAt(2, 9, 6)
		addAt(2, 15, 5)
		addAt(2, 10, 4)
		addAt(2, 16, 3)
		addAt(2, 8, 1)
		addAt(3, 11, 2)

		peak, typical := ComputeActivityPatterns(events)
		require.NotNil(t, peak)
		assert.Equal(t, 14, *peak)
		assert.Equal(t, []int{14, 9, 15, 10, 16}, typical[2])
		assert.Equal(t, []int{11}, typical[3])
	})
}

func TestComputeFatigue(t *testing.T) {
	t.Run("no interactions no fatigue", func(t *testing.T) {
		assert.Equal(t, 0, ComputeFatigue(nil))
	})

	t.Run("all clicked no fatigue", func(t *testing.T) {
		var inters []models.NotificationInteraction
		for i := 0; i < 20; i++ {
			inters = append(inters, models.NotificationInteraction{ClickedAt: timePtr(testNow)})
		}
		assert.Equal(t, 0, ComputeFatigue(inters))
	})

	t.Run("dismissals and ignores clamp at 100", func(t *testing.T) {
		var inters []models.NotificationInteraction
		for i := 0; i < 10; i++ {
			inters = append(inters, models.NotificationInteraction{DismissedAt: timePtr(testNow)})
		}
		for i := 0; i < 10; i++ {
			inters = append(inters, models.NotificationInteraction{})
		}
		assert.Equal(t, 100, ComputeFatigue(inters))
	})

	t.Run("only most recent twenty count", func(t *testing.T) {
		var inters []models.NotificationInteraction
		for i := 0; i < 20; i++ {
			inters = append(inters, models.NotificationInteraction{ClickedAt: timePtr(testNow)})
		}
		for i := 0; i < 30; i++ {
			inters = append(inters, models.NotificationInteraction{DismissedAt: timePtr(testNow)})
		}
		assert.Equal(t, 0, ComputeFatigue(inters))
	})
}

func TestShouldRequestFeedback(t *testing.T) {
	cfg := DefaultConfig()

	t.Run("first request requires ten notifications", func(t *testing.T) {
		for n := 0; n <= 30; n++ {
			m := &models.UserMetrics{NotificationsSinceFeedback: n}
			assert.Equal(t, n >= 10, ShouldRequestFeedback(m, testNow, cfg), "n=%d", n)
		}
	})

	t.Run("subsequent requests wait fourteen days", func(t *testing.T) {
		m := &models.UserMetrics{
			NotificationsSinceFeedback: 50,
			LastFeedbackRequestedAt:    timePtr(testNow.Add(-13 * 24 * time.Hour)),
		}
		assert.False(t, ShouldRequestFeedback(m, testNow, cfg))

		m.LastFeedbackRequestedAt = timePtr(testNow.Add(-15 * 24 * time.Hour))
		assert.True(t, ShouldRequestFeedback(m, testNow, cfg))
	})
}

func TestComputeMetricsSegmentUsesLatestActivity(t *testing.T) {
	cfg := DefaultConfig()
	user := &models.User{
		ID:              "u_seg",
		Timezone:        "UTC",
		LastAppActiveAt: timePtr(testNow.Add(-40 * 24 * time.Hour)),
	}

	computed := ComputeMetrics(user, nil, nil, testNow, cfg)
	assert.Equal(t, models.SegmentChurned, computed.Segment)

	// A recent event pulls the user out of churned.
	events := []models.ActivityEvent{appEvent(testNow.Add(-time.Hour), "s1")}
	computed = ComputeMetrics(user, events, nil, testNow, cfg)
	assert.NotEqual(t, models.SegmentChurned, computed.Segment)
}
