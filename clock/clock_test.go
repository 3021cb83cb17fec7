package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedClock(t *testing.T) {
	base := time.Date(2025, 6, 10, 10, 17, 42, 0, time.UTC)
	c := NewFixedClock(base)

	assert.Equal(t, base, c.Now())

	c.Advance(90 * time.Minute)
	assert.Equal(t, base.Add(90*time.Minute), c.Now())

	c.Set(base)
	assert.Equal(t, base, c.Now())
}

func TestLoadLocation(t *testing.T) {
	t.Run("empty falls back to UTC", func(t *testing.T) {
		assert.Equal(t, time.UTC, LoadLocation(""))
	})

	t.Run("unknown falls back to UTC", func(t *testing.T) {
		assert.Equal(t, time.UTC, LoadLocation("Mars/Olympus_Mons"))
	})

	t.Run("valid zone resolves", func(t *testing.T) {
		loc := LoadLocation("America/New_York")
		require.NotNil(t, loc)
		assert.Equal(t, "America/New_York", loc.String())
	})
}

func TestStartOfHour(t *testing.T) {
	in := time.Date(2025, 6, 10, 10, 17, 42, 999, time.UTC)
	assert.Equal(t, time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC), StartOfHour(in))
}

func TestStartOfDay(t *testing.T) {
	// 02:30 UTC on June 11 is still June 10 in New York.
	in := time.Date(2025, 6, 11, 2, 30, 0, 0, time.UTC)
	got := StartOfDay(in, "America/New_York")
	assert.Equal(t, 10, got.Day())
	assert.Equal(t, 0, got.Hour())
	assert.Equal(t, "America/New_York", got.Location().String())
}

func TestWeekdayIndex(t *testing.T) {
	sunday := time.Date(2025, 6, 8, 12, 0, 0, 0, time.UTC)
	saturday := time.Date(2025, 6, 14, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, WeekdayIndex(sunday))
	assert.Equal(t, 6, WeekdayIndex(saturday))
}

func TestIsWeekend(t *testing.T) {
	// Saturday 01:00 UTC is Friday evening in Los Angeles.
	saturdayUTC := time.Date(2025, 6, 14, 1, 0, 0, 0, time.UTC)
	assert.True(t, IsWeekend(saturdayUTC, "UTC"))
	assert.False(t, IsWeekend(saturdayUTC, "America/Los_Angeles"))
}

func TestNextBusinessHourStart(t *testing.T) {
	t.Run("already inside window", func(t *testing.T) {
		in := time.Date(2025, 6, 10, 10, 17, 0, 0, time.UTC) // Tuesday
		got := NextBusinessHourStart(in, "UTC", 9, 18)
		assert.Equal(t, time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC), got)
	})

	t.Run("before window rolls to start hour", func(t *testing.T) {
		in := time.Date(2025, 6, 10, 6, 45, 0, 0, time.UTC)
		got := NextBusinessHourStart(in, "UTC", 9, 18)
		assert.Equal(t, time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC), got)
	})

	t.Run("after window rolls to next day", func(t *testing.T) {
		in := time.Date(2025, 6, 10, 19, 5, 0, 0, time.UTC)
		got := NextBusinessHourStart(in, "UTC", 9, 18)
		assert.Equal(t, time.Date(2025, 6, 11, 9, 0, 0, 0, time.UTC), got)
	})

	t.Run("friday evening rolls to monday", func(t *testing.T) {
		in := time.Date(2025, 6, 13, 20, 0, 0, 0, time.UTC) // Friday
		got := NextBusinessHourStart(in, "UTC", 9, 18)
		assert.Equal(t, time.Date(2025, 6, 16, 9, 0, 0, 0, time.UTC), got)
	})
}
