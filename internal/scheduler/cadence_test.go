package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/replenishment-engine/internal/config"
	"github.com/andresuchdata/replenishment-engine/internal/domain"
)

func TestDailyNext(t *testing.T) {
	c := Daily{Hour: 2, Minute: 30}

	tests := []struct {
		name  string
		after time.Time
		want  time.Time
	}{
		{"later today", time.Date(2025, 6, 1, 1, 0, 0, 0, time.UTC), time.Date(2025, 6, 1, 2, 30, 0, 0, time.UTC)},
		{"exactly at fire time", time.Date(2025, 6, 1, 2, 30, 0, 0, time.UTC), time.Date(2025, 6, 2, 2, 30, 0, 0, time.UTC)},
		{"already passed", time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC), time.Date(2025, 6, 2, 2, 30, 0, 0, time.UTC)},
		{"month rollover", time.Date(2025, 6, 30, 9, 0, 0, 0, time.UTC), time.Date(2025, 7, 1, 2, 30, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Next(tt.after))
		})
	}
}

func TestDailyNextKeepsWallClockAcrossDST(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	c := Daily{Hour: 3, Location: berlin}

	// Clocks move forward on 2025-03-30.
	fire := c.Next(time.Date(2025, 3, 27, 12, 0, 0, 0, time.UTC))
	var gaps []time.Duration
	for i := 0; i < 3; i++ {
		assert.Equal(t, 3, fire.In(berlin).Hour())
		next := c.Next(fire)
		gaps = append(gaps, next.Sub(fire))
		fire = next
	}
	assert.Equal(t, []time.Duration{24 * time.Hour, 23 * time.Hour, 24 * time.Hour}, gaps)
}

func TestWeeklyNext(t *testing.T) {
	c := Weekly{Weekday: time.Sunday, Hour: 3}

	// 2025-06-04 is a Wednesday.
	assert.Equal(t, time.Date(2025, 6, 8, 3, 0, 0, 0, time.UTC), c.Next(time.Date(2025, 6, 4, 10, 0, 0, 0, time.UTC)))
	// Sunday before the fire time fires the same day.
	assert.Equal(t, time.Date(2025, 6, 8, 3, 0, 0, 0, time.UTC), c.Next(time.Date(2025, 6, 8, 1, 0, 0, 0, time.UTC)))
	// Sunday after the fire time waits a full week.
	assert.Equal(t, time.Date(2025, 6, 15, 3, 0, 0, 0, time.UTC), c.Next(time.Date(2025, 6, 8, 3, 0, 0, 0, time.UTC)))
}

func TestMonthlyNextClampsShortMonths(t *testing.T) {
	c := Monthly{Day: 31, Hour: 4}

	first := c.Next(time.Date(2025, 1, 31, 5, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2025, 2, 28, 4, 0, 0, 0, time.UTC), first)

	second := c.Next(first)
	assert.Equal(t, time.Date(2025, 3, 31, 4, 0, 0, 0, time.UTC), second)

	leap := c.Next(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 2, 29, 4, 0, 0, 0, time.UTC), leap)
}

func TestMonthlyNextYearRollover(t *testing.T) {
	c := Monthly{Day: 1, Hour: 4}
	assert.Equal(t, time.Date(2026, 1, 1, 4, 0, 0, 0, time.UTC), c.Next(time.Date(2025, 12, 1, 4, 0, 0, 0, time.UTC)))
}

func TestParseClock(t *testing.T) {
	h, m, err := ParseClock(" 02:05 ")
	require.NoError(t, err)
	assert.Equal(t, 2, h)
	assert.Equal(t, 5, m)

	for _, bad := range []string{"", "2", "24:00", "10:60", "aa:10", "1:2:3"} {
		_, _, err := ParseClock(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseWeekday(t *testing.T) {
	d, err := ParseWeekday("Sun")
	require.NoError(t, err)
	assert.Equal(t, time.Sunday, d)

	d, err = ParseWeekday("thursday")
	require.NoError(t, err)
	assert.Equal(t, time.Thursday, d)

	_, err = ParseWeekday("someday")
	assert.Error(t, err)
}

func TestCadencesFromConfig(t *testing.T) {
	cfg := config.ScheduleConfig{
		NightlyAt:  "02:00",
		WeeklyDay:  "sunday",
		WeeklyAt:   "03:00",
		MonthlyDay: 1,
		MonthlyAt:  "04:00",
		TimeZone:   "UTC",
	}
	cadences, err := CadencesFromConfig(cfg)
	require.NoError(t, err)
	require.Len(t, cadences, 3)

	assert.Equal(t, Daily{Hour: 2, Location: time.UTC}, cadences[domain.JobTypeNightly])
	assert.Equal(t, Weekly{Weekday: time.Sunday, Hour: 3, Location: time.UTC}, cadences[domain.JobTypeWeekly])
	assert.Equal(t, Monthly{Day: 1, Hour: 4, Location: time.UTC}, cadences[domain.JobTypeMonthly])

	cfg.MonthlyDay = 0
	_, err = CadencesFromConfig(cfg)
	assert.Error(t, err)
}
