package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zurich(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Zurich")
	require.NoError(t, err)
	return loc
}

func TestToUTC_Naive(t *testing.T) {
	loc := zurich(t)
	naive := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	got := ToUTC(naive, loc, true)
	assert.Equal(t, "2024-06-01T08:00:00Z", got.Format(time.RFC3339))
}

func TestToUTC_Aware(t *testing.T) {
	loc := zurich(t)
	aware := time.Date(2024, 6, 1, 10, 0, 0, 0, loc)
	got := ToUTC(aware, loc, false)
	assert.Equal(t, "2024-06-01T08:00:00Z", got.Format(time.RFC3339))
}

func TestAlignToRaster(t *testing.T) {
	origin := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	raster := 15 * time.Minute

	aligned := origin.Add(7 * time.Minute)
	assert.Equal(t, origin, AlignToRaster(aligned, origin, raster, Down))
	assert.Equal(t, origin.Add(15*time.Minute), AlignToRaster(aligned, origin, raster, Up))
	assert.True(t, IsRasterAligned(origin.Add(30*time.Minute), origin, raster))
	assert.False(t, IsRasterAligned(origin.Add(7*time.Minute), origin, raster))
}

func TestOverlaps(t *testing.T) {
	a0 := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	a1 := a0.Add(time.Hour)
	b0 := a0.Add(30 * time.Minute)
	b1 := b0.Add(time.Hour)

	assert.True(t, Overlaps(a0, a1, b0, b1))
	assert.False(t, Overlaps(a0, a1, a1, a1.Add(time.Hour))) // half-open, touching is not overlap
}

func TestExpandDailyDates_DSTSpringForward(t *testing.T) {
	loc := zurich(t)
	date := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC) // Europe/Zurich springs forward this day
	days := ExpandDailyDates(date, date, loc)
	require.Len(t, days, 1)
	assert.Equal(t, 23*time.Hour, days[0].Duration())
}

func TestExpandDailyDates_DSTFallBack(t *testing.T) {
	loc := zurich(t)
	date := time.Date(2024, 10, 27, 0, 0, 0, 0, time.UTC) // Europe/Zurich falls back this day
	days := ExpandDailyDates(date, date, loc)
	require.Len(t, days, 1)
	assert.Equal(t, 25*time.Hour, days[0].Duration())
}

func TestExpandDailyDates_Range(t *testing.T) {
	loc := zurich(t)
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	days := ExpandDailyDates(start, end, loc)
	require.Len(t, days, 3)
	for _, d := range days {
		assert.Equal(t, 24*time.Hour, d.Duration())
	}
}

func TestNormalizedAvailability_24hBaseline(t *testing.T) {
	total := CanonicalDay.Seconds()
	free := total - 900 // 15 minutes used
	assert.InDelta(t, 98.9583, NormalizedAvailability(free, total, true), 0.01)
	assert.InDelta(t, 98.9583, NormalizedAvailability(free, total, false), 0.01)
}

func TestNormalizedAvailability_Idempotence(t *testing.T) {
	used := 900.0 // 15 minutes, same absolute usage on every day length

	day23 := (23 * time.Hour).Seconds()
	day24 := (24 * time.Hour).Seconds()
	day25 := (25 * time.Hour).Seconds()

	n23 := NormalizedAvailability(day23-used, day23, true)
	n24 := NormalizedAvailability(day24-used, day24, true)
	n25 := NormalizedAvailability(day25-used, day25, true)

	assert.InDelta(t, n24, n23, 1e-9)
	assert.InDelta(t, n24, n25, 1e-9)
}

func TestNormalizedAvailability_NoUsageIsAlways100(t *testing.T) {
	day25 := (25 * time.Hour).Seconds()
	assert.InDelta(t, 100, NormalizedAvailability(day25, day25, true), 1e-9)
}

func TestAlignRangeToWeekdays(t *testing.T) {
	loc := zurich(t)
	start := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC) // Monday
	end := time.Date(2024, 6, 9, 0, 0, 0, 0, time.UTC)   // Sunday
	days := ExpandDailyDates(start, end, loc)
	require.Len(t, days, 7)

	weekdaysOnly := AlignRangeToWeekdays(days, loc, []time.Weekday{time.Saturday, time.Sunday})
	assert.Len(t, weekdaysOnly, 2)
}

func TestTicks(t *testing.T) {
	start := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 1, 9, 45, 0, 0, time.UTC)
	ticks := Ticks(start, end, 15*time.Minute)
	require.Len(t, ticks, 3)
	assert.Equal(t, start, ticks[0].Start)
	assert.Equal(t, end, ticks[2].End)
}

func TestTicks_DropsPartialFinalTick(t *testing.T) {
	start := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 1, 9, 50, 0, 0, time.UTC)
	ticks := Ticks(start, end, 15*time.Minute)
	require.Len(t, ticks, 3)
}
