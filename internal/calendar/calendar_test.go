package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(year int, month time.Month, day int) func() time.Time {
	return func() time.Time {
		return time.Date(year, month, day, 10, 30, 0, 0, time.UTC)
	}
}

func TestGeneratePastYear(t *testing.T) {
	g := NewGeneratorAt(fixedClock(2026, time.August, 31))

	cal, err := g.Generate(2024)
	require.NoError(t, err)

	assert.Equal(t, 2024, cal.Year)
	assert.Equal(t, "2023-10-01", cal.RangeStart)
	assert.Equal(t, "2024-12-31", cal.RangeEnd)
	require.NotEmpty(t, cal.Dates)
	assert.Equal(t, cal.RangeStart, cal.Dates[0])
	assert.Equal(t, cal.RangeEnd, cal.Dates[len(cal.Dates)-1])

	// Oct 1 2023 .. Dec 31 2024: 92 days of 2023 plus leap-year 2024
	assert.Len(t, cal.Dates, 92+366)
}

func TestGenerateCurrentYearEndsYesterday(t *testing.T) {
	g := NewGeneratorAt(fixedClock(2026, time.August, 31))

	cal, err := g.Generate(2026)
	require.NoError(t, err)

	assert.Equal(t, "2025-10-01", cal.RangeStart)
	assert.Equal(t, "2026-08-30", cal.RangeEnd)
	assert.Equal(t, "2026-08-30", cal.Dates[len(cal.Dates)-1])
}

func TestGenerateCurrentYearOnJanFirst(t *testing.T) {
	// Yesterday falls in the previous calendar year; the range still
	// starts October 1 and stays non-empty.
	g := NewGeneratorAt(fixedClock(2026, time.January, 1))

	cal, err := g.Generate(2026)
	require.NoError(t, err)

	assert.Equal(t, "2025-10-01", cal.RangeStart)
	assert.Equal(t, "2025-12-31", cal.RangeEnd)
	assert.Len(t, cal.Dates, 92)
}

func TestGenerateDatesAscendingAndUnique(t *testing.T) {
	g := NewGeneratorAt(fixedClock(2026, time.August, 31))

	cal, err := g.Generate(2023)
	require.NoError(t, err)

	seen := make(map[string]bool, len(cal.Dates))
	prev := ""
	for _, d := range cal.Dates {
		assert.False(t, seen[d], "duplicate date %s", d)
		seen[d] = true
		assert.Greater(t, d, prev)
		prev = d
	}
}

func TestGenerateRejectsOutOfRangeYears(t *testing.T) {
	g := NewGenerator()

	for _, year := range []int{0, 1899, MinYear - 1, MaxYear + 1, 99999} {
		_, err := g.Generate(year)
		require.Error(t, err, "year %d", year)

		var invalid ErrInvalidYear
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, year, invalid.Year)
	}
}

func TestGenerateBoundaryYears(t *testing.T) {
	g := NewGeneratorAt(fixedClock(2026, time.August, 31))

	cal, err := g.Generate(MinYear)
	require.NoError(t, err)
	assert.Equal(t, "1993-10-01", cal.RangeStart)

	cal, err = g.Generate(MaxYear)
	require.NoError(t, err)
	assert.Equal(t, "2100-12-31", cal.RangeEnd)
}
