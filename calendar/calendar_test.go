package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeeksInRangeJanuary2024(t *testing.T) {
	weeks := WeeksInRange(Date(2024, 1, 1), Date(2024, 1, 10))
	require.Len(t, weeks, 2)

	assert.Equal(t, 1, weeks[0].Number)
	assert.Equal(t, Date(2024, 1, 1), weeks[0].Start)
	assert.Equal(t, Date(2024, 1, 7), weeks[0].End)
	assert.Equal(t, time.Sunday, weeks[0].End.Weekday())
	assert.Equal(t, 7, weeks[0].Days)

	assert.Equal(t, 2, weeks[1].Number)
	assert.Equal(t, Date(2024, 1, 8), weeks[1].Start)
	assert.Equal(t, time.Monday, weeks[1].Start.Weekday())
	assert.Equal(t, Date(2024, 1, 10), weeks[1].End)
	assert.Equal(t, 3, weeks[1].Days)
}

func TestWeeksInRangeSingleDay(t *testing.T) {
	d := Date(2023, 6, 14)
	weeks := WeeksInRange(d, d)
	require.Len(t, weeks, 1)
	assert.Equal(t, d, weeks[0].Start)
	assert.Equal(t, d, weeks[0].End)
	assert.Equal(t, 1, weeks[0].Days)
}

func TestWeeksInRangeInverted(t *testing.T) {
	assert.Empty(t, WeeksInRange(Date(2023, 2, 1), Date(2023, 1, 1)))
}

func TestWeeksInRangeYearBoundary(t *testing.T) {
	// 2022-12-31 is a Saturday; 2023-01-01 is a Sunday.
	weeks := WeeksInRange(Date(2022, 12, 26), Date(2023, 1, 8))
	require.Len(t, weeks, 3)

	last := weeks[0]
	assert.Equal(t, 2022, last.Year)
	assert.Equal(t, Date(2022, 12, 31), last.End)
	assert.Equal(t, 6, last.Days)

	first := weeks[1]
	assert.Equal(t, 2023, first.Year)
	assert.Equal(t, 1, first.Number)
	assert.Equal(t, Date(2023, 1, 1), first.Start)
	assert.Equal(t, Date(2023, 1, 1), first.End)
	assert.Equal(t, 1, first.Days)

	assert.Equal(t, 2, weeks[2].Number)
	assert.Equal(t, Date(2023, 1, 2), weeks[2].Start)
}

func TestWeeksInRangeProperties(t *testing.T) {
	ranges := [][2]time.Time{
		{Date(2019, 3, 5), Date(2024, 11, 20)},
		{Date(2020, 1, 1), Date(2020, 12, 31)},
		{Date(2011, 12, 25), Date(2013, 1, 3)},
		{Date(2024, 2, 29), Date(2024, 3, 1)},
	}

	for _, r := range ranges {
		weeks := WeeksInRange(r[0], r[1])
		require.NotEmpty(t, weeks)

		total := 0
		for i, w := range weeks {
			total += w.Days
			assert.GreaterOrEqual(t, w.Days, 1)
			assert.LessOrEqual(t, w.Days, 7)
			assert.Equal(t, w.Start.Year(), w.End.Year(), "week crosses a year boundary")
			if i == 0 {
				assert.Equal(t, r[0], w.Start)
				continue
			}
			prev := weeks[i-1]
			assert.True(t, w.Start.After(prev.Start), "week starts must increase")
			assert.Equal(t, prev.End.AddDate(0, 0, 1), w.Start, "weeks must be contiguous")
			if w.Number > 1 {
				assert.Equal(t, time.Monday, w.Start.Weekday())
			}
		}
		assert.Equal(t, r[1], weeks[len(weeks)-1].End)
		assert.Equal(t, DaysBetween(r[0], r[1]), total)
	}
}

func TestWeekStartDateRoundTrip(t *testing.T) {
	for d := Date(2010, 1, 1); d.Before(Date(2030, 1, 1)); d = d.AddDate(0, 0, 3) {
		w := WeekContaining(d)
		require.True(t, w.Contains(d), "week %v does not contain %v", w, d)
		require.Equal(t, w.Start, WeekStartDate(d.Year(), w.Number), "round trip failed for %s", d.Format("2006-01-02"))
	}
}

func TestWeekStartDateJanuaryFirstMonday(t *testing.T) {
	// 2024-01-01 is a Monday: week 1 covers a full week and week 2 starts on the 8th.
	assert.Equal(t, Date(2024, 1, 1), WeekStartDate(2024, 1))
	assert.Equal(t, Date(2024, 1, 8), WeekStartDate(2024, 2))
	assert.Equal(t, Date(2024, 1, 15), WeekStartDate(2024, 3))
}

func TestWeeksInYear(t *testing.T) {
	assert.Equal(t, 53, WeeksInYear(2024))
	assert.Equal(t, 53, WeeksInYear(2023))
	// 2012 is a leap year starting on a Sunday.
	assert.Equal(t, 54, WeeksInYear(2012))
}

func TestGridLookup(t *testing.T) {
	g := NewGrid(Date(2024, 1, 1), Date(2024, 3, 31))
	assert.Equal(t, len(WeeksInRange(Date(2024, 1, 1), Date(2024, 3, 31))), g.Len())

	w, ok := g.Lookup(Date(2024, 1, 10))
	require.True(t, ok)
	assert.Equal(t, 2, w.Number)

	i, ok := g.IndexOf(Date(2024, 1, 8))
	require.True(t, ok)
	assert.Equal(t, 1, i)

	_, ok = g.Lookup(Date(2024, 4, 1))
	assert.False(t, ok)
	assert.Equal(t, g.Weeks[g.Len()-1].Number, g.MaxNumber())
}
