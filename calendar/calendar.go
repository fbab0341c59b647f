package calendar

import (
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Week is one block of the custom calendar.
type Week struct {
	Year   int       // Calendar year the week belongs to
	Number int       // Week number within the year, starting at 1
	Start  time.Time // First day of the week (inclusive)
	End    time.Time // Last day of the week (inclusive)
	Days   int       // Number of days covered, 1 to 7
}

// Contains reports whether d falls within the week.
func (w Week) Contains(d time.Time) bool {
	d = Normalize(d)
	return !d.Before(w.Start) && !d.After(w.End)
}

const day = 24 * time.Hour

// yearGrids caches the full-year grids; they are immutable once built.
var yearGrids, _ = lru.New[int, []Week](64)

// Date returns midnight UTC of the given day.
func Date(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

// Normalize truncates t to midnight UTC of its calendar day.
func Normalize(t time.Time) time.Time {
	y, m, d := t.Date()
	return Date(y, m, d)
}

// DaysBetween returns the number of days from a to b, both inclusive.
func DaysBetween(a, b time.Time) int {
	return int(Normalize(b).Sub(Normalize(a))/day) + 1
}

// firstSunday returns the first Sunday on or after January 1st.
func firstSunday(year int) time.Time {
	jan1 := Date(year, time.January, 1)
	offset := (7 - int(jan1.Weekday())) % 7
	return jan1.AddDate(0, 0, offset)
}

// yearWeeks returns the complete grid of a year.
func yearWeeks(year int) []Week {
	if weeks, ok := yearGrids.Get(year); ok {
		return weeks
	}

	jan1 := Date(year, time.January, 1)
	dec31 := Date(year, time.December, 31)

	end := firstSunday(year)
	weeks := []Week{{
		Year:   year,
		Number: 1,
		Start:  jan1,
		End:    end,
		Days:   DaysBetween(jan1, end),
	}}

	for start := end.AddDate(0, 0, 1); !start.After(dec31); start = start.AddDate(0, 0, 7) {
		wEnd := start.AddDate(0, 0, 6)
		if wEnd.After(dec31) {
			wEnd = dec31
		}
		weeks = append(weeks, Week{
			Year:   year,
			Number: len(weeks) + 1,
			Start:  start,
			End:    wEnd,
			Days:   DaysBetween(start, wEnd),
		})
	}

	yearGrids.Add(year, weeks)
	return weeks
}

// WeeksInRange returns the ordered custom weeks overlapping [start, end].
// Weeks are clipped to the range, so the first and last weeks may be partial.
// An inverted range yields nil; start == end yields exactly one week.
func WeeksInRange(start, end time.Time) []Week {
	start, end = Normalize(start), Normalize(end)
	if end.Before(start) {
		return nil
	}

	var result []Week
	for year := start.Year(); year <= end.Year(); year++ {
		for _, w := range yearWeeks(year) {
			if w.End.Before(start) || w.Start.After(end) {
				continue
			}
			if w.Start.Before(start) {
				w.Start = start
			}
			if w.End.After(end) {
				w.End = end
			}
			w.Days = DaysBetween(w.Start, w.End)
			result = append(result, w)
		}
	}
	return result
}

// WeekStartDate returns the first day of week number of year.
// Week 1 starts on January 1st; week n >= 2 starts on the Monday following
// the first Sunday, plus n-2 weeks. The caller must pass a number that exists
// in that year (1..WeeksInYear(year)).
func WeekStartDate(year, number int) time.Time {
	if number == 1 {
		return Date(year, time.January, 1)
	}
	return firstSunday(year).AddDate(0, 0, 1+7*(number-2))
}

// WeekContaining returns the full (unclipped) week that contains d.
func WeekContaining(d time.Time) Week {
	d = Normalize(d)
	weeks := yearWeeks(d.Year())
	i := sort.Search(len(weeks), func(i int) bool {
		return !weeks[i].End.Before(d)
	})
	return weeks[i]
}

// WeeksInYear returns the number of custom weeks in year (53 or 54).
func WeeksInYear(year int) int {
	return len(yearWeeks(year))
}
