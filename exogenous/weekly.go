package exogenous

import (
	"math"
	"sort"
	"time"

	"github.com/sartorproj/fluxcast/calendar"
	"github.com/sartorproj/fluxcast/weather"
)

type accumulator struct {
	week     calendar.Week
	sums     [3]float64
	counts   [3]int
	vacation float64
	holiday  float64
}

func (a *accumulator) add(d weather.Day) {
	for i, v := range []float64{d.TemperatureMax, d.TemperatureMin, d.Precipitation} {
		if !math.IsNaN(v) {
			a.sums[i] += v
			a.counts[i]++
		}
	}
	a.vacation = math.Max(a.vacation, flag(IsVacation(d.Date)))
	a.holiday = math.Max(a.holiday, flag(IsPublicHoliday(d.Date)))
}

func (a *accumulator) mean(i int) float64 {
	if a.counts[i] == 0 {
		return math.NaN()
	}
	return a.sums[i] / float64(a.counts[i])
}

// weekOf returns the grid week containing d, or the full calendar week when d
// lies outside the grid. ok is false for a day past a clipped grid week: its
// calendar week shares the grid week's start and would otherwise mix days from
// outside the grid into it.
func weekOf(grid *calendar.Grid, d time.Time) (calendar.Week, bool) {
	if w, ok := grid.Lookup(d); ok {
		return w, true
	}
	w := calendar.WeekContaining(d)
	if _, clash := grid.IndexOf(w.Start); clash {
		return calendar.Week{}, false
	}
	return w, true
}

// Weekly aggregates daily weather into weekly rows: mean temperatures and
// precipitation over the days present, max of the vacation and holiday flags.
// Days are assigned to the weeks of grid when they fall inside it and to full
// calendar weeks otherwise. Days past a clipped grid week are dropped. Rows are
// sorted by date.
func Weekly(days []weather.Day, grid *calendar.Grid, source Source) []Row {
	acc := make(map[time.Time]*accumulator)
	for _, d := range days {
		d.Date = calendar.Normalize(d.Date)
		w, ok := weekOf(grid, d.Date)
		if !ok {
			continue
		}
		a, ok := acc[w.Start]
		if !ok {
			a = &accumulator{week: w}
			acc[w.Start] = a
		}
		a.add(d)
	}

	rows := make([]Row, 0, len(acc))
	for _, a := range acc {
		rows = append(rows, Row{
			Date:            a.week.Start,
			Year:            a.week.Year,
			Week:            a.week.Number,
			TemperatureMax:  a.mean(0),
			TemperatureMin:  a.mean(1),
			Precipitation:   a.mean(2),
			IsVacation:      a.vacation,
			IsPublicHoliday: a.holiday,
			DaysInWeek:      float64(a.week.Days),
			Source:          source,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })
	return rows
}

// weekFlags computes the vacation and holiday flags over every day of w.
func weekFlags(w calendar.Week) (vacation, holiday float64) {
	for d := w.Start; !d.After(w.End); d = d.AddDate(0, 0, 1) {
		vacation = math.Max(vacation, flag(IsVacation(d)))
		holiday = math.Max(holiday, flag(IsPublicHoliday(d)))
	}
	return vacation, holiday
}

// merge unions row sets keyed by date; on conflict the higher-priority source
// wins.
func merge(sets ...[]Row) map[time.Time]Row {
	out := make(map[time.Time]Row)
	for _, rows := range sets {
		for _, r := range rows {
			if cur, ok := out[r.Date]; ok && cur.Source.priority() >= r.Source.priority() {
				continue
			}
			out[r.Date] = r
		}
	}
	return out
}
