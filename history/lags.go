package history

import (
	"fmt"
	"math"
	"time"

	"github.com/sartorproj/fluxcast/calendar"
	"github.com/sartorproj/fluxcast/timeseries"
)

// sameWeek returns the start of the custom week with the same number as the
// week containing d, k years earlier.
func sameWeek(d time.Time, k int) (time.Time, bool) {
	w := calendar.WeekContaining(d)
	year := w.Year - k
	if w.Number > calendar.WeeksInYear(year) {
		return time.Time{}, false
	}
	return calendar.WeekStartDate(year, w.Number), true
}

// lagValue returns the value of s in the same custom week k years before d,
// NaN when absent.
func lagValue(s *timeseries.Series, d time.Time, k int) float64 {
	start, ok := sameWeek(d, k)
	if !ok {
		return math.NaN()
	}
	v, ok := s.At(start)
	if !ok {
		return math.NaN()
	}
	return v
}

// Lags returns s lagged by k years on the custom calendar: each date takes the
// value of the same week number in year-k.
func Lags(s *timeseries.Series, k int) *timeseries.Series {
	values := make([]float64, s.Len())
	for i, d := range s.Dates {
		values[i] = lagValue(s, d, k)
	}
	out := s.Copy()
	out.Values = values
	out.Name = LagName(k)
	return out
}

// LagName returns the column name of the k-year lag.
func LagName(k int) string {
	return fmt.Sprintf("Hist_N-%d", k)
}

// LagTable holds yearly lags of a series for arbitrary dates.
type LagTable struct {
	Dates  []time.Time
	Lags   []int
	Values [][]float64 // Values[i][j] is lag Lags[j] at Dates[i]
}

// NewLagTable computes the lags ks of s at dates. Dates need not be in s.
func NewLagTable(s *timeseries.Series, dates []time.Time, ks ...int) *LagTable {
	t := &LagTable{Dates: dates, Lags: ks, Values: make([][]float64, len(dates))}
	for i, d := range dates {
		row := make([]float64, len(ks))
		for j, k := range ks {
			row[j] = lagValue(s, d, k)
		}
		t.Values[i] = row
	}
	return t
}

// Column returns the values of lag k.
func (t *LagTable) Column(k int) []float64 {
	for j, lag := range t.Lags {
		if lag == k {
			col := make([]float64, len(t.Dates))
			for i := range t.Dates {
				col[i] = t.Values[i][j]
			}
			return col
		}
	}
	return nil
}
