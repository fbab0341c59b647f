// Package timeseries provides the weekly series type and CSV table helpers.
package timeseries

import (
	"errors"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// ErrLength is returned when dates and values do not pair up.
var ErrLength = errors.New("timeseries: dates and values must have the same length")

// Series represents a dated series of observations.
// A Series is treated as immutable: every transformation returns a new one.
type Series struct {
	Dates  []time.Time
	Values []float64
	Name   string
}

// New creates a series from parallel dates and values.
// The result is sorted by date with duplicate dates collapsed, the last
// occurrence winning.
func New(name string, dates []time.Time, values []float64) (*Series, error) {
	if len(dates) != len(values) {
		return nil, ErrLength
	}
	s := &Series{
		Dates:  append([]time.Time(nil), dates...),
		Values: append([]float64(nil), values...),
		Name:   name,
	}
	return s.Dedup(), nil
}

// Len returns the length of the series.
func (s *Series) Len() int {
	return len(s.Values)
}

// Start returns the first date, or the zero time for an empty series.
func (s *Series) Start() time.Time {
	if len(s.Dates) == 0 {
		return time.Time{}
	}
	return s.Dates[0]
}

// End returns the last date, or the zero time for an empty series.
func (s *Series) End() time.Time {
	if len(s.Dates) == 0 {
		return time.Time{}
	}
	return s.Dates[len(s.Dates)-1]
}

// Mean calculates the arithmetic mean, ignoring NaN values.
func (s *Series) Mean() float64 {
	v := finite(s.Values)
	if len(v) == 0 {
		return math.NaN()
	}
	return stat.Mean(v, nil)
}

// Std calculates the sample standard deviation, ignoring NaN values.
func (s *Series) Std() float64 {
	v := finite(s.Values)
	if len(v) < 2 {
		return 0
	}
	return stat.StdDev(v, nil)
}

// Median returns the median, ignoring NaN values.
func (s *Series) Median() float64 {
	return Median(s.Values)
}

// Median returns the median of the non-NaN entries of values.
func Median(values []float64) float64 {
	sorted := finite(values)
	if len(sorted) == 0 {
		return math.NaN()
	}
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}

func finite(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// Dedup returns a copy sorted by date where each date appears once.
// When a date repeats, the value that came later in the input is kept.
func (s *Series) Dedup() *Series {
	idx := make([]int, len(s.Dates))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return s.Dates[idx[a]].Before(s.Dates[idx[b]])
	})

	dates := make([]time.Time, 0, len(idx))
	values := make([]float64, 0, len(idx))
	for _, i := range idx {
		n := len(dates)
		if n > 0 && dates[n-1].Equal(s.Dates[i]) {
			values[n-1] = s.Values[i]
			continue
		}
		dates = append(dates, s.Dates[i])
		values = append(values, s.Values[i])
	}
	return &Series{Dates: dates, Values: values, Name: s.Name}
}

// IndexOf returns the position of date in the series.
func (s *Series) IndexOf(date time.Time) (int, bool) {
	i := sort.Search(len(s.Dates), func(i int) bool {
		return !s.Dates[i].Before(date)
	})
	if i < len(s.Dates) && s.Dates[i].Equal(date) {
		return i, true
	}
	return -1, false
}

// At returns the value observed at date.
func (s *Series) At(date time.Time) (float64, bool) {
	i, ok := s.IndexOf(date)
	if !ok {
		return math.NaN(), false
	}
	return s.Values[i], true
}

// Reindex returns the values at each of dates, NaN where the series has no
// observation.
func (s *Series) Reindex(dates []time.Time) []float64 {
	out := make([]float64, len(dates))
	for i, d := range dates {
		out[i], _ = s.At(d)
	}
	return out
}

// Between returns the observations with start <= date <= end.
func (s *Series) Between(start, end time.Time) *Series {
	lo := sort.Search(len(s.Dates), func(i int) bool { return !s.Dates[i].Before(start) })
	hi := sort.Search(len(s.Dates), func(i int) bool { return s.Dates[i].After(end) })
	return s.Slice(lo, hi)
}

// Slice returns a slice of the series from start to end (exclusive).
func (s *Series) Slice(start, end int) *Series {
	if start < 0 {
		start = 0
	}
	if end > len(s.Values) {
		end = len(s.Values)
	}
	if start >= end {
		return &Series{Name: s.Name}
	}

	values := make([]float64, end-start)
	copy(values, s.Values[start:end])

	dates := make([]time.Time, end-start)
	copy(dates, s.Dates[start:end])

	return &Series{Dates: dates, Values: values, Name: s.Name}
}

// Copy creates a deep copy of the series.
func (s *Series) Copy() *Series {
	return s.Slice(0, len(s.Values))
}

// Diff calculates the first difference of the values.
func Diff(values []float64) []float64 {
	return SeasonalDiff(values, 1)
}

// SeasonalDiff calculates the lag-m difference of the values.
func SeasonalDiff(values []float64, m int) []float64 {
	if m <= 0 || len(values) <= m {
		return []float64{}
	}
	out := make([]float64, len(values)-m)
	for i := m; i < len(values); i++ {
		out[i-m] = values[i] - values[i-m]
	}
	return out
}

// FillForward replaces each NaN with the last preceding finite value.
func FillForward(values []float64) []float64 {
	out := append([]float64(nil), values...)
	last := math.NaN()
	for i, v := range out {
		if math.IsNaN(v) {
			out[i] = last
			continue
		}
		last = v
	}
	return out
}

// FillBackward replaces each NaN with the next finite value.
func FillBackward(values []float64) []float64 {
	out := append([]float64(nil), values...)
	next := math.NaN()
	for i := len(out) - 1; i >= 0; i-- {
		if math.IsNaN(out[i]) {
			out[i] = next
			continue
		}
		next = out[i]
	}
	return out
}

// CountNaN returns the number of NaN entries in values.
func CountNaN(values []float64) int {
	n := 0
	for _, v := range values {
		if math.IsNaN(v) {
			n++
		}
	}
	return n
}

// Correlation returns the Pearson correlation of the pairs where both a and b
// are finite. It returns NaN with fewer than two such pairs or zero variance.
func Correlation(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var x, y []float64
	for i := 0; i < n; i++ {
		if math.IsNaN(a[i]) || math.IsNaN(b[i]) {
			continue
		}
		x = append(x, a[i])
		y = append(y, b[i])
	}
	if len(x) < 2 {
		return math.NaN()
	}
	return stat.Correlation(x, y, nil)
}
