package weather

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"sort"
	"time"

	"github.com/sartorproj/fluxcast/calendar"
	"github.com/sartorproj/fluxcast/timeseries"
)

// Store column names.
const (
	ColDate           = "date"
	ColTemperatureMax = "temperature_max"
	ColTemperatureMin = "temperature_min"
	ColPrecipitation  = "precipitation"
)

// Store is the historical weather file, one row per date.
type Store struct {
	Path string
}

// Load reads the store. A missing file yields no days. Rows keyed by year and
// week instead of date are placed on the week's start date.
func (s *Store) Load() ([]Day, error) {
	t, err := timeseries.ReadTableFile(s.Path, nil)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("weather store %s: %w", s.Path, err)
	}
	return decode(t)
}

func decode(t *timeseries.Table) ([]Day, error) {
	dateCol, hasDate := t.Column(ColDate, "Date", "DATE")
	yearCol, hasYear := t.Column("year", "Annee", "Year")
	weekCol, hasWeek := t.Column("week", "Semaine", "Week")
	if !hasDate && !(hasYear && hasWeek) {
		return nil, errors.New("weather store: no date or year/week columns")
	}
	tmax, okMax := t.Column(ColTemperatureMax)
	tmin, okMin := t.Column(ColTemperatureMin)
	prec, okPrec := t.Column(ColPrecipitation)

	cell := func(row, col int, ok bool) float64 {
		if !ok {
			return math.NaN()
		}
		return t.Float(row, col)
	}

	days := make([]Day, 0, len(t.Rows))
	for i, row := range t.Rows {
		var date time.Time
		if hasDate {
			d, err := timeseries.ParseDate(row[dateCol])
			if err != nil {
				continue
			}
			date = d
		} else {
			year, week := t.Float(i, yearCol), t.Float(i, weekCol)
			if math.IsNaN(year) || math.IsNaN(week) || week < 1 {
				continue
			}
			date = calendar.WeekStartDate(int(year), int(week))
		}
		days = append(days, Day{
			Date:           date,
			TemperatureMax: cell(i, tmax, okMax),
			TemperatureMin: cell(i, tmin, okMin),
			Precipitation:  cell(i, prec, okPrec),
		})
	}
	return days, nil
}

// Save replaces the store with days, sorted by date.
func (s *Store) Save(days []Day) error {
	sorted := Merge(nil, days)
	t := timeseries.NewTable(ColDate, ColTemperatureMax, ColTemperatureMin, ColPrecipitation)
	for _, d := range sorted {
		t.Append(
			timeseries.FormatDate(d.Date),
			timeseries.FormatFloat(d.TemperatureMax),
			timeseries.FormatFloat(d.TemperatureMin),
			timeseries.FormatFloat(d.Precipitation),
		)
	}
	return t.WriteFile(s.Path)
}

// Merge combines two day sets; days in update replace days of base with the
// same date. The result is sorted by date.
func Merge(base, update []Day) []Day {
	byDate := make(map[time.Time]Day, len(base)+len(update))
	for _, d := range base {
		byDate[calendar.Normalize(d.Date)] = d
	}
	for _, d := range update {
		d.Date = calendar.Normalize(d.Date)
		byDate[d.Date] = d
	}
	merged := make([]Day, 0, len(byDate))
	for date, d := range byDate {
		d.Date = date
		merged = append(merged, d)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Date.Before(merged[j].Date) })
	return merged
}

// Update fetches the days of [start, end] the store does not hold yet, from the
// first missing day to the last, and merges them in. Fetched days replace stored
// ones. It returns the merged content, which is also written back when
// anything new arrived.
func (s *Store) Update(ctx context.Context, f *Fetcher, start, end time.Time) ([]Day, error) {
	stored, err := s.Load()
	if err != nil {
		return nil, err
	}

	have := make(map[time.Time]bool, len(stored))
	for _, d := range stored {
		have[calendar.Normalize(d.Date)] = true
	}

	var first, last time.Time
	start, end = calendar.Normalize(start), calendar.Normalize(end)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if have[d] {
			continue
		}
		if first.IsZero() {
			first = d
		}
		last = d
	}
	if first.IsZero() {
		f.Logger.Info().Str("path", s.Path).Msg("weather store up to date")
		return stored, nil
	}

	fetched, err := f.FetchRange(ctx, first, last)
	if err != nil {
		return nil, err
	}
	if len(fetched) == 0 {
		return stored, nil
	}

	merged := Merge(stored, fetched)
	if err := s.Save(merged); err != nil {
		return nil, err
	}
	f.Logger.Info().Str("path", s.Path).Int("fetched", len(fetched)).Int("total", len(merged)).Msg("weather store updated")
	return merged, nil
}
