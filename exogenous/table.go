package exogenous

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/sartorproj/fluxcast/calendar"
	"github.com/sartorproj/fluxcast/timeseries"
)

// ErrDataIntegrity is returned when a feature table still holds missing values
// after every imputation step, or does not cover the expected weeks.
var ErrDataIntegrity = errors.New("exogenous: data integrity")

// DataIntegrityError names the offending column.
type DataIntegrityError struct {
	Column string
	Reason string
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("exogenous: data integrity: %s: %s", e.Column, e.Reason)
}

func (e *DataIntegrityError) Unwrap() error { return ErrDataIntegrity }

// Source tells where a row's weather values came from.
type Source string

const (
	SourceHistorical Source = "historical"
	SourceForecast   Source = "forecast"
	SourceImputed    Source = "imputed"
)

// priority orders sources; a higher value wins a conflict.
func (s Source) priority() int {
	switch s {
	case SourceHistorical:
		return 3
	case SourceForecast:
		return 2
	case SourceImputed:
		return 1
	}
	return 0
}

// FeatureNames lists the model features in column order.
var FeatureNames = []string{
	"temperature_max",
	"temperature_min",
	"precipitation",
	"is_vacation",
	"is_public_holiday",
	"days_in_week",
}

// Row is one week of exogenous features.
type Row struct {
	Date            time.Time // Week start
	Year            int
	Week            int
	TemperatureMax  float64
	TemperatureMin  float64
	Precipitation   float64
	IsVacation      float64 // 1 when any day of the week is a school holiday
	IsPublicHoliday float64 // 1 when any day of the week is a public holiday
	DaysInWeek      float64
	Source          Source
}

// Features returns the row's features in FeatureNames order.
func (r Row) Features() []float64 {
	return []float64{
		r.TemperatureMax,
		r.TemperatureMin,
		r.Precipitation,
		r.IsVacation,
		r.IsPublicHoliday,
		r.DaysInWeek,
	}
}

func (r *Row) feature(i int) *float64 {
	switch i {
	case 0:
		return &r.TemperatureMax
	case 1:
		return &r.TemperatureMin
	case 2:
		return &r.Precipitation
	case 3:
		return &r.IsVacation
	case 4:
		return &r.IsPublicHoliday
	default:
		return &r.DaysInWeek
	}
}

// emptyRow is a grid week with no feature values yet.
func emptyRow(w calendar.Week) Row {
	nan := math.NaN()
	return Row{
		Date:            w.Start,
		Year:            w.Year,
		Week:            w.Number,
		TemperatureMax:  nan,
		TemperatureMin:  nan,
		Precipitation:   nan,
		IsVacation:      nan,
		IsPublicHoliday: nan,
		DaysInWeek:      float64(w.Days),
	}
}

// Table is an ordered set of weekly rows.
type Table struct {
	Rows []Row
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Dates returns the week start of every row.
func (t *Table) Dates() []time.Time {
	dates := make([]time.Time, len(t.Rows))
	for i, r := range t.Rows {
		dates[i] = r.Date
	}
	return dates
}

// Features returns the feature matrix, one row per week.
func (t *Table) Features() [][]float64 {
	x := make([][]float64, len(t.Rows))
	for i, r := range t.Rows {
		x[i] = r.Features()
	}
	return x
}

// Align returns the rows matching dates, in that order, and the number of
// dates the table did not cover. Uncovered dates get rows with missing features
// that Fill can complete.
func (t *Table) Align(dates []time.Time) (*Table, int) {
	byDate := make(map[time.Time]Row, len(t.Rows))
	for _, r := range t.Rows {
		byDate[r.Date] = r
	}
	out := &Table{Rows: make([]Row, len(dates))}
	missing := 0
	for i, d := range dates {
		d = calendar.Normalize(d)
		r, ok := byDate[d]
		if !ok {
			w := calendar.WeekContaining(d)
			w.Start = d
			w.Days = calendar.DaysBetween(d, w.End)
			r = emptyRow(w)
			missing++
		}
		out.Rows[i] = r
	}
	return out, missing
}

// Fill completes missing features by forward fill, then backward fill, then
// the column median. A column that is still incomplete yields a
// *DataIntegrityError.
func (t *Table) Fill() error {
	col := make([]float64, len(t.Rows))
	for j, name := range FeatureNames {
		for i := range t.Rows {
			col[i] = *t.Rows[i].feature(j)
		}
		filled := timeseries.FillBackward(timeseries.FillForward(col))
		if timeseries.CountNaN(filled) > 0 {
			med := timeseries.Median(filled)
			for i, v := range filled {
				if math.IsNaN(v) {
					filled[i] = med
				}
			}
		}
		if timeseries.CountNaN(filled) > 0 {
			return &DataIntegrityError{Column: name, Reason: "missing values after imputation"}
		}
		for i := range t.Rows {
			*t.Rows[i].feature(j) = filled[i]
		}
	}
	return nil
}

// Validate checks that no feature is missing.
func (t *Table) Validate() error {
	for j, name := range FeatureNames {
		for i := range t.Rows {
			if v := *t.Rows[i].feature(j); math.IsNaN(v) || math.IsInf(v, 0) {
				return &DataIntegrityError{Column: name, Reason: "missing value on " + timeseries.FormatDate(t.Rows[i].Date)}
			}
		}
	}
	return nil
}

// VerifyCompleteness checks that the table holds exactly the weeks of grid
// and no missing feature.
func VerifyCompleteness(grid *calendar.Grid, t *Table) error {
	if grid.Len() != t.Len() {
		return &DataIntegrityError{Column: "date", Reason: fmt.Sprintf("%d weeks expected, %d present", grid.Len(), t.Len())}
	}
	seen := make(map[time.Time]bool, t.Len())
	for _, r := range t.Rows {
		if _, ok := grid.IndexOf(r.Date); !ok {
			return &DataIntegrityError{Column: "date", Reason: "unexpected week " + timeseries.FormatDate(r.Date)}
		}
		seen[r.Date] = true
	}
	if len(seen) != grid.Len() {
		return &DataIntegrityError{Column: "date", Reason: "duplicate weeks"}
	}
	return t.Validate()
}

// CSV renders the table with a Date, Annee, Semaine, features and source
// header.
func (t *Table) CSV() *timeseries.Table {
	header := append([]string{"Date", "Annee", "Semaine"}, FeatureNames...)
	out := timeseries.NewTable(append(header, "source")...)
	for _, r := range t.Rows {
		cells := []string{timeseries.FormatDate(r.Date), strconv.Itoa(r.Year), strconv.Itoa(r.Week)}
		for _, v := range r.Features() {
			cells = append(cells, timeseries.FormatFloat(v))
		}
		out.Append(append(cells, string(r.Source))...)
	}
	return out
}
