package history

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/sartorproj/fluxcast/calendar"
	"github.com/sartorproj/fluxcast/timeseries"
)

// ErrUnknownTarget is returned when the target store has no column for the
// requested outlet.
var ErrUnknownTarget = errors.New("history: unknown target")

// UnknownTargetError carries the requested outlet name.
type UnknownTargetError struct {
	Outlet string
}

func (e *UnknownTargetError) Error() string {
	return fmt.Sprintf("history: unknown target %q", e.Outlet)
}

func (e *UnknownTargetError) Unwrap() error { return ErrUnknownTarget }

// Year and week column names, French first.
var (
	yearColumns = []string{"Annee", "Année", "Year", "year"}
	weekColumns = []string{"Semaine", "Week", "week"}
)

// Loader reads the weekly target store: one row per (year, week), one column
// per outlet.
type Loader struct {
	Path   string
	Logger zerolog.Logger
}

// NewLoader creates a loader for the target store at path.
func NewLoader(path string) *Loader {
	return &Loader{Path: path, Logger: zerolog.Nop()}
}

type record struct {
	year, week int
	date       time.Time
	row        int
}

func (l *Loader) read() (*timeseries.Table, []record, error) {
	t, err := timeseries.ReadTableFile(l.Path, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("history: %w", err)
	}
	yc, okYear := t.Column(yearColumns...)
	wc, okWeek := t.Column(weekColumns...)
	if !okYear || !okWeek {
		return nil, nil, fmt.Errorf("history: %s has no year/week columns", l.Path)
	}

	records := make([]record, 0, len(t.Rows))
	dropped := 0
	for i := range t.Rows {
		year, week := t.Float(i, yc), t.Float(i, wc)
		if math.IsNaN(year) || math.IsNaN(week) || week < 1 {
			dropped++
			continue
		}
		y, w := int(year), int(week)
		records = append(records, record{year: y, week: w, date: calendar.WeekStartDate(y, w), row: i})
	}
	if dropped > 0 {
		l.Logger.Warn().Int("rows", dropped).Msg("target rows without year or week dropped")
	}

	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.year != b.year {
			return a.year < b.year
		}
		if a.week != b.week {
			return a.week < b.week
		}
		return a.date.Before(b.date)
	})
	return t, records, nil
}

// Outlets lists the outlet columns of the store.
func (l *Loader) Outlets() ([]string, error) {
	t, _, err := l.read()
	if err != nil {
		return nil, err
	}
	return outletColumns(t), nil
}

func outletColumns(t *timeseries.Table) []string {
	skip := map[string]bool{"Date": true, "date": true}
	for _, c := range append(yearColumns, weekColumns...) {
		skip[c] = true
	}
	var outlets []string
	for _, h := range t.Header {
		if h != "" && !skip[h] {
			outlets = append(outlets, h)
		}
	}
	return outlets
}

// Load returns the weekly series of outlet, dated by custom week start.
// Duplicate weeks keep the later row. Weeks before the first and after the
// last observed value are dropped.
func (l *Loader) Load(outlet string) (*timeseries.Series, error) {
	t, records, err := l.read()
	if err != nil {
		return nil, err
	}
	col, ok := t.Column(outlet)
	if !ok {
		return nil, &UnknownTargetError{Outlet: outlet}
	}

	dates := make([]time.Time, len(records))
	values := make([]float64, len(records))
	for i, r := range records {
		dates[i] = r.date
		values[i] = t.Float(r.row, col)
	}
	s, err := timeseries.New(outlet, dates, values)
	if err != nil {
		return nil, err
	}
	s = trim(s)

	l.Logger.Debug().
		Str("outlet", outlet).
		Int("weeks", s.Len()).
		Int("missing", timeseries.CountNaN(s.Values)).
		Msg("target history loaded")
	return s, nil
}

// trim drops the leading and trailing missing values.
func trim(s *timeseries.Series) *timeseries.Series {
	lo, hi := 0, s.Len()
	for lo < hi && math.IsNaN(s.Values[lo]) {
		lo++
	}
	for hi > lo && math.IsNaN(s.Values[hi-1]) {
		hi--
	}
	return s.Slice(lo, hi)
}
