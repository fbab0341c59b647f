package forecast

import (
	"fmt"
	"math"
	"time"

	"github.com/sartorproj/fluxcast/calendar"
	"github.com/sartorproj/fluxcast/timeseries"
)

// Column selects the value of a Row to aggregate.
type Column string

const (
	ColumnForecast Column = "forecast"
	ColumnLower    Column = "lower"
	ColumnUpper    Column = "upper"
)

// WeekdayWeights is the share of a week's customers each weekday receives,
// relative to a Monday. Sunday is closed.
var WeekdayWeights = map[time.Weekday]float64{
	time.Monday:    1,
	time.Tuesday:   1,
	time.Wednesday: 1,
	time.Thursday:  1,
	time.Friday:    1,
	time.Saturday:  1.2,
	time.Sunday:    0,
}

func (c Column) value(r Row) (float64, error) {
	switch c {
	case ColumnForecast, "":
		return r.Forecast, nil
	case ColumnLower:
		return r.Lower, nil
	case ColumnUpper:
		return r.Upper, nil
	}
	return 0, fmt.Errorf("forecast: unknown column %q", c)
}

// AggregateWeekly spreads each week's value over its days with
// WeekdayWeights and sums the shares of the selected days. A week runs from
// its row date to the end of its custom week; a week whose days all weigh
// zero, such as a lone Sunday, contributes nothing. A missing week value is an
// error.
func AggregateWeekly(rows []Row, days []time.Time, column Column) (float64, error) {
	selected := make(map[time.Time]bool, len(days))
	for _, d := range days {
		selected[calendar.Normalize(d)] = true
	}

	total := 0.0
	for _, r := range rows {
		v, err := column.value(r)
		if err != nil {
			return 0, err
		}
		if math.IsNaN(v) {
			return 0, fmt.Errorf("forecast: missing %s value for week %s", column, timeseries.FormatDate(r.Date))
		}

		start := calendar.Normalize(r.Date)
		end := calendar.WeekContaining(start).End
		weight := 0.0
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			weight += WeekdayWeights[d.Weekday()]
		}
		if weight == 0 {
			continue
		}
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			if selected[d] {
				total += v * WeekdayWeights[d.Weekday()] / weight
			}
		}
	}
	return total, nil
}
