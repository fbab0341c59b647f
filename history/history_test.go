package history

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sartorproj/fluxcast/calendar"
	"github.com/sartorproj/fluxcast/timeseries"
)

func writeStore(t *testing.T, content string) *Loader {
	t.Helper()
	path := filepath.Join(t.TempDir(), "target.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return NewLoader(path)
}

func TestLoad(t *testing.T) {
	l := writeStore(t, strings.Join([]string{
		"Annee,Semaine,Centre,Gare",
		"2024,2,120,30",
		"2024,1,100,20",
		",3,999,999",
		"2024,3,140,40",
		"2024,2,125,35",
	}, "\n"))

	s, err := l.Load("Centre")
	require.NoError(t, err)
	require.Equal(t, 3, s.Len())
	assert.Equal(t, []time.Time{
		calendar.Date(2024, 1, 1),
		calendar.Date(2024, 1, 8),
		calendar.Date(2024, 1, 15),
	}, s.Dates)
	assert.Equal(t, []float64{100, 125, 140}, s.Values)

	outlets, err := l.Outlets()
	require.NoError(t, err)
	assert.Equal(t, []string{"Centre", "Gare"}, outlets)
}

func TestLoadTrimsUnobservedWeeks(t *testing.T) {
	l := writeStore(t, strings.Join([]string{
		"Annee,Semaine,Centre,Gare",
		"2024,1,100,",
		"2024,2,110,",
		"2024,3,,31",
		"2024,4,130,32",
		"2024,5,,",
	}, "\n"))

	s, err := l.Load("Gare")
	require.NoError(t, err)
	assert.Equal(t, []float64{31, 32}, s.Values)
	assert.Equal(t, calendar.WeekStartDate(2024, 3), s.Start())

	s, err = l.Load("Centre")
	require.NoError(t, err)
	require.Equal(t, 4, s.Len())
	assert.True(t, math.IsNaN(s.Values[2]))
}

func TestLoadUnknownTarget(t *testing.T) {
	l := writeStore(t, "Annee,Semaine,Centre\n2024,1,100\n")
	_, err := l.Load("Port")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownTarget))

	var ute *UnknownTargetError
	require.True(t, errors.As(err, &ute))
	assert.Equal(t, "Port", ute.Outlet)
}

func weeklySeries(t *testing.T, from, to int) *timeseries.Series {
	t.Helper()
	var dates []time.Time
	var values []float64
	for year := from; year <= to; year++ {
		for w := 1; w <= calendar.WeeksInYear(year); w++ {
			dates = append(dates, calendar.WeekStartDate(year, w))
			values = append(values, float64(year*100+w))
		}
	}
	s, err := timeseries.New("y", dates, values)
	require.NoError(t, err)
	return s
}

func TestLagsSameWeekNumber(t *testing.T) {
	s := weeklySeries(t, 2022, 2024)
	lag := Lags(s, 1)

	for i, d := range s.Dates {
		w := calendar.WeekContaining(d)
		v := lag.Values[i]
		if w.Year == 2022 {
			assert.True(t, math.IsNaN(v))
			continue
		}
		if w.Number > calendar.WeeksInYear(w.Year-1) {
			assert.True(t, math.IsNaN(v))
			continue
		}
		assert.Equal(t, float64((w.Year-1)*100+w.Number), v, d.Format(time.DateOnly))
	}
	assert.Equal(t, "Hist_N-1", lag.Name)
}

func TestLagsSkipMissingWeek(t *testing.T) {
	full := weeklySeries(t, 2023, 2024)
	gap := calendar.WeekStartDate(2023, 10)

	var dates []time.Time
	var values []float64
	for i, d := range full.Dates {
		if d.Equal(gap) {
			continue
		}
		dates = append(dates, d)
		values = append(values, full.Values[i])
	}
	s, err := timeseries.New("y", dates, values)
	require.NoError(t, err)

	lag := Lags(s, 1)
	at := func(year, week int) float64 {
		for i, d := range s.Dates {
			if d.Equal(calendar.WeekStartDate(year, week)) {
				return lag.Values[i]
			}
		}
		t.Fatalf("week %d-%d not in series", year, week)
		return 0
	}
	assert.True(t, math.IsNaN(at(2024, 10)))
	assert.Equal(t, 202311.0, at(2024, 11))
	assert.Equal(t, 202309.0, at(2024, 9))
}

func TestLagTableFutureDates(t *testing.T) {
	s := weeklySeries(t, 2023, 2024)
	dates := []time.Time{calendar.WeekStartDate(2025, 10), calendar.Date(2025, 3, 5)}

	table := NewLagTable(s, dates, 1, 2)
	assert.Equal(t, 202410.0, table.Values[0][0])
	assert.Equal(t, 202310.0, table.Values[0][1])

	week := calendar.WeekContaining(calendar.Date(2025, 3, 5)).Number
	assert.Equal(t, float64(202400+week), table.Values[1][0])
	assert.Equal(t, []float64{202410, float64(202400 + week)}, table.Column(1))
	assert.Nil(t, table.Column(3))
}

func TestAggregateDaily(t *testing.T) {
	raw := strings.Join([]string{
		"Export compteurs,,",
		",,",
		"DATE,Centre,Gare,Unnamed: 3,Notes",
		"lundi 1 janvier 2024,10,1,,x",
		"mardi 2 janvier 2024,20,2,,y",
		"08-01-2024,5,,,",
		"2024-01-09,7,3,,",
		"total,100,100,,",
	}, "\n")

	table, err := AggregateDaily(strings.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, []string{"Annee", "Semaine", "Centre", "Gare"}, table.Header)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []string{"2024", "1", "30", "3"}, table.Rows[0])
	assert.Equal(t, []string{"2024", "2", "12", "3"}, table.Rows[1])
}

func TestAggregateDailyNoHeader(t *testing.T) {
	_, err := AggregateDaily(strings.NewReader("a,b\n1,2\n"))
	assert.Error(t, err)
}
