package weather

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sartorproj/fluxcast/calendar"
)

func TestClientArchive(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"daily":{"time":["2024-03-01","2024-03-02"],
			"temperature_2m_max":[14.5,null],
			"temperature_2m_min":[4.1,5.0],
			"precipitation_sum":[0.0,2.3]}}`)
	}))
	defer srv.Close()

	c := NewClient(DefaultLocation)
	c.ArchiveURL = srv.URL

	days, err := c.Archive(context.Background(), calendar.Date(2024, 3, 1), calendar.Date(2024, 3, 2))
	require.NoError(t, err)
	require.Len(t, days, 2)

	assert.Equal(t, calendar.Date(2024, 3, 1), days[0].Date)
	assert.Equal(t, 14.5, days[0].TemperatureMax)
	assert.True(t, math.IsNaN(days[1].TemperatureMax))
	assert.Equal(t, 2.3, days[1].Precipitation)

	assert.Contains(t, query, "start_date=2024-03-01")
	assert.Contains(t, query, "end_date=2024-03-02")
	assert.Contains(t, query, "timezone=auto")
	assert.Contains(t, query, "latitude=43.716667")
}

func TestClientStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(DefaultLocation)
	c.ForecastURL = srv.URL

	_, err := c.Forecast(context.Background(), calendar.Date(2024, 3, 1), calendar.Date(2024, 3, 2))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExternalFetch)
}

type fakeArchive struct {
	mu    sync.Mutex
	fail  map[time.Time]bool
	calls int
}

func (f *fakeArchive) Archive(_ context.Context, start, end time.Time) ([]Day, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.fail[start] {
		return nil, ErrExternalFetch
	}
	return []Day{{Date: start, TemperatureMax: float64(start.Day()), TemperatureMin: 1, Precipitation: 0}}, nil
}

func newTestFetcher(src Archiver, now time.Time) (*Fetcher, *[]time.Duration) {
	var pauses []time.Duration
	f := NewFetcher(src)
	f.Now = func() time.Time { return now }
	f.Sleep = func(_ context.Context, d time.Duration) error {
		pauses = append(pauses, d)
		return nil
	}
	return f, &pauses
}

func TestFetcherToleratesFailures(t *testing.T) {
	src := &fakeArchive{fail: map[time.Time]bool{
		calendar.Date(2024, 1, 3):  true,
		calendar.Date(2024, 1, 17): true,
	}}
	f, pauses := newTestFetcher(src, calendar.Date(2024, 6, 1))

	days, err := f.FetchRange(context.Background(), calendar.Date(2024, 1, 1), calendar.Date(2024, 1, 25))
	require.NoError(t, err)

	assert.Equal(t, 25, src.calls)
	assert.Len(t, days, 23)
	for i := 1; i < len(days); i++ {
		assert.True(t, days[i].Date.After(days[i-1].Date))
	}

	// 3 batches, 2 pauses, each within [1s, 3s)
	require.Len(t, *pauses, 2)
	for _, p := range *pauses {
		assert.GreaterOrEqual(t, p, time.Second)
		assert.Less(t, p, 3*time.Second)
	}
}

func TestFetcherClipsToToday(t *testing.T) {
	src := &fakeArchive{}
	f, _ := newTestFetcher(src, calendar.Date(2024, 1, 5))

	days, err := f.FetchRange(context.Background(), calendar.Date(2024, 1, 1), calendar.Date(2024, 1, 20))
	require.NoError(t, err)
	assert.Len(t, days, 5)

	days, err = f.FetchRange(context.Background(), calendar.Date(2024, 2, 1), calendar.Date(2024, 2, 3))
	require.NoError(t, err)
	assert.Empty(t, days)
}

func TestFetcherCancelled(t *testing.T) {
	src := &fakeArchive{}
	f, _ := newTestFetcher(src, calendar.Date(2024, 6, 1))
	f.Sleep = func(context.Context, time.Duration) error { return context.Canceled }

	days, err := f.FetchRange(context.Background(), calendar.Date(2024, 1, 1), calendar.Date(2024, 1, 25))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Len(t, days, 10)
}

func TestStoreLoadMissing(t *testing.T) {
	s := &Store{Path: filepath.Join(t.TempDir(), "none.csv")}
	days, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, days)
}

func TestStoreWeeklyRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weekly.csv")
	require.NoError(t, os.WriteFile(path, []byte("Annee,Semaine,temperature_max,temperature_min,precipitation\n2024,2,10,2,1.5\n,3,1,1,1\n"), 0o644))

	days, err := (&Store{Path: path}).Load()
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Equal(t, calendar.Date(2024, 1, 8), days[0].Date)
	assert.Equal(t, 1.5, days[0].Precipitation)
}

func TestStoreUpdate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weather.csv")
	s := &Store{Path: path}
	require.NoError(t, s.Save([]Day{
		{Date: calendar.Date(2024, 1, 1), TemperatureMax: 100, TemperatureMin: 0, Precipitation: 0},
		{Date: calendar.Date(2024, 1, 2), TemperatureMax: 100, TemperatureMin: 0, Precipitation: 0},
		{Date: calendar.Date(2024, 1, 6), TemperatureMax: 100, TemperatureMin: 0, Precipitation: 0},
	}))

	src := &fakeArchive{}
	f, _ := newTestFetcher(src, calendar.Date(2024, 6, 1))

	merged, err := s.Update(context.Background(), f, calendar.Date(2024, 1, 1), calendar.Date(2024, 1, 8))
	require.NoError(t, err)

	// Missing span is Jan 3 to Jan 8; the stored Jan 6 is refreshed.
	assert.Equal(t, 6, src.calls)
	require.Len(t, merged, 8)
	assert.Equal(t, 100.0, merged[0].TemperatureMax)
	assert.Equal(t, 6.0, merged[5].TemperatureMax)

	reloaded, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, merged, reloaded)

	src.calls = 0
	_, err = s.Update(context.Background(), f, calendar.Date(2024, 1, 1), calendar.Date(2024, 1, 8))
	require.NoError(t, err)
	assert.Equal(t, 0, src.calls)
}
