package weather

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/sartorproj/fluxcast/calendar"
)

// Archiver returns observed daily weather for a date range.
type Archiver interface {
	Archive(ctx context.Context, start, end time.Time) ([]Day, error)
}

// Fetcher retrieves daily archive data one day per request, in concurrent
// batches separated by a random pause.
type Fetcher struct {
	Source    Archiver
	BatchSize int           // Requests per batch (default 10)
	PauseMin  time.Duration // Lower bound of the pause between batches
	PauseMax  time.Duration // Upper bound of the pause between batches
	Logger    zerolog.Logger

	// Sleep waits between batches; tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
	// Now returns the current time.
	Now  func() time.Time
	Rand *rand.Rand

	mu sync.Mutex
}

// NewFetcher creates a fetcher with batches of 10 and a 1 to 3 second pause.
func NewFetcher(source Archiver) *Fetcher {
	return &Fetcher{
		Source:    source,
		BatchSize: 10,
		PauseMin:  time.Second,
		PauseMax:  3 * time.Second,
		Logger:    zerolog.Nop(),
		Sleep:     sleep,
		Now:       time.Now,
		Rand:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// FetchRange returns the days of [start, end] that could be retrieved, in date
// order. The range is clipped to today; a range starting in the future yields
// nothing. Failed days are logged and left out.
func (f *Fetcher) FetchRange(ctx context.Context, start, end time.Time) ([]Day, error) {
	start, end = calendar.Normalize(start), calendar.Normalize(end)
	today := calendar.Normalize(f.now())
	if start.After(today) {
		f.Logger.Warn().Time("start", start).Msg("start date is in the future, nothing to fetch")
		return nil, nil
	}
	if end.After(today) {
		f.Logger.Warn().Time("end", end).Time("today", today).Msg("end date clipped to today")
		end = today
	}

	var dates []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return f.FetchDates(ctx, dates)
}

// FetchDates fetches each date with its own request.
func (f *Fetcher) FetchDates(ctx context.Context, dates []time.Time) ([]Day, error) {
	batchSize := f.BatchSize
	if batchSize <= 0 {
		batchSize = 10
	}

	var all []Day
	for i := 0; i < len(dates); i += batchSize {
		batch := dates[i:min(i+batchSize, len(dates))]
		results := make([][]Day, len(batch))

		g, gctx := errgroup.WithContext(ctx)
		for j, date := range batch {
			g.Go(func() error {
				days, err := f.Source.Archive(gctx, date, date)
				if err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					f.Logger.Warn().Err(err).Str("date", date.Format("2006-01-02")).Msg("weather fetch failed")
					return nil
				}
				results[j] = days
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return all, err
		}
		for _, days := range results {
			all = append(all, days...)
		}

		if i+batchSize < len(dates) {
			if err := f.sleep(ctx, f.pause()); err != nil {
				return all, err
			}
		}
	}

	f.Logger.Info().Int("requested", len(dates)).Int("received", len(all)).Msg("weather fetch done")
	return all, nil
}

func (f *Fetcher) pause() time.Duration {
	if f.PauseMax <= f.PauseMin {
		return f.PauseMin
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.Rand
	if r == nil {
		r = rand.New(rand.NewSource(1))
		f.Rand = r
	}
	return f.PauseMin + time.Duration(r.Int63n(int64(f.PauseMax-f.PauseMin)))
}

func (f *Fetcher) sleep(ctx context.Context, d time.Duration) error {
	if f.Sleep == nil {
		return sleep(ctx, d)
	}
	return f.Sleep(ctx, d)
}

func (f *Fetcher) now() time.Time {
	if f.Now == nil {
		return time.Now()
	}
	return f.Now()
}
