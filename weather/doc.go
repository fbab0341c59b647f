// Package weather fetches daily weather from the Open-Meteo API and keeps the
// historical weather file up to date.
//
// # Client
//
// Client wraps the forecast and archive endpoints. Every call is rate limited
// and failures wrap ErrExternalFetch:
//
//	c := weather.NewClient(weather.DefaultLocation)
//	days, err := c.Forecast(ctx, today, today.AddDate(0, 0, 15))
//
// # Batched archive fetch
//
// Fetcher asks the archive for one day per request, ten requests at a time,
// with a random one to three second pause between batches. A failed day is
// logged and skipped; only cancellation aborts the fetch.
//
// # Store
//
// Store reads and writes the CSV weather file (date, temperature_max,
// temperature_min, precipitation). Store.Update fetches the missing days and
// merges them, fetched days replacing stored ones.
package weather
