// Package timeseries provides the dated series type and CSV table helpers
// shared by the loaders and the feature store.
//
// # Creating a Series
//
// A Series pairs dates with values. New sorts by date and collapses
// duplicate dates, keeping the later occurrence:
//
//	s, err := timeseries.New("outlet", dates, values)
//
// # Lookups
//
//	v, ok := s.At(date)          // value at an exact date
//	aligned := s.Reindex(grid)   // NaN where the series has no row
//	window := s.Between(a, b)    // inclusive date window
//
// # Filling Gaps
//
//	filled := timeseries.FillBackward(timeseries.FillForward(aligned))
//
// # CSV Tables
//
// Wide tables (one row per date or week, one column per variable) are read
// as raw strings and parsed cell by cell:
//
//	t, err := timeseries.ReadTableFile("weekly.csv", nil)
//	col, ok := t.Column("Annee", "Year")
//	year := t.Float(0, col)
//
// Blank, "NA" and "NaN" cells parse as NaN. WriteFile replaces the target
// file atomically.
package timeseries
