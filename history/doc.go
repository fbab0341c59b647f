// Package history loads the weekly target store and derives calendar-aware
// yearly lags.
//
// The store has one row per (Annee, Semaine) and one column per outlet. Rows
// are dated with calendar.WeekStartDate, so every loader and the exogenous
// assembler agree on week starts.
//
// Lags never shift by position: the N-k value of a week is the value of the
// week with the same custom number k years earlier, or NaN.
//
// AggregateDaily turns a raw daily export into the weekly store.
package history
