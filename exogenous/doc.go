// Package exogenous assembles the weekly exogenous feature table used by the
// model: weather, school holidays, public holidays and the number of days of
// each custom week.
//
// # Assembly
//
// Assembler.Assemble walks the custom week grid of the requested range and
// fills each week from, in order of preference, the historical weather store,
// the short-range weather forecast and a ridge regression on the week's
// seasonal position. Remaining gaps are forward filled, back filled and
// finally set to the column median; anything still missing is an
// ErrDataIntegrity.
//
//	a := exogenous.NewAssembler(&weather.Store{Path: "weather.csv"}, client)
//	table, err := a.Assemble(ctx, start, end)
//	x := table.Features() // columns in FeatureNames order
//
// # Flags
//
// IsVacation uses fixed yearly school holiday periods, the Christmas period
// wrapping into January. IsPublicHoliday uses the French public holiday
// calendar.
package exogenous
