// Package service runs the fluxcast operations end to end: training one or
// every outlet and producing forecast reports.
//
// It wires the history loader, the exogenous assembler, the trainer and the
// forecaster together and reports the caveats met on the way (filled weeks,
// imputed weather, missing bounds) instead of failing on them. Integrity and
// schema errors still abort the request. TrainAll isolates outlet failures.
package service
