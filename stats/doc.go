// Package stats provides statistical tests used to initialise and diagnose
// seasonal models.
//
// # Stationarity Tests
//
//	adf := stats.ADF(values, 0)    // H0: unit root
//	kpss := stats.KPSS(values, 0)  // H0: level stationary
//	d := stats.NDiffs(values, 2, "kpss")
//
// # Autocorrelation Functions
//
//	acf := stats.ACF(values, 20)
//	pacf := stats.PACF(values, 20)
//	significant := stats.SignificantLags(acf, stats.ConfBound(len(values)))
//
// # Residual Diagnostics
//
//	lb := stats.LjungBox(residuals, 10, p+q)
//	if lb.WhiteNoise() {
//	    // no remaining autocorrelation at the 5% level
//	}
//	dw := stats.DurbinWatson(residuals)
//
// # Information Criteria
//
//	ic := stats.CalculateIC(stats.GaussianLogLik(sse, n), n, k)
package stats
