// Package trainer selects, fits and saves the SARIMAX model of an outlet.
//
// A Run moves through IDLE, SCREENING, FULL_FIT and then SAVED or FAILED,
// logging every transition.
//
// # Screening
//
// The non-seasonal and seasonal AR/MA orders are searched with Gaussian
// process Bayesian optimization (package bayesopt). Each evaluation is a cheap
// fit (5 iterations, tolerance 0.1) scored by AIC. Orders whose total exceeds
// MaxOrderSum are rejected without fitting, failed fits score Penalty, and
// results are cached per order. The number of evaluations follows the
// wall-clock budget: min(MaxCalls, Budget/EstimatedFitTime).
//
// # Selection
//
// The five best trials by AIC go through a Pareto filter on AIC, complexity
// p+q+2(P+Q) and 1-correlation. The front member with the lowest Score wins:
//
//	AIC + 50·complexity + 10·corr + |AIC − 50·complexity|
//
// # Full fit
//
// The winner is refitted with the Strategy's optimizer (100 iterations,
// tolerance 1e-5), warm-started from its screening estimates, checked with a
// Ljung-Box test and saved as a bundle together with the feature scaler, PCA
// reducer and target scaler.
//
//	tr := trainer.New(bundle.NewFileStore("models"), nil)
//	res, err := tr.Train(ctx, "centre", y, x)
//	fmt.Println(res.Order, res.AIC, res.Quality)
package trainer
