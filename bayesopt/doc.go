// Package bayesopt minimizes expensive objectives over small integer search
// spaces with a Gaussian-process surrogate.
//
// The run starts with a Latin-hypercube design, then repeatedly fits a
// Matern 5/2 process to the trials and evaluates the unevaluated point that
// maximizes the acquisition function (EI, LCB or PI). Runs are reproducible
// for a given seed.
//
//	space := bayesopt.Space{{Name: "p", Low: 0, High: 4}, {Name: "q", Low: 0, High: 3}}
//	res, err := bayesopt.Minimize(ctx, space, objective, bayesopt.Config{
//	    Calls:         30,
//	    InitialPoints: 8,
//	    Acquisition:   bayesopt.ExpectedImprovement,
//	    Seed:          42,
//	})
package bayesopt
