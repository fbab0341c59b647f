// Package sarima implements seasonal ARIMA models with exogenous regressors
// (SARIMAX), estimated by conditional sum of squares.
//
// A SARIMAX(p,d,q)(P,D,Q)[m] model regresses the differenced target on the
// differenced exogenous columns and models the regression errors with
// non-seasonal AR(p)/MA(q) terms and seasonal AR(P)/MA(Q) terms at lag m.
//
// # Basic Usage
//
//	order := sarima.Order{P: 1, D: 1, Q: 1, SP: 1, SQ: 0, M: 53}
//	model := sarima.New(order, []string{"pc1", "pc2", "pc3"})
//
//	if err := model.Fit(y, exog, sarima.DefaultFitOptions()); err != nil {
//	    return err
//	}
//
//	// Predict the next len(future) weeks from their exogenous rows
//	forecasts, err := model.Forecast(len(future), future)
//
// # Optimizers
//
// Estimation runs a gonum optimizer over a transformed parameter space that
// keeps AR and MA coefficients inside (-0.99, 0.99):
//
//	opts := &sarima.FitOptions{Method: sarima.NelderMead, MaxIter: 50, Tol: 1e-4}
//
// ScreeningFitOptions returns the cheap settings used while searching
// orders; a screening fit can warm start the full fit:
//
//	full := sarima.DefaultFitOptions()
//	full.Start = screened.Params()
//
// # Extending a Model
//
// Append adds new observations without re-estimating the parameters, so a
// stored model can follow the latest weeks cheaply:
//
//	updated, err := model.Append(newY, newExog)
//
// # Persistence
//
// A fitted model marshals to JSON together with its observations, which
// are needed to forecast after loading.
package sarima
