// Package forecast turns a trained bundle into weekly forecasts.
//
// Predictions run through the bundle's own transforms: exogenous rows are
// standardized and projected with the stored scaler and PCA, and predictions
// are mapped back to customer counts with the stored target scaler. Future
// positions continue right after the observations the model holds, so a
// model is first brought up to date with AutoUpdate, which appends the newer
// weeks of history without re-estimating parameters.
//
// Intervals are empirical: EmpiricalBounds takes percentiles of the most
// recent in-sample residuals and adds them to the point forecast.
package forecast
