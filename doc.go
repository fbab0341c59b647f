// Package fluxcast forecasts weekly customer flow for retail outlets.
//
// Each outlet gets its own SARIMAX model on weekly counts, with weather,
// school vacation, public holiday and week-length regressors. Weeks follow a
// custom calendar: week 1 runs from January 1st to the first Sunday, later
// weeks run Monday to Sunday and the last week ends on December 31st, so a
// year has 53 or 54 weeks.
//
// # Workflow
//
// Train a model, then forecast a date range:
//
//	svc := service.New(history.NewLoader("data/frequentation_hebdo.csv"), assembler, bundle.NewFileStore("models"))
//	rep, _ := svc.TrainOutlet(ctx, "Centre", 10*time.Minute)
//	report, _ := svc.Forecast(ctx, "Centre", start, end)
//
// Training standardizes the regressors, reduces them with PCA, searches the
// model orders with Bayesian optimization within a time budget and keeps the
// simplest order among the best candidates. Forecasting first appends the
// weeks observed since training to the model without re-estimating it, then
// predicts the requested weeks with empirical bounds from recent in-sample
// residuals.
//
// # Packages
//
//   - calendar: custom week grid and lookups
//   - timeseries: dated series and CSV tables
//   - stats: autocorrelation, stationarity and residual tests
//   - preprocess: standard scaler and PCA
//   - sarima: SARIMAX estimation, prediction, forecasting and append
//   - bayesopt: Gaussian-process minimizer over integer spaces
//   - weather: Open-Meteo client, batched fetcher and weather store
//   - exogenous: weekly feature assembly and imputation
//   - history: weekly target store, lags and daily aggregation
//   - trainer: order search, Pareto selection and full fit
//   - bundle: model bundles and their stores
//   - forecast: in-sample, future forecast, bounds, auto-update, aggregation
//   - registry: outlets and sectors
//   - service: training and forecast orchestration
//   - server: HTTP API
//   - events, metrics, telemetry, config: supporting infrastructure
//
// The fluxcast command in cmd/fluxcast wires them together.
package fluxcast
