// Package sarima implements seasonal ARIMA models with exogenous regressors.
package sarima

import (
	"errors"
	"fmt"
	"math"

	"github.com/sartorproj/fluxcast/stats"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
)

var (
	ErrNotFitted        = errors.New("sarima: model must be fitted first")
	ErrInsufficientData = errors.New("sarima: insufficient data points for the specified order")
	ErrExogShape        = errors.New("sarima: exogenous rows do not match the model")
)

// coefBound keeps AR and MA coefficients inside (-1, 1).
const coefBound = 0.99

// penaltySSE replaces a non-finite sum of squares during optimization.
const penaltySSE = 1e12

// Order represents SARIMAX model order (p, d, q) x (P, D, Q, m).
type Order struct {
	P int `json:"p"` // Non-seasonal AR order
	D int `json:"d"` // Non-seasonal differencing order
	Q int `json:"q"` // Non-seasonal MA order
	// Seasonal components
	SP int `json:"sp"` // Seasonal AR order
	SD int `json:"sd"` // Seasonal differencing order
	SQ int `json:"sq"` // Seasonal MA order
	M  int `json:"m"`  // Seasonal period (53 for the custom weekly calendar)
}

// String renders the order in the usual (p,d,q)(P,D,Q)[m] notation.
func (o Order) String() string {
	return fmt.Sprintf("(%d,%d,%d)(%d,%d,%d)[%d]", o.P, o.D, o.Q, o.SP, o.SD, o.SQ, o.M)
}

// Sum returns p+d+q+P+D+Q.
func (o Order) Sum() int {
	return o.P + o.D + o.Q + o.SP + o.SD + o.SQ
}

// Model represents a SARIMAX model: a linear regression on the exogenous
// columns whose errors follow a seasonal ARMA process after differencing.
type Model struct {
	Order     Order
	ExogNames []string
	Beta      []float64 // Exogenous regression coefficients
	ARCoeffs  []float64 // Non-seasonal AR coefficients
	MACoeffs  []float64 // Non-seasonal MA coefficients
	SARCoeffs []float64 // Seasonal AR coefficients
	SMACoeffs []float64 // Seasonal MA coefficients
	Intercept float64   // Only estimated when no differencing is applied
	Variance  float64
	AIC       float64
	AICc      float64 // Corrected AIC for small sample sizes
	BIC       float64
	LogLik    float64
	// Converged is false when the optimizer stopped on its iteration limit
	// or failed and the best evaluated point was kept.
	Converged bool

	fitted    bool
	y         []float64   // Endogenous levels, one per observation
	x         [][]float64 // Exogenous rows, one per observation
	poly      []float64   // Differencing polynomial coefficients
	residuals []float64   // Innovations on the differenced scale
}

// New creates a new SARIMAX model with the specified order and exogenous
// column names (nil for a model without regressors).
func New(order Order, exogNames []string) *Model {
	return &Model{
		Order:     order,
		ExogNames: append([]string(nil), exogNames...),
		Beta:      make([]float64, len(exogNames)),
		ARCoeffs:  make([]float64, order.P),
		MACoeffs:  make([]float64, order.Q),
		SARCoeffs: make([]float64, order.SP),
		SMACoeffs: make([]float64, order.SQ),
		poly:      diffPoly(order),
	}
}

// NObs returns the number of observations the model was fitted on or
// extended to.
func (m *Model) NObs() int {
	return len(m.y)
}

// Fitted reports whether the model holds estimated parameters.
func (m *Model) Fitted() bool {
	return m.fitted
}

func (m *Model) hasIntercept() bool {
	return m.Order.D == 0 && m.Order.SD == 0
}

// NParams returns the number of estimated parameters, variance included.
func (m *Model) NParams() int {
	return m.paramLen() + 1
}

func (m *Model) paramLen() int {
	n := len(m.ExogNames) + m.Order.P + m.Order.SP + m.Order.Q + m.Order.SQ
	if m.hasIntercept() {
		n++
	}
	return n
}

// Fit estimates the model on y with exogenous rows exog (len(exog) == len(y),
// each row holding one value per exogenous column) by conditional sum of
// squares.
func (m *Model) Fit(y []float64, exog [][]float64, opts *FitOptions) error {
	opts = opts.withDefaults()

	if err := m.checkExog(exog, len(y)); err != nil {
		return err
	}
	lost := len(m.poly) - 1
	if len(y)-lost < m.paramLen()+10 {
		return ErrInsufficientData
	}

	m.y = append([]float64(nil), y...)
	m.x = copyRows(exog)

	z, dx := m.differenced()

	start := m.initialParams(z, dx)
	if len(opts.Start) == len(start) {
		copy(start, opts.Start)
	}

	if err := m.optimizeCSS(z, dx, start, opts); err != nil {
		return err
	}

	m.filter()
	m.fitted = true
	return nil
}

func (m *Model) checkExog(exog [][]float64, n int) error {
	k := len(m.ExogNames)
	if k == 0 {
		if len(exog) != 0 && len(exog) != n {
			return ErrExogShape
		}
		return nil
	}
	if len(exog) != n {
		return fmt.Errorf("%w: %d rows for %d observations", ErrExogShape, len(exog), n)
	}
	for i, row := range exog {
		if len(row) != k {
			return fmt.Errorf("%w: row %d has %d columns, want %d", ErrExogShape, i, len(row), k)
		}
	}
	return nil
}

// differenced applies the differencing polynomial to y and every exogenous
// column. Both outputs have len(y) - (d + D*m) rows.
func (m *Model) differenced() ([]float64, [][]float64) {
	lost := len(m.poly) - 1
	n := len(m.y) - lost
	k := len(m.ExogNames)

	z := make([]float64, n)
	dx := make([][]float64, n)
	for t := 0; t < n; t++ {
		dx[t] = make([]float64, k)
		for j, c := range m.poly {
			src := t + lost - j
			z[t] += c * m.y[src]
			for c2 := 0; c2 < k; c2++ {
				dx[t][c2] += c * m.x[src][c2]
			}
		}
	}
	return z, dx
}

// initialParams returns the natural-scale starting point: OLS betas, the
// mean of the regression errors, then PACF-based AR terms, ACF-based seasonal
// AR terms and small MA terms.
func (m *Model) initialParams(z []float64, dx [][]float64) []float64 {
	k := len(m.ExogNames)
	beta := make([]float64, k)
	if k > 0 {
		a := mat.NewDense(len(z), k, nil)
		for t, row := range dx {
			a.SetRow(t, row)
		}
		var b mat.VecDense
		if err := b.SolveVec(a, mat.NewVecDense(len(z), append([]float64(nil), z...))); err == nil {
			for j := range beta {
				if v := b.AtVec(j); !math.IsNaN(v) && !math.IsInf(v, 0) {
					beta[j] = v
				}
			}
		}
	}

	w := make([]float64, len(z))
	for t := range z {
		w[t] = z[t] - dot(dx[t], beta)
	}

	params := append([]float64(nil), beta...)
	if m.hasIntercept() {
		params = append(params, stat.Mean(w, nil))
	}

	ar := make([]float64, m.Order.P)
	if m.Order.P > 0 {
		if pacf := stats.PACF(w, m.Order.P); pacf != nil {
			for i := 0; i < m.Order.P && i+1 < len(pacf); i++ {
				ar[i] = pacf[i+1] * 0.5
			}
		}
	}
	sar := make([]float64, m.Order.SP)
	if m.Order.SP > 0 {
		if acf := stats.ACF(w, m.Order.SP*m.Order.M); acf != nil {
			for i := range sar {
				if idx := (i + 1) * m.Order.M; idx < len(acf) {
					sar[i] = acf[idx] * 0.5
				}
			}
		}
	}
	params = append(params, ar...)
	params = append(params, sar...)
	for i := 0; i < m.Order.Q+m.Order.SQ; i++ {
		params = append(params, 0.1)
	}
	return params
}

// setParams unpacks a natural-scale parameter vector into the model.
func (m *Model) setParams(params []float64) {
	i := 0
	take := func(n int) []float64 {
		out := append([]float64(nil), params[i:i+n]...)
		i += n
		return out
	}
	m.Beta = take(len(m.ExogNames))
	m.Intercept = 0
	if m.hasIntercept() {
		m.Intercept = params[i]
		i++
	}
	m.ARCoeffs = take(m.Order.P)
	m.SARCoeffs = take(m.Order.SP)
	m.MACoeffs = take(m.Order.Q)
	m.SMACoeffs = take(m.Order.SQ)
}

// Params returns the natural-scale parameter vector, usable as a warm start.
// Layout: exogenous betas, intercept (undifferenced models only), AR,
// seasonal AR, MA, seasonal MA.
func (m *Model) Params() []float64 {
	params := append([]float64(nil), m.Beta...)
	if m.hasIntercept() {
		params = append(params, m.Intercept)
	}
	params = append(params, m.ARCoeffs...)
	params = append(params, m.SARCoeffs...)
	params = append(params, m.MACoeffs...)
	return append(params, m.SMACoeffs...)
}

// armaOffset is the index of the first bounded (ARMA) parameter.
func (m *Model) armaOffset() int {
	off := len(m.ExogNames)
	if m.hasIntercept() {
		off++
	}
	return off
}

// toFree maps natural parameters to the unconstrained optimizer space.
func (m *Model) toFree(params []float64) []float64 {
	free := append([]float64(nil), params...)
	for i := m.armaOffset(); i < len(free); i++ {
		free[i] = math.Atanh(clamp(free[i]/coefBound, -0.999, 0.999))
	}
	return free
}

// toNatural maps optimizer coordinates back to model parameters.
func (m *Model) toNatural(free []float64) []float64 {
	params := append([]float64(nil), free...)
	for i := m.armaOffset(); i < len(params); i++ {
		params[i] = coefBound * math.Tanh(params[i])
	}
	return params
}

// startIndex skips the first observations whose lags are unavailable,
// unless that would leave too few terms in the sum of squares.
func (m *Model) startIndex(n int) int {
	period := m.Order.M
	start := max(max(m.Order.P, m.Order.Q), max(m.Order.SP*period, m.Order.SQ*period))
	if start >= n-10 {
		start = 0
	}
	return start
}

// innovations runs the ARMA recursion for the current parameters over the
// differenced series and returns the innovations.
func (m *Model) innovations(z []float64, dx [][]float64) []float64 {
	n := len(z)
	w := make([]float64, n)
	for t := range z {
		w[t] = z[t] - dot(dx[t], m.Beta) - m.Intercept
	}

	e := make([]float64, n)
	for t := 0; t < n; t++ {
		e[t] = w[t] - m.armaMean(w, e, t)
	}
	return e
}

// armaMean returns the conditional mean of w[t] given the past of w and e.
func (m *Model) armaMean(w, e []float64, t int) float64 {
	period := m.Order.M
	pred := 0.0
	for i := 0; i < len(m.ARCoeffs) && t-i-1 >= 0; i++ {
		pred += m.ARCoeffs[i] * w[t-i-1]
	}
	for i := range m.SARCoeffs {
		if lag := (i + 1) * period; t-lag >= 0 {
			pred += m.SARCoeffs[i] * w[t-lag]
		}
	}
	for i := 0; i < len(m.MACoeffs) && t-i-1 >= 0; i++ {
		pred += m.MACoeffs[i] * e[t-i-1]
	}
	for i := range m.SMACoeffs {
		if lag := (i + 1) * period; t-lag >= 0 {
			pred += m.SMACoeffs[i] * e[t-lag]
		}
	}
	return pred
}

// sse returns the conditional sum of squares from startIndex on.
func (m *Model) sse(z []float64, dx [][]float64) (float64, int) {
	e := m.innovations(z, dx)
	start := m.startIndex(len(e))
	sum := 0.0
	for _, r := range e[start:] {
		sum += r * r
	}
	return sum, len(e) - start
}

// optimizeCSS minimizes the conditional sum of squares with the configured
// gonum method and a finite-difference gradient. The best point evaluated
// is kept even when the method stops on an error.
func (m *Model) optimizeCSS(z []float64, dx [][]float64, start []float64, opts *FitOptions) error {
	if len(start) == 0 {
		m.setParams(start)
		m.Converged = true
		return nil
	}

	bestSSE := math.Inf(1)
	best := append([]float64(nil), start...)

	objective := func(free []float64) float64 {
		m.setParams(m.toNatural(free))
		sse, _ := m.sse(z, dx)
		if math.IsNaN(sse) || math.IsInf(sse, 0) {
			return penaltySSE
		}
		if sse < bestSSE {
			bestSSE = sse
			best = m.toNatural(free)
		}
		return sse
	}

	problem := optimize.Problem{
		Func: objective,
		Grad: func(grad, x []float64) {
			fd.Gradient(grad, objective, x, nil)
		},
	}
	settings := &optimize.Settings{
		MajorIterations:   opts.MaxIter,
		GradientThreshold: opts.Tol,
		Converger: &optimize.FunctionConverge{
			Absolute:   opts.Tol,
			Relative:   opts.Tol,
			Iterations: 10,
		},
	}

	result, err := optimize.Minimize(problem, m.toFree(start), settings, opts.Method.optimizer())
	if math.IsInf(bestSSE, 1) {
		if err == nil {
			err = errors.New("no finite evaluation")
		}
		return fmt.Errorf("sarima: optimization failed: %w", err)
	}

	m.setParams(best)
	m.Converged = err == nil && result != nil && result.Status != optimize.IterationLimit
	return nil
}

// filter recomputes innovations, variance and information criteria for the
// current parameters and data.
func (m *Model) filter() {
	z, dx := m.differenced()
	m.residuals = m.innovations(z, dx)

	start := m.startIndex(len(m.residuals))
	sse := 0.0
	for _, r := range m.residuals[start:] {
		sse += r * r
	}
	count := len(m.residuals) - start

	k := m.paramLen()
	if count > k {
		m.Variance = sse / float64(count-k)
	} else {
		m.Variance = sse / float64(count)
	}

	ic := stats.CalculateIC(stats.GaussianLogLik(sse, count), count, m.NParams())
	m.LogLik = ic.LogLik
	m.AIC = ic.AIC
	m.AICc = ic.AICc
	m.BIC = ic.BIC
}

// Residuals returns the one-step innovations, one per observation; the first
// d + D*m entries are NaN because differencing consumes them.
func (m *Model) Residuals() []float64 {
	if !m.fitted {
		return nil
	}
	lost := len(m.poly) - 1
	out := make([]float64, len(m.y))
	for t := range out {
		if t < lost {
			out[t] = math.NaN()
			continue
		}
		out[t] = m.residuals[t-lost]
	}
	return out
}

// FittedValues returns the in-sample one-step predictions on the level
// scale, NaN where differencing leaves no prediction.
func (m *Model) FittedValues() []float64 {
	res := m.Residuals()
	if res == nil {
		return nil
	}
	for t, r := range res {
		res[t] = m.y[t] - r
	}
	return res
}

// Predict returns the one-step in-sample predictions for the first
// len(exog) observations, with exog standing in for the stored exogenous
// rows. The result is NaN where differencing leaves no prediction.
func (m *Model) Predict(exog [][]float64) ([]float64, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}
	n := len(m.y)
	if len(m.ExogNames) > 0 {
		n = min(n, len(exog))
		if err := m.checkExog(exog[:n], n); err != nil {
			return nil, err
		}
	}

	out := make([]float64, n)
	lost := len(m.poly) - 1
	if n <= lost {
		for t := range out {
			out[t] = math.NaN()
		}
		return out, nil
	}

	c := m.clone()
	c.y = c.y[:n]
	if len(m.ExogNames) > 0 {
		c.x = copyRows(exog[:n])
	}
	z, dx := c.differenced()
	e := c.innovations(z, dx)
	for t := range out {
		if t < lost {
			out[t] = math.NaN()
			continue
		}
		out[t] = c.y[t] - e[t-lost]
	}
	return out, nil
}

// Forecast predicts positions [NObs, NObs+steps) given the exogenous rows
// for those positions.
func (m *Model) Forecast(steps int, exog [][]float64) ([]float64, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}
	if steps < 1 {
		return nil, errors.New("sarima: steps must be at least 1")
	}
	if err := m.checkExog(exog, steps); err != nil {
		return nil, err
	}

	n := len(m.y)
	lost := len(m.poly) - 1
	k := len(m.ExogNames)

	xs := append(copyRows(m.x), copyRows(exog)...)

	z, dx := m.differenced()
	w := make([]float64, len(z), len(z)+steps)
	for t := range z {
		w[t] = z[t] - dot(dx[t], m.Beta) - m.Intercept
	}
	e := make([]float64, len(z), len(z)+steps)
	copy(e, m.residuals)

	levels := append([]float64(nil), m.y...)
	forecasts := make([]float64, steps)
	for h := 0; h < steps; h++ {
		t := len(w)
		wt := m.armaMean(w, e, t)
		w = append(w, wt)
		e = append(e, 0)

		pos := n + h
		dxt := make([]float64, k)
		for j, c := range m.poly {
			for c2 := 0; c2 < k; c2++ {
				dxt[c2] += c * xs[pos-j][c2]
			}
		}
		zt := wt + dot(dxt, m.Beta) + m.Intercept

		// Invert the differencing: y_t = z_t - sum_{j>=1} c_j y_{t-j}.
		yt := zt
		for j := 1; j <= lost; j++ {
			yt -= m.poly[j] * levels[pos-j]
		}
		levels = append(levels, yt)
		forecasts[h] = yt
	}
	return forecasts, nil
}

// Append returns a copy of the model extended with new observations, keeping
// the estimated parameters. Innovations and criteria are recomputed.
func (m *Model) Append(y []float64, exog [][]float64) (*Model, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}
	if err := m.checkExog(exog, len(y)); err != nil {
		return nil, err
	}

	out := m.clone()
	out.y = append(out.y, y...)
	if len(m.ExogNames) > 0 {
		out.x = append(out.x, copyRows(exog)...)
	}
	out.filter()
	return out, nil
}

func (m *Model) clone() *Model {
	out := *m
	out.ExogNames = append([]string(nil), m.ExogNames...)
	out.Beta = append([]float64(nil), m.Beta...)
	out.ARCoeffs = append([]float64(nil), m.ARCoeffs...)
	out.MACoeffs = append([]float64(nil), m.MACoeffs...)
	out.SARCoeffs = append([]float64(nil), m.SARCoeffs...)
	out.SMACoeffs = append([]float64(nil), m.SMACoeffs...)
	out.y = append([]float64(nil), m.y...)
	out.x = copyRows(m.x)
	out.poly = append([]float64(nil), m.poly...)
	out.residuals = append([]float64(nil), m.residuals...)
	return &out
}

// Summary represents a model summary.
type Summary struct {
	Order     Order
	ExogNames []string
	Beta      []float64
	ARCoeffs  []float64
	MACoeffs  []float64
	SARCoeffs []float64
	SMACoeffs []float64
	Intercept float64
	Variance  float64
	AIC       float64
	AICc      float64 // Corrected AIC
	BIC       float64
	LogLik    float64
	NObs      int
	LjungBox  *stats.LjungBoxResult

	// DurbinWatson is near 2 when residuals show no lag-1 autocorrelation.
	DurbinWatson float64
}

// Summary returns a summary of the fitted model.
func (m *Model) Summary() *Summary {
	if !m.fitted {
		return nil
	}

	lb := stats.LjungBox(m.residuals, 10, m.Order.P+m.Order.Q+m.Order.SP+m.Order.SQ)

	return &Summary{
		Order:     m.Order,
		ExogNames: m.ExogNames,
		Beta:      m.Beta,
		ARCoeffs:  m.ARCoeffs,
		MACoeffs:  m.MACoeffs,
		SARCoeffs: m.SARCoeffs,
		SMACoeffs: m.SMACoeffs,
		Intercept: m.Intercept,
		Variance:  m.Variance,
		AIC:       m.AIC,
		AICc:      m.AICc,
		BIC:       m.BIC,
		LogLik:    m.LogLik,
		NObs:      len(m.y),
		LjungBox:  lb,

		DurbinWatson: stats.DurbinWatson(m.residuals),
	}
}

// diffPoly returns the coefficients of (1-B)^d (1-B^m)^D, constant first.
func diffPoly(o Order) []float64 {
	poly := []float64{1}
	for i := 0; i < o.D; i++ {
		poly = convolve(poly, []float64{1, -1})
	}
	if o.M > 0 {
		seasonal := make([]float64, o.M+1)
		seasonal[0], seasonal[o.M] = 1, -1
		for i := 0; i < o.SD; i++ {
			poly = convolve(poly, seasonal)
		}
	}
	return poly
}

func convolve(a, b []float64) []float64 {
	out := make([]float64, len(a)+len(b)-1)
	for i, x := range a {
		for j, y := range b {
			out[i+j] += x * y
		}
	}
	return out
}

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func copyRows(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, r := range rows {
		out[i] = append([]float64(nil), r...)
	}
	return out
}

func clamp(v, lower, upper float64) float64 {
	if v < lower {
		return lower
	}
	if v > upper {
		return upper
	}
	return v
}
