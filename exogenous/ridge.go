package exogenous

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/sartorproj/fluxcast/calendar"
	"github.com/sartorproj/fluxcast/timeseries"
)

// RidgeAlpha is the L2 penalty of the imputation regression.
const RidgeAlpha = 1.0

// ridge is a linear model with an unpenalized intercept.
type ridge struct {
	coef      []float64
	intercept float64
	medians   []float64 // input medians for missing values
}

// fitRidge solves (XcᵀXc + αI)β = Xcᵀyc on centered data. Rows with a missing
// target are ignored; missing inputs take the column median.
func fitRidge(x [][]float64, y []float64, alpha float64) (*ridge, bool) {
	var xs [][]float64
	var ys []float64
	for i := range x {
		if !math.IsNaN(y[i]) {
			xs = append(xs, x[i])
			ys = append(ys, y[i])
		}
	}
	if len(xs) == 0 {
		return nil, false
	}
	k := len(xs[0])

	medians := make([]float64, k)
	col := make([]float64, len(xs))
	for j := 0; j < k; j++ {
		for i := range xs {
			col[i] = xs[i][j]
		}
		medians[j] = timeseries.Median(col)
		if math.IsNaN(medians[j]) {
			medians[j] = 0
		}
	}
	r := &ridge{medians: medians}

	n := len(xs)
	means := make([]float64, k)
	design := mat.NewDense(n, k, nil)
	for i := range xs {
		row := r.impute(xs[i])
		for j, v := range row {
			design.Set(i, j, v)
			means[j] += v / float64(n)
		}
	}
	yMean := 0.0
	for _, v := range ys {
		yMean += v / float64(n)
	}
	for i := 0; i < n; i++ {
		for j := 0; j < k; j++ {
			design.Set(i, j, design.At(i, j)-means[j])
		}
	}
	yc := mat.NewVecDense(n, nil)
	for i, v := range ys {
		yc.SetVec(i, v-yMean)
	}

	var gram mat.Dense
	gram.Mul(design.T(), design)
	for j := 0; j < k; j++ {
		gram.Set(j, j, gram.At(j, j)+alpha)
	}
	var rhs mat.VecDense
	rhs.MulVec(design.T(), yc)

	var beta mat.VecDense
	if err := beta.SolveVec(&gram, &rhs); err != nil {
		return nil, false
	}
	r.coef = make([]float64, k)
	r.intercept = yMean
	for j := 0; j < k; j++ {
		r.coef[j] = beta.AtVec(j)
		r.intercept -= r.coef[j] * means[j]
	}
	return r, true
}

func (r *ridge) impute(x []float64) []float64 {
	out := make([]float64, len(x))
	for j, v := range x {
		if math.IsNaN(v) {
			v = r.medians[j]
		}
		out[j] = v
	}
	return out
}

func (r *ridge) predict(x []float64) float64 {
	v := r.intercept
	for j, xv := range r.impute(x) {
		v += r.coef[j] * xv
	}
	return v
}

// seasonalInputs returns [sin(2πw/W), cos(2πw/W), year] for a week.
func seasonalInputs(year, week, period int) []float64 {
	angle := 2 * math.Pi * float64(week) / float64(period)
	return []float64{math.Sin(angle), math.Cos(angle), float64(year)}
}

// Impute predicts weather features for weeks with no data from a ridge model
// per variable trained on the known weeks. The seasonal period is the largest
// week number of the grid spanning the known weeks. Precipitation is floored
// at zero. Without training data the imputed values are NaN.
func Impute(known []Row, missing []calendar.Week) []Row {
	rows := make([]Row, len(missing))
	for i, w := range missing {
		rows[i] = emptyRow(w)
		rows[i].Source = SourceImputed
		rows[i].IsVacation, rows[i].IsPublicHoliday = weekFlags(w)
	}
	if len(known) == 0 || len(missing) == 0 {
		return rows
	}

	dates := make([]time.Time, len(known))
	for i, r := range known {
		dates[i] = r.Date
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	period := calendar.NewGrid(dates[0], dates[len(dates)-1]).MaxNumber()
	if period < 1 {
		period = 1
	}

	x := make([][]float64, len(known))
	for i, r := range known {
		x[i] = seasonalInputs(r.Year, r.Week, period)
	}

	for j := 0; j < 3; j++ {
		y := make([]float64, len(known))
		for i := range known {
			y[i] = *known[i].feature(j)
		}
		model, ok := fitRidge(x, y, RidgeAlpha)
		if !ok {
			continue
		}
		for i, w := range missing {
			v := model.predict(seasonalInputs(w.Year, w.Number, period))
			if j == 2 {
				v = math.Max(0, v)
			}
			*rows[i].feature(j) = v
		}
	}
	return rows
}
