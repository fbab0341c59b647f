package bayesopt

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// lengthScales are the isotropic Matern 5/2 length scales tried when
// fitting the process; the one with the best marginal likelihood is kept.
var lengthScales = []float64{0.1, 0.2, 0.4, 0.8, 1.6}

const noise = 1e-6

// gaussianProcess is a zero-mean Matern 5/2 process over normalized inputs
// with standardized targets.
type gaussianProcess struct {
	x      [][]float64
	alpha  *mat.VecDense
	chol   *mat.Cholesky
	length float64
	mean   float64
	std    float64
}

func matern52(a, b []float64, length float64) float64 {
	d2 := 0.0
	for i := range a {
		diff := a[i] - b[i]
		d2 += diff * diff
	}
	r := math.Sqrt(5*d2) / length
	return (1 + r + r*r/3) * math.Exp(-r)
}

// fitGP fits the process to observations, choosing the length scale by
// log marginal likelihood.
func fitGP(x [][]float64, y []float64) (*gaussianProcess, error) {
	if len(x) == 0 {
		return nil, errors.New("bayesopt: no observations")
	}
	mean, std := stat.MeanStdDev(y, nil)
	if std == 0 || math.IsNaN(std) {
		std = 1
	}
	z := make([]float64, len(y))
	for i, v := range y {
		z[i] = (v - mean) / std
	}

	var best *gaussianProcess
	bestLL := math.Inf(-1)
	for _, l := range lengthScales {
		gp, ll, err := fitWithLength(x, z, l)
		if err != nil {
			continue
		}
		if ll > bestLL {
			best, bestLL = gp, ll
		}
	}
	if best == nil {
		return nil, errors.New("bayesopt: kernel matrix is not positive definite")
	}
	best.mean, best.std = mean, std
	return best, nil
}

func fitWithLength(x [][]float64, z []float64, length float64) (*gaussianProcess, float64, error) {
	n := len(x)
	k := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := matern52(x[i], x[j], length)
			if i == j {
				v += noise
			}
			k.SetSym(i, j, v)
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(k); !ok {
		return nil, 0, errors.New("bayesopt: cholesky failed")
	}

	zv := mat.NewVecDense(n, z)
	var alpha mat.VecDense
	if err := chol.SolveVecTo(&alpha, zv); err != nil {
		return nil, 0, err
	}

	// log p(z) = -1/2 z'K^-1 z - 1/2 log|K| - n/2 log 2pi
	ll := -0.5*mat.Dot(zv, &alpha) - 0.5*chol.LogDet() - 0.5*float64(n)*math.Log(2*math.Pi)

	return &gaussianProcess{x: x, alpha: &alpha, chol: &chol, length: length}, ll, nil
}

// predict returns the posterior mean and standard deviation at p on the
// original target scale.
func (gp *gaussianProcess) predict(p []float64) (float64, float64) {
	n := len(gp.x)
	ks := mat.NewVecDense(n, nil)
	for i, xi := range gp.x {
		ks.SetVec(i, matern52(p, xi, gp.length))
	}

	mu := mat.Dot(ks, gp.alpha)

	var v mat.VecDense
	variance := 1.0
	if err := gp.chol.SolveVecTo(&v, ks); err == nil {
		variance -= mat.Dot(ks, &v)
	}
	if variance < 1e-12 {
		variance = 1e-12
	}

	return gp.mean + gp.std*mu, gp.std * math.Sqrt(variance)
}
