package preprocess

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// MaxComponents caps the number of principal components kept.
const MaxComponents = 5

// PCA projects rows onto their leading principal components.
type PCA struct {
	Mean              []float64   `json:"mean"`
	Components        [][]float64 `json:"components"` // One row per component
	ExplainedVariance []float64   `json:"explained_variance"`
}

// NComponents returns min(features, MaxComponents, samples).
func NComponents(features, samples int) int {
	return min(features, MaxComponents, samples)
}

// Fit computes the principal directions of x, keeping NComponents of them.
func (p *PCA) Fit(x [][]float64) error {
	if len(x) < 2 || len(x[0]) == 0 {
		return fmt.Errorf("%w: need at least two rows", ErrShape)
	}
	n, k := len(x), len(x[0])
	a := mat.NewDense(n, k, nil)
	for i, row := range x {
		if len(row) != k {
			return fmt.Errorf("%w: row %d has %d columns, want %d", ErrShape, i, len(row), k)
		}
		a.SetRow(i, row)
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(a, nil); !ok {
		return errors.New("preprocess: principal component decomposition failed")
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	vars := pc.VarsTo(nil)

	nc := NComponents(k, n)
	p.Components = make([][]float64, nc)
	for c := 0; c < nc; c++ {
		p.Components[c] = mat.Col(nil, c, &vecs)
	}
	p.ExplainedVariance = append([]float64(nil), vars[:nc]...)

	p.Mean = make([]float64, k)
	for j := 0; j < k; j++ {
		p.Mean[j] = stat.Mean(mat.Col(nil, j, a), nil)
	}
	return nil
}

// Transform projects x onto the fitted components.
func (p *PCA) Transform(x [][]float64) ([][]float64, error) {
	if p.Mean == nil {
		return nil, ErrNotFitted
	}
	out := make([][]float64, len(x))
	for i, row := range x {
		if len(row) != len(p.Mean) {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrShape, i, len(row), len(p.Mean))
		}
		out[i] = make([]float64, len(p.Components))
		for c, comp := range p.Components {
			s := 0.0
			for j, v := range row {
				s += (v - p.Mean[j]) * comp[j]
			}
			out[i][c] = s
		}
	}
	return out, nil
}

// FitTransform fits the reducer and projects x.
func (p *PCA) FitTransform(x [][]float64) ([][]float64, error) {
	if err := p.Fit(x); err != nil {
		return nil, err
	}
	return p.Transform(x)
}

// ComponentNames returns names for the projected columns (pc1, pc2, ...).
func (p *PCA) ComponentNames() []string {
	names := make([]string, len(p.Components))
	for i := range names {
		names[i] = fmt.Sprintf("pc%d", i+1)
	}
	return names
}
