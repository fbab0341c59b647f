// Package preprocess provides the feature transforms fitted alongside a
// model: standardization and principal-component reduction.
package preprocess

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

var (
	ErrNotFitted = errors.New("preprocess: transform must be fitted first")
	ErrShape     = errors.New("preprocess: input does not match the fitted shape")
)

// StandardScaler removes the column mean and scales to unit variance.
// Zero-variance columns are only centered.
type StandardScaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// Fit computes per-column mean and population standard deviation.
func (s *StandardScaler) Fit(x [][]float64) error {
	if len(x) == 0 || len(x[0]) == 0 {
		return fmt.Errorf("%w: empty input", ErrShape)
	}
	k := len(x[0])
	s.Mean = make([]float64, k)
	s.Scale = make([]float64, k)

	col := make([]float64, len(x))
	for j := 0; j < k; j++ {
		for i, row := range x {
			if len(row) != k {
				return fmt.Errorf("%w: row %d has %d columns, want %d", ErrShape, i, len(row), k)
			}
			col[i] = row[j]
		}
		mean, variance := stat.MeanVariance(col, nil)
		// Population variance, as the transform is fitted on the full sample.
		n := float64(len(col))
		popStd := math.Sqrt(variance * (n - 1) / n)
		if len(col) < 2 || popStd == 0 || math.IsNaN(popStd) {
			popStd = 1
		}
		s.Mean[j], s.Scale[j] = mean, popStd
	}
	return nil
}

// Transform standardizes x into a new matrix.
func (s *StandardScaler) Transform(x [][]float64) ([][]float64, error) {
	if s.Mean == nil {
		return nil, ErrNotFitted
	}
	out := make([][]float64, len(x))
	for i, row := range x {
		if len(row) != len(s.Mean) {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrShape, i, len(row), len(s.Mean))
		}
		out[i] = make([]float64, len(row))
		for j, v := range row {
			out[i][j] = (v - s.Mean[j]) / s.Scale[j]
		}
	}
	return out, nil
}

// FitTransform fits the scaler and transforms x.
func (s *StandardScaler) FitTransform(x [][]float64) ([][]float64, error) {
	if err := s.Fit(x); err != nil {
		return nil, err
	}
	return s.Transform(x)
}

// InverseTransform maps standardized rows back to the original scale.
func (s *StandardScaler) InverseTransform(x [][]float64) ([][]float64, error) {
	if s.Mean == nil {
		return nil, ErrNotFitted
	}
	out := make([][]float64, len(x))
	for i, row := range x {
		if len(row) != len(s.Mean) {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrShape, i, len(row), len(s.Mean))
		}
		out[i] = make([]float64, len(row))
		for j, v := range row {
			out[i][j] = v*s.Scale[j] + s.Mean[j]
		}
	}
	return out, nil
}

// FitVector fits a single-column scaler on v.
func (s *StandardScaler) FitVector(v []float64) error {
	return s.Fit(Column(v))
}

// TransformVector standardizes a single-column vector.
func (s *StandardScaler) TransformVector(v []float64) ([]float64, error) {
	out, err := s.Transform(Column(v))
	if err != nil {
		return nil, err
	}
	return Flatten(out), nil
}

// InverseVector maps a standardized single-column vector back.
// NaN entries stay NaN.
func (s *StandardScaler) InverseVector(v []float64) ([]float64, error) {
	out, err := s.InverseTransform(Column(v))
	if err != nil {
		return nil, err
	}
	return Flatten(out), nil
}

// Column turns a vector into a one-column matrix.
func Column(v []float64) [][]float64 {
	out := make([][]float64, len(v))
	for i, x := range v {
		out[i] = []float64{x}
	}
	return out
}

// Flatten returns the first column of a matrix.
func Flatten(x [][]float64) []float64 {
	out := make([]float64, len(x))
	for i, row := range x {
		out[i] = row[0]
	}
	return out
}
