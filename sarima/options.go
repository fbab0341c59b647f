package sarima

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/optimize"
)

// Method names a gonum optimizer used to minimize the sum of squares.
type Method string

const (
	BFGS       Method = "bfgs"
	LBFGS      Method = "lbfgs"
	NelderMead Method = "nm"
	CG         Method = "cg"
)

// Methods lists every supported optimizer.
var Methods = []Method{LBFGS, BFGS, NelderMead, CG}

// ParseMethod resolves a method name, case-insensitively.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Methods {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("sarima: unknown optimizer %q", s)
}

func (m Method) optimizer() optimize.Method {
	switch m {
	case LBFGS:
		return &optimize.LBFGS{}
	case NelderMead:
		return &optimize.NelderMead{}
	case CG:
		return &optimize.CG{}
	default:
		return &optimize.BFGS{}
	}
}

// FitOptions controls estimation.
type FitOptions struct {
	Method  Method    // Optimizer (default: BFGS)
	MaxIter int       // Major iteration limit (default: 100)
	Tol     float64   // Function and gradient tolerance (default: 1e-5)
	Start   []float64 // Warm start in Params() layout; ignored on length mismatch
}

// DefaultFitOptions returns the options used for a full fit.
func DefaultFitOptions() *FitOptions {
	return &FitOptions{
		Method:  BFGS,
		MaxIter: 100,
		Tol:     1e-5,
	}
}

// ScreeningFitOptions returns the cheap options used while searching orders.
func ScreeningFitOptions() *FitOptions {
	return &FitOptions{
		Method:  BFGS,
		MaxIter: 5,
		Tol:     1e-1,
	}
}

func (o *FitOptions) withDefaults() *FitOptions {
	out := DefaultFitOptions()
	if o == nil {
		return out
	}
	if o.Method != "" {
		out.Method = o.Method
	}
	if o.MaxIter > 0 {
		out.MaxIter = o.MaxIter
	}
	if o.Tol > 0 {
		out.Tol = o.Tol
	}
	out.Start = o.Start
	return out
}
