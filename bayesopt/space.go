package bayesopt

import (
	"fmt"
	"math/rand"
)

// Dimension is an inclusive integer range.
type Dimension struct {
	Name string
	Low  int
	High int
}

// Space is the search space, one dimension per coordinate.
type Space []Dimension

// Validate checks that every dimension is non-empty.
func (s Space) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("bayesopt: empty search space")
	}
	for _, d := range s {
		if d.High < d.Low {
			return fmt.Errorf("bayesopt: dimension %q has high %d < low %d", d.Name, d.High, d.Low)
		}
	}
	return nil
}

// Size returns the number of distinct points in the space.
func (s Space) Size() int {
	n := 1
	for _, d := range s {
		n *= d.High - d.Low + 1
	}
	return n
}

// normalize maps a point to [0, 1] per coordinate.
func (s Space) normalize(x []int) []float64 {
	out := make([]float64, len(x))
	for i, d := range s {
		if span := d.High - d.Low; span > 0 {
			out[i] = float64(x[i]-d.Low) / float64(span)
		}
	}
	return out
}

// fromUnit maps u in [0, 1) to an integer of the dimension.
func (d Dimension) fromUnit(u float64) int {
	v := d.Low + int(u*float64(d.High-d.Low+1))
	if v > d.High {
		v = d.High
	}
	return v
}

// enumerate lists every point of the space in lexicographic order.
func (s Space) enumerate() [][]int {
	points := [][]int{{}}
	for _, d := range s {
		next := make([][]int, 0, len(points)*(d.High-d.Low+1))
		for _, p := range points {
			for v := d.Low; v <= d.High; v++ {
				q := append(append([]int(nil), p...), v)
				next = append(next, q)
			}
		}
		points = next
	}
	return points
}

// sample draws n uniform random points.
func (s Space) sample(rng *rand.Rand, n int) [][]int {
	points := make([][]int, n)
	for i := range points {
		p := make([]int, len(s))
		for j, d := range s {
			p[j] = d.Low + rng.Intn(d.High-d.Low+1)
		}
		points[i] = p
	}
	return points
}

// LatinHypercube draws n points so that each dimension's range is split into
// n strata and every stratum is hit exactly once.
func (s Space) LatinHypercube(rng *rand.Rand, n int) [][]int {
	points := make([][]int, n)
	for i := range points {
		points[i] = make([]int, len(s))
	}
	for j, d := range s {
		perm := rng.Perm(n)
		for i := range points {
			u := (float64(perm[i]) + rng.Float64()) / float64(n)
			points[i][j] = d.fromUnit(u)
		}
	}
	return points
}

func key(x []int) string {
	return fmt.Sprint(x)
}
