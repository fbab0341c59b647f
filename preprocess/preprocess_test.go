package preprocess

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardScaler(t *testing.T) {
	x := [][]float64{{1, 10, 5}, {2, 20, 5}, {3, 30, 5}, {4, 40, 5}}

	var s StandardScaler
	out, err := s.FitTransform(x)
	require.NoError(t, err)

	assert.InDeltaSlice(t, []float64{2.5, 25, 5}, s.Mean, 1e-12)
	assert.InDelta(t, math.Sqrt(1.25), s.Scale[0], 1e-12)
	assert.Equal(t, 1.0, s.Scale[2], "constant column keeps unit scale")

	for j := 0; j < 2; j++ {
		sum, sq := 0.0, 0.0
		for i := range out {
			sum += out[i][j]
			sq += out[i][j] * out[i][j]
		}
		assert.InDelta(t, 0, sum/4, 1e-12)
		assert.InDelta(t, 1, sq/4, 1e-12)
	}

	back, err := s.InverseTransform(out)
	require.NoError(t, err)
	for i := range x {
		assert.InDeltaSlice(t, x[i], back[i], 1e-12)
	}

	_, err = s.Transform([][]float64{{1, 2}})
	assert.ErrorIs(t, err, ErrShape)
}

func TestStandardScalerVector(t *testing.T) {
	var s StandardScaler
	require.NoError(t, s.FitVector([]float64{100, 200, 300}))

	z, err := s.TransformVector([]float64{200, math.NaN()})
	require.NoError(t, err)
	assert.InDelta(t, 0, z[0], 1e-12)

	back, err := s.InverseVector(z)
	require.NoError(t, err)
	assert.InDelta(t, 200, back[0], 1e-9)
	assert.True(t, math.IsNaN(back[1]))

	var empty StandardScaler
	_, err = empty.TransformVector([]float64{1})
	assert.ErrorIs(t, err, ErrNotFitted)
}

func TestPCA(t *testing.T) {
	// Two perfectly correlated columns and one independent column.
	x := make([][]float64, 50)
	for i := range x {
		a := float64(i)
		x[i] = []float64{a, 2 * a, math.Sin(a)}
	}

	var p PCA
	out, err := p.FitTransform(x)
	require.NoError(t, err)

	require.Len(t, p.Components, 3)
	require.Len(t, out[0], 3)
	assert.Equal(t, []string{"pc1", "pc2", "pc3"}, p.ComponentNames())

	// The first component carries the shared linear direction.
	assert.Greater(t, p.ExplainedVariance[0], p.ExplainedVariance[1])
	ratio := p.Components[0][1] / p.Components[0][0]
	assert.InDelta(t, 2, ratio, 1e-3)

	// Projections are centered.
	sum := 0.0
	for _, row := range out {
		sum += row[0]
	}
	assert.InDelta(t, 0, sum, 1e-6)
}

func TestPCAComponentCap(t *testing.T) {
	assert.Equal(t, 5, NComponents(6, 100))
	assert.Equal(t, 3, NComponents(3, 100))
	assert.Equal(t, 2, NComponents(6, 2))

	x := make([][]float64, 20)
	for i := range x {
		x[i] = make([]float64, 6)
		for j := range x[i] {
			x[i][j] = math.Sin(float64(i*(j+1))) + float64(j)
		}
	}
	var p PCA
	out, err := p.FitTransform(x)
	require.NoError(t, err)
	assert.Len(t, out[0], 5)
}

func TestTransformsJSON(t *testing.T) {
	x := [][]float64{{1, 0}, {2, 1}, {3, 0}, {4, 1}}
	var s StandardScaler
	var p PCA
	scaled, err := s.FitTransform(x)
	require.NoError(t, err)
	reduced, err := p.FitTransform(scaled)
	require.NoError(t, err)

	sb, err := json.Marshal(&s)
	require.NoError(t, err)
	pb, err := json.Marshal(&p)
	require.NoError(t, err)

	var s2 StandardScaler
	var p2 PCA
	require.NoError(t, json.Unmarshal(sb, &s2))
	require.NoError(t, json.Unmarshal(pb, &p2))

	scaled2, err := s2.Transform(x)
	require.NoError(t, err)
	reduced2, err := p2.Transform(scaled2)
	require.NoError(t, err)
	for i := range reduced {
		assert.InDeltaSlice(t, reduced[i], reduced2[i], 1e-12)
	}
}
