package bundle

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sartorproj/fluxcast/preprocess"
	"github.com/sartorproj/fluxcast/sarima"
)

func testBundle(t *testing.T) *Bundle {
	t.Helper()
	rng := rand.New(rand.NewSource(7))
	n := 80
	y := make([]float64, n)
	x := make([][]float64, n)
	level := 0.0
	for i := range y {
		x[i] = []float64{math.Sin(float64(i) / 4), rng.NormFloat64()}
		level += rng.NormFloat64()
		y[i] = level + 2*x[i][0]
	}

	model := sarima.New(sarima.Order{P: 1, D: 1}, []string{"pc1", "pc2"})
	require.NoError(t, model.Fit(y, x, sarima.ScreeningFitOptions()))

	exog := &preprocess.StandardScaler{}
	require.NoError(t, exog.Fit(x))
	pca := &preprocess.PCA{}
	require.NoError(t, pca.Fit(x))
	target := &preprocess.StandardScaler{}
	require.NoError(t, target.FitVector(y))

	return New("centre", model, exog, pca, target)
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(t.TempDir())
	b := testBundle(t)

	require.NoError(t, store.Save(ctx, b))
	for _, name := range artifacts {
		assert.FileExists(t, filepath.Join(store.Dir("centre"), name+".json"))
	}

	loaded, err := store.Load(ctx, "centre")
	require.NoError(t, err)
	assert.Equal(t, b.RunID, loaded.RunID)
	assert.Equal(t, b.Model.Order, loaded.Model.Order)
	assert.Equal(t, b.Model.NObs(), loaded.Model.NObs())
	assert.InDeltaSlice(t, b.Model.Params(), loaded.Model.Params(), 1e-12)
	assert.Equal(t, b.ExogScaler, loaded.ExogScaler)
	assert.Equal(t, b.TargetScaler, loaded.TargetScaler)

	// Overwrite with a new run.
	b2 := New("centre", b.Model, b.ExogScaler, b.PCA, b.TargetScaler)
	require.NoError(t, store.Save(ctx, b2))
	loaded, err = store.Load(ctx, "centre")
	require.NoError(t, err)
	assert.Equal(t, b2.RunID, loaded.RunID)

	entries, err := os.ReadDir(store.Root)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileStoreRunMismatch(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(t.TempDir())
	b := testBundle(t)
	require.NoError(t, store.Save(ctx, b))

	// Replace the PCA artifact with one from another run.
	other := New("centre", b.Model, b.ExogScaler, b.PCA, b.TargetScaler)
	data, err := encode(other)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir("centre"), "pca.json"), data[ArtifactPCA], 0o644))

	_, err = store.Load(ctx, "centre")
	assert.ErrorIs(t, err, ErrRunMismatch)
}

func TestFileStoreMissing(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(t.TempDir())

	_, err := store.Load(ctx, "nowhere")
	assert.ErrorIs(t, err, ErrNotFound)

	b := testBundle(t)
	require.NoError(t, store.Save(ctx, b))
	require.NoError(t, os.Remove(filepath.Join(store.Dir("centre"), "scaler_target.json")))
	_, err = store.Load(ctx, "centre")
	assert.ErrorIs(t, err, ErrIncomplete)

	require.NoError(t, store.Delete(ctx, "centre"))
	_, err = store.Load(ctx, "centre")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveRejectsIncomplete(t *testing.T) {
	b := testBundle(t)
	b.PCA = nil
	err := NewFileStore(t.TempDir()).Save(context.Background(), b)
	assert.ErrorIs(t, err, ErrIncomplete)
}

func TestEnvelopeCarriesRunID(t *testing.T) {
	b := testBundle(t)
	data, err := encode(b)
	require.NoError(t, err)
	for _, name := range artifacts {
		var env envelope
		require.NoError(t, json.Unmarshal(data[name], &env))
		assert.Equal(t, b.RunID, env.RunID)
	}
}

type mockHash struct {
	mu   sync.Mutex
	data map[string]map[string]string
}

func newMockHash() *mockHash {
	return &mockHash{data: make(map[string]map[string]string)}
}

func (m *mockHash) HSet(_ context.Context, key string, fields map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := make(map[string]string, len(fields))
	for k, v := range fields {
		h[k] = v.(string)
	}
	m.data[key] = h
	return nil
}

func (m *mockHash) HGetAll(_ context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func (m *mockHash) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	client := newMockHash()
	store := NewRedisStore(client, "")
	b := testBundle(t)

	require.NoError(t, store.Save(ctx, b))
	assert.Len(t, client.data["fluxcast:bundle:centre"], 4)

	loaded, err := store.Load(ctx, "centre")
	require.NoError(t, err)
	assert.Equal(t, b.RunID, loaded.RunID)

	require.NoError(t, store.Delete(ctx, "centre"))
	_, err = store.Load(ctx, "centre")
	assert.True(t, errors.Is(err, ErrNotFound))
}

type countingStore struct {
	Store
	loads int
}

func (c *countingStore) Load(ctx context.Context, outlet string) (*Bundle, error) {
	c.loads++
	return c.Store.Load(ctx, outlet)
}

func TestCachedStore(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{Store: NewFileStore(t.TempDir())}
	store, err := NewCachedStore(inner, 4)
	require.NoError(t, err)

	b := testBundle(t)
	require.NoError(t, inner.Store.Save(ctx, b))

	first, err := store.Load(ctx, "centre")
	require.NoError(t, err)
	second, err := store.Load(ctx, "centre")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, inner.loads)

	require.NoError(t, store.Delete(ctx, "centre"))
	_, err = store.Load(ctx, "centre")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 2, inner.loads)
}
