package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sartorproj/fluxcast/bundle"
)

type deleteRecorder struct {
	deleted []string
	err     error
}

func (d *deleteRecorder) Save(context.Context, *bundle.Bundle) error { return nil }

func (d *deleteRecorder) Load(context.Context, string) (*bundle.Bundle, error) {
	return nil, bundle.ErrNotFound
}

func (d *deleteRecorder) Delete(_ context.Context, outlet string) error {
	d.deleted = append(d.deleted, outlet)
	return d.err
}

func openTest(t *testing.T) *Registry {
	t.Helper()
	r, err := OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestSectorsAndOutlets(t *testing.T) {
	ctx := context.Background()
	r := openTest(t)

	landes, err := r.AddSector(ctx, "Landes")
	require.NoError(t, err)
	gironde, err := r.AddSector(ctx, " Gironde ")
	require.NoError(t, err)
	assert.Equal(t, "Gironde", gironde.Name)

	_, err = r.AddOutlet(ctx, "Mont-de-Marsan", landes.ID)
	require.NoError(t, err)
	_, err = r.AddOutlet(ctx, "Dax", landes.ID)
	require.NoError(t, err)
	_, err = r.AddOutlet(ctx, "Bordeaux", gironde.ID)
	require.NoError(t, err)

	sectors, err := r.Sectors(ctx)
	require.NoError(t, err)
	require.Len(t, sectors, 2)
	assert.Equal(t, "Gironde", sectors[0].Name)

	outlets, err := r.Outlets(ctx)
	require.NoError(t, err)
	require.Len(t, outlets, 3)
	assert.Equal(t, "Bordeaux", outlets[0].Name)
	assert.Equal(t, "Gironde", outlets[0].Sector)

	inLandes, err := r.OutletsInSector(ctx, landes.ID)
	require.NoError(t, err)
	require.Len(t, inLandes, 2)
	assert.Equal(t, "Dax", inLandes[0].Name)

	o, err := r.Outlet(ctx, "Dax")
	require.NoError(t, err)
	assert.Equal(t, landes.ID, o.SectorID)
	assert.Equal(t, "Landes", o.Sector)

	_, err = r.Outlet(ctx, "Pau")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAddOutletUnknownSector(t *testing.T) {
	r := openTest(t)
	_, err := r.AddOutlet(context.Background(), "Dax", 42)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.AddSector(context.Background(), "  ")
	assert.Error(t, err)
}

func TestDuplicateNamesRejected(t *testing.T) {
	ctx := context.Background()
	r := openTest(t)
	s, err := r.AddSector(ctx, "Landes")
	require.NoError(t, err)
	_, err = r.AddSector(ctx, "Landes")
	assert.Error(t, err)

	_, err = r.AddOutlet(ctx, "Dax", s.ID)
	require.NoError(t, err)
	_, err = r.AddOutlet(ctx, "Dax", s.ID)
	assert.Error(t, err)
}

func TestDeleteSectorWithOutlets(t *testing.T) {
	ctx := context.Background()
	r := openTest(t)
	s, err := r.AddSector(ctx, "Landes")
	require.NoError(t, err)
	_, err = r.AddOutlet(ctx, "Dax", s.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, r.DeleteSector(ctx, s.ID), ErrSectorNotEmpty)

	require.NoError(t, r.DeleteOutlet(ctx, "Dax"))
	require.NoError(t, r.DeleteSector(ctx, s.ID))
	assert.ErrorIs(t, r.DeleteSector(ctx, s.ID), ErrNotFound)

	sectors, err := r.Sectors(ctx)
	require.NoError(t, err)
	assert.Empty(t, sectors)
}

func TestDeleteOutletDeletesBundle(t *testing.T) {
	ctx := context.Background()
	r := openTest(t)
	rec := &deleteRecorder{}
	r.Bundles = rec

	s, err := r.AddSector(ctx, "Landes")
	require.NoError(t, err)
	_, err = r.AddOutlet(ctx, "Dax", s.ID)
	require.NoError(t, err)
	_, err = r.AddOutlet(ctx, "Pau", s.ID)
	require.NoError(t, err)

	require.NoError(t, r.DeleteOutlet(ctx, "Dax"))
	assert.Equal(t, []string{"Dax"}, rec.deleted)

	// A failing bundle deletion does not undo the outlet deletion.
	rec.err = errors.New("disk full")
	require.NoError(t, r.DeleteOutlet(ctx, "Pau"))
	outlets, err := r.Outlets(ctx)
	require.NoError(t, err)
	assert.Empty(t, outlets)

	assert.ErrorIs(t, r.DeleteOutlet(ctx, "Dax"), ErrNotFound)
}

func TestRebind(t *testing.T) {
	q := `SELECT * FROM boutiques WHERE id_secteur = ? AND nom_boutique = ?`
	assert.Equal(t, q, (&Registry{dialect: SQLite}).rebind(q))
	assert.Equal(t,
		`SELECT * FROM boutiques WHERE id_secteur = $1 AND nom_boutique = $2`,
		(&Registry{dialect: Postgres}).rebind(q))
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "")
	assert.Error(t, err)
}
