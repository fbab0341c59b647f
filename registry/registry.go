package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sartorproj/fluxcast/bundle"
)

var (
	// ErrNotFound is returned for an unknown outlet or sector.
	ErrNotFound = errors.New("registry: not found")
	// ErrSectorNotEmpty is returned when deleting a sector that still has
	// outlets.
	ErrSectorNotEmpty = errors.New("registry: sector still has outlets")
)

// Sector groups outlets.
type Sector struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Outlet is a shop whose customer flow is forecast.
type Outlet struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	SectorID int64  `json:"sector_id"`
	Sector   string `json:"sector"`
}

// Dialect is the SQL flavour of the database.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

// Registry reads and administers outlets and sectors.
type Registry struct {
	db      *sql.DB
	dialect Dialect

	Bundles bundle.Store // Optional; outlet bundles deleted with the outlet
	Logger  zerolog.Logger
}

// New wraps an open database.
func New(db *sql.DB, dialect Dialect) *Registry {
	return &Registry{db: db, dialect: dialect, Logger: zerolog.Nop()}
}

// Close closes the database.
func (r *Registry) Close() error {
	return r.db.Close()
}

// rebind turns ? placeholders into $n for Postgres.
func (r *Registry) rebind(query string) string {
	if r.dialect != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

func (r *Registry) schema() []string {
	id := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if r.dialect == Postgres {
		id = "BIGSERIAL PRIMARY KEY"
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS secteurs (
	id_secteur ` + id + `,
	nom_secteur TEXT NOT NULL UNIQUE
	)`,
		`CREATE TABLE IF NOT EXISTS boutiques (
	id_boutique ` + id + `,
	nom_boutique TEXT NOT NULL UNIQUE,
	id_secteur BIGINT NOT NULL REFERENCES secteurs(id_secteur)
	)`,
		`CREATE INDEX IF NOT EXISTS idx_boutiques_secteur ON boutiques(id_secteur)`,
	}
}

// Init creates the tables when they do not exist.
func (r *Registry) Init(ctx context.Context) error {
	for _, q := range r.schema() {
		if _, err := r.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("registry: init schema: %w", err)
		}
	}
	return nil
}

// Sectors lists every sector by name.
func (r *Registry) Sectors(ctx context.Context) ([]Sector, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id_secteur, nom_secteur FROM secteurs ORDER BY nom_secteur`)
	if err != nil {
		return nil, fmt.Errorf("registry: list sectors: %w", err)
	}
	defer rows.Close()

	var out []Sector
	for rows.Next() {
		var s Sector
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

const outletQuery = `SELECT b.id_boutique, b.nom_boutique, b.id_secteur, s.nom_secteur
FROM boutiques b JOIN secteurs s ON s.id_secteur = b.id_secteur`

func scanOutlets(rows *sql.Rows) ([]Outlet, error) {
	defer rows.Close()
	var out []Outlet
	for rows.Next() {
		var o Outlet
		if err := rows.Scan(&o.ID, &o.Name, &o.SectorID, &o.Sector); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Outlets lists every outlet by name.
func (r *Registry) Outlets(ctx context.Context) ([]Outlet, error) {
	rows, err := r.db.QueryContext(ctx, outletQuery+` ORDER BY b.nom_boutique`)
	if err != nil {
		return nil, fmt.Errorf("registry: list outlets: %w", err)
	}
	return scanOutlets(rows)
}

// OutletsInSector lists the outlets of a sector by name.
func (r *Registry) OutletsInSector(ctx context.Context, sectorID int64) ([]Outlet, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(outletQuery+` WHERE b.id_secteur = ? ORDER BY b.nom_boutique`), sectorID)
	if err != nil {
		return nil, fmt.Errorf("registry: list sector %d: %w", sectorID, err)
	}
	return scanOutlets(rows)
}

// Outlet resolves an outlet and its sector by name.
func (r *Registry) Outlet(ctx context.Context, name string) (Outlet, error) {
	var o Outlet
	err := r.db.QueryRowContext(ctx, r.rebind(outletQuery+` WHERE b.nom_boutique = ?`), name).
		Scan(&o.ID, &o.Name, &o.SectorID, &o.Sector)
	if errors.Is(err, sql.ErrNoRows) {
		return o, fmt.Errorf("%w: outlet %q", ErrNotFound, name)
	}
	if err != nil {
		return o, fmt.Errorf("registry: outlet %q: %w", name, err)
	}
	return o, nil
}

// insert runs an INSERT and returns the new row's key.
func (r *Registry) insert(ctx context.Context, query, key string, args ...any) (int64, error) {
	if r.dialect == Postgres {
		var id int64
		err := r.db.QueryRowContext(ctx, r.rebind(query+" RETURNING "+key), args...).Scan(&id)
		return id, err
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// AddSector creates a sector.
func (r *Registry) AddSector(ctx context.Context, name string) (Sector, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Sector{}, errors.New("registry: empty sector name")
	}
	id, err := r.insert(ctx, `INSERT INTO secteurs (nom_secteur) VALUES (?)`, "id_secteur", name)
	if err != nil {
		return Sector{}, fmt.Errorf("registry: add sector %q: %w", name, err)
	}
	r.Logger.Info().Str("sector", name).Int64("id", id).Msg("sector added")
	return Sector{ID: id, Name: name}, nil
}

// DeleteSector removes an empty sector.
func (r *Registry) DeleteSector(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx, r.rebind(`SELECT COUNT(*) FROM boutiques WHERE id_secteur = ?`), id).Scan(&count); err != nil {
		return fmt.Errorf("registry: count outlets: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: sector %d has %d", ErrSectorNotEmpty, id, count)
	}
	res, err := tx.ExecContext(ctx, r.rebind(`DELETE FROM secteurs WHERE id_secteur = ?`), id)
	if err != nil {
		return fmt.Errorf("registry: delete sector %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: sector %d", ErrNotFound, id)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	r.Logger.Info().Int64("id", id).Msg("sector deleted")
	return nil
}

// AddOutlet creates an outlet in a sector.
func (r *Registry) AddOutlet(ctx context.Context, name string, sectorID int64) (Outlet, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Outlet{}, errors.New("registry: empty outlet name")
	}
	var sector string
	err := r.db.QueryRowContext(ctx, r.rebind(`SELECT nom_secteur FROM secteurs WHERE id_secteur = ?`), sectorID).Scan(&sector)
	if errors.Is(err, sql.ErrNoRows) {
		return Outlet{}, fmt.Errorf("%w: sector %d", ErrNotFound, sectorID)
	}
	if err != nil {
		return Outlet{}, err
	}

	id, err := r.insert(ctx, `INSERT INTO boutiques (nom_boutique, id_secteur) VALUES (?, ?)`, "id_boutique", name, sectorID)
	if err != nil {
		return Outlet{}, fmt.Errorf("registry: add outlet %q: %w", name, err)
	}
	r.Logger.Info().Str("outlet", name).Str("sector", sector).Msg("outlet added")
	return Outlet{ID: id, Name: name, SectorID: sectorID, Sector: sector}, nil
}

// DeleteOutlet removes an outlet and its model bundle. A bundle that cannot
// be deleted is logged; the outlet stays deleted.
func (r *Registry) DeleteOutlet(ctx context.Context, name string) error {
	res, err := r.db.ExecContext(ctx, r.rebind(`DELETE FROM boutiques WHERE nom_boutique = ?`), name)
	if err != nil {
		return fmt.Errorf("registry: delete outlet %q: %w", name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: outlet %q", ErrNotFound, name)
	}
	r.Logger.Info().Str("outlet", name).Msg("outlet deleted")

	if r.Bundles != nil {
		if err := r.Bundles.Delete(ctx, name); err != nil {
			r.Logger.Warn().Err(err).Str("outlet", name).Msg("model bundle not deleted")
		}
	}
	return nil
}
