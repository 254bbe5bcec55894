package brands

import (
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLiteCatalog stores a Catalog in SQLite so salons can maintain their own
// brand list without rebuilding the binary. The registry itself is still built
// once at startup from whatever Load returns.
type SQLiteCatalog struct {
	db *sqlx.DB
}

const catalogSchema = `
CREATE TABLE IF NOT EXISTS brands (
	position      INTEGER NOT NULL,
	name          TEXT PRIMARY KEY,
	category      TEXT NOT NULL,
	ratio         TEXT NOT NULL,
	developer     TEXT NOT NULL DEFAULT 'None',
	notes         TEXT NOT NULL DEFAULT '',
	patterns      TEXT NOT NULL DEFAULT '[]',
	shades        TEXT NOT NULL DEFAULT '[]',
	toner_guard   INTEGER NOT NULL DEFAULT 0,
	neutral_black INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS category_defaults (
	category TEXT PRIMARY KEY,
	brand    TEXT NOT NULL
);
`

type brandRow struct {
	Position     int    `db:"position"`
	Name         string `db:"name"`
	Category     string `db:"category"`
	Ratio        string `db:"ratio"`
	Developer    string `db:"developer"`
	Notes        string `db:"notes"`
	Patterns     string `db:"patterns"`
	Shades       string `db:"shades"`
	TonerGuard   bool   `db:"toner_guard"`
	NeutralBlack bool   `db:"neutral_black"`
}

type defaultRow struct {
	Category string `db:"category"`
	Brand    string `db:"brand"`
}

func OpenSQLiteCatalog(dbPath string) (*SQLiteCatalog, error) {
	db, err := sqlx.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(catalogSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteCatalog{db: db}, nil
}

func (s *SQLiteCatalog) Close() error {
	return s.db.Close()
}

func (s *SQLiteCatalog) Load() (Catalog, error) {
	var rows []brandRow
	if err := s.db.Select(&rows, `SELECT position, name, category, ratio, developer, notes,
		patterns, shades, toner_guard, neutral_black FROM brands ORDER BY position`); err != nil {
		return Catalog{}, fmt.Errorf("load brands: %w", err)
	}
	var defaults []defaultRow
	if err := s.db.Select(&defaults, "SELECT category, brand FROM category_defaults"); err != nil {
		return Catalog{}, fmt.Errorf("load category defaults: %w", err)
	}

	c := Catalog{Defaults: make(map[Category]string, len(defaults))}
	for _, d := range defaults {
		c.Defaults[Category(d.Category)] = d.Brand
	}
	for _, row := range rows {
		rule := Rule{
			Name:         row.Name,
			Category:     Category(row.Category),
			Ratio:        row.Ratio,
			Developer:    row.Developer,
			Notes:        row.Notes,
			TonerGuard:   row.TonerGuard,
			NeutralBlack: row.NeutralBlack,
		}
		if err := json.Unmarshal([]byte(row.Patterns), &rule.Patterns); err != nil {
			return Catalog{}, fmt.Errorf("brand %q patterns: %w", row.Name, err)
		}
		if err := json.Unmarshal([]byte(row.Shades), &rule.Shades); err != nil {
			return Catalog{}, fmt.Errorf("brand %q shades: %w", row.Name, err)
		}
		c.Brands = append(c.Brands, rule)
	}
	return c, nil
}

// Save replaces the stored catalog. The catalog is validated first so the
// database never holds a list the registry would refuse.
func (s *SQLiteCatalog) Save(c Catalog) error {
	if err := c.Validate(); err != nil {
		return err
	}
	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM brands"); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM category_defaults"); err != nil {
		return err
	}
	for i, b := range c.Brands {
		_, err := tx.NamedExec(`INSERT INTO brands (position, name, category, ratio, developer, notes,
			patterns, shades, toner_guard, neutral_black)
			VALUES (:position, :name, :category, :ratio, :developer, :notes, :patterns, :shades, :toner_guard, :neutral_black)`,
			brandRow{
				Position:     i,
				Name:         b.Name,
				Category:     string(b.Category),
				Ratio:        b.Ratio,
				Developer:    b.Developer,
				Notes:        b.Notes,
				Patterns:     marshalList(b.Patterns),
				Shades:       marshalList(b.Shades),
				TonerGuard:   b.TonerGuard,
				NeutralBlack: b.NeutralBlack,
			})
		if err != nil {
			return fmt.Errorf("insert brand %q: %w", b.Name, err)
		}
	}
	for cat, name := range c.Defaults {
		if _, err := tx.Exec("INSERT INTO category_defaults (category, brand) VALUES (?, ?)", string(cat), name); err != nil {
			return fmt.Errorf("insert default for %s: %w", cat, err)
		}
	}
	return tx.Commit()
}

func marshalList(v []string) string {
	if len(v) == 0 {
		return "[]"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}
