package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/paulmach/orb"
	_ "modernc.org/sqlite"

	"drone-route-planner/internal/analysis"
	"drone-route-planner/internal/route"
)

// ErrNoRun is returned when the database holds no planning run yet.
var ErrNoRun = errors.New("store: no planning run recorded")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at TEXT    NOT NULL,
	total      INTEGER NOT NULL,
	skipped    INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS routes (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id    INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq       INTEGER NOT NULL,
	category  TEXT    NOT NULL,
	from_name TEXT    NOT NULL,
	to_name   TEXT    NOT NULL,
	height    INTEGER NOT NULL,
	tier      TEXT    NOT NULL,
	collides  INTEGER NOT NULL,
	length_km REAL    NOT NULL,
	path      TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_routes_run_category ON routes(run_id, category, seq);
`

// SQLite stores planning runs and their routes.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	// Every connection to an in-memory database is a separate database.
	if inMemory(path) {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
	}

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// inMemory reports whether path names an in-memory database, in plain
// (":memory:") or URI ("file::memory:", "file:x?mode=memory") form.
func inMemory(path string) bool {
	return strings.Contains(path, ":memory:") || strings.Contains(path, "mode=memory")
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// SaveRun records set as a new run in one transaction and returns the run id.
func (s *SQLite) SaveRun(ctx context.Context, set *route.Set) (int64, error) {
	skipped := 0
	for _, n := range set.Skipped {
		skipped += n
	}

	var runID int64
	err := s.transaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO runs (created_at, total, skipped) VALUES (?, ?, ?)`,
			time.Now().UTC().Format(time.RFC3339Nano), set.Total(), skipped)
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		if runID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("run id: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `INSERT INTO routes
			(run_id, seq, category, from_name, to_name, height, tier, collides, length_km, path)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare route insert: %w", err)
		}
		defer stmt.Close()

		for _, c := range route.Categories {
			for seq, r := range set.Routes[c] {
				path, err := json.Marshal(r.Path)
				if err != nil {
					return fmt.Errorf("encode path %s: %w", r, err)
				}
				if _, err := stmt.ExecContext(ctx, runID, seq, string(c), r.From, r.To,
					int(r.Height), string(r.Tier), r.Collides, analysis.PlanarLengthKm(r.Path), string(path)); err != nil {
					return fmt.Errorf("insert route %s: %w", r, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("store: save run: %w", err)
	}
	return runID, nil
}

// LatestRun returns the id of the most recent run.
func (s *SQLite) LatestRun(ctx context.Context) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM runs ORDER BY id DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNoRun
	}
	if err != nil {
		return 0, fmt.Errorf("store: latest run: %w", err)
	}
	return id, nil
}

// Routes returns the routes of a run in planning order. An empty category
// returns every category.
func (s *SQLite) Routes(ctx context.Context, runID int64, category route.Category) ([]route.Route, error) {
	query := `SELECT category, from_name, to_name, height, tier, collides, path
		FROM routes WHERE run_id = ?`
	args := []any{runID}
	if category != "" {
		query += ` AND category = ?`
		args = append(args, string(category))
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query routes: %w", err)
	}
	defer rows.Close()

	routes := []route.Route{}
	for rows.Next() {
		var (
			r        route.Route
			height   int
			collides bool
			path     string
		)
		if err := rows.Scan(&r.Category, &r.From, &r.To, &height, &r.Tier, &collides, &path); err != nil {
			return nil, fmt.Errorf("store: scan route: %w", err)
		}
		r.Height = route.Altitude(height)
		r.Collides = collides

		var pts []orb.Point
		if err := json.Unmarshal([]byte(path), &pts); err != nil {
			return nil, fmt.Errorf("store: decode path of %s: %w", r, err)
		}
		r.Path = pts
		routes = append(routes, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate routes: %w", err)
	}
	return routes, nil
}

func (s *SQLite) transaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%v, rollback: %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
