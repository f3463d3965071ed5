// Package sqlite persists per-date unit counts to a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/phu-heatmap/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS daily_unit_counts (
	report_date TEXT    NOT NULL,
	unit        TEXT    NOT NULL,
	lat         REAL    NOT NULL,
	lon         REAL    NOT NULL,
	count       INTEGER NOT NULL,
	PRIMARY KEY (report_date, unit)
)`

// Store writes aggregations into the daily_unit_counts table.
// It implements pipeline.Exporter.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the database at path and ensures the schema exists.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps in-memory databases consistent across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Name() string { return "sqlite" }

// Export replaces the table contents with agg in one transaction.
func (s *Store) Export(ctx context.Context, agg domain.Aggregation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM daily_unit_counts`); err != nil {
		return fmt.Errorf("clear table: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO daily_unit_counts (report_date, unit, lat, lon, count) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	rows := 0
	for _, date := range agg.Dates() {
		for _, c := range agg.Daily[date] {
			if _, err := stmt.ExecContext(ctx, date, c.Unit, c.Lat, c.Lon, c.Count); err != nil {
				return fmt.Errorf("insert %s/%s: %w", date, c.Unit, err)
			}
			rows++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.logger.Debug("sqlite export committed", "rows", rows)
	return nil
}

// Day reads one date's counts back, sorted by unit.
func (s *Store) Day(ctx context.Context, date string) ([]domain.UnitCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT unit, lat, lon, count FROM daily_unit_counts WHERE report_date = ? ORDER BY unit`, date)
	if err != nil {
		return nil, fmt.Errorf("query day: %w", err)
	}
	defer rows.Close()

	var out []domain.UnitCount
	for rows.Next() {
		var c domain.UnitCount
		if err := rows.Scan(&c.Unit, &c.Lat, &c.Lon, &c.Count); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
