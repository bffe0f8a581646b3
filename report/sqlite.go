package report

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/alexshd/tts"
)

// schema replaces any earlier export in the same database.
var schema = []string{
	`DROP TABLE IF EXISTS master_curve_data`,
	`DROP TABLE IF EXISTS shift_factors`,
	`DROP TABLE IF EXISTS parameters`,
	`CREATE TABLE master_curve_data (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		temperature REAL NOT NULL,
		omega REAL NOT NULL,
		modulus REAL NOT NULL,
		a_t REAL NOT NULL,
		log_a_t REAL NOT NULL,
		shifted_omega REAL NOT NULL
	)`,
	`CREATE TABLE shift_factors (
		temperature REAL PRIMARY KEY,
		a_t REAL NOT NULL,
		log_a_t REAL NOT NULL
	)`,
	`CREATE TABLE parameters (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		value TEXT NOT NULL
	)`,
}

// WriteSQLite stores the tables in the database at path, replacing any
// earlier export there.
func WriteSQLite(ctx context.Context, path string, tables tts.ExportTables) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create tables: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO master_curve_data (temperature, omega, modulus, a_t, log_a_t, shifted_omega) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare sample insert: %w", err)
	}
	for _, r := range tables.Samples {
		if _, err := stmt.ExecContext(ctx, r.Temperature, r.Omega, r.Modulus, r.AT, r.LogAT, r.ShiftedOmega); err != nil {
			stmt.Close()
			return fmt.Errorf("failed to insert sample: %w", err)
		}
	}
	stmt.Close()

	for _, r := range tables.Factors {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO shift_factors (temperature, a_t, log_a_t) VALUES (?, ?, ?)`,
			r.Temperature, r.AT, r.LogAT); err != nil {
			return fmt.Errorf("failed to insert shift factor: %w", err)
		}
	}

	for _, p := range tables.Params {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO parameters (name, value) VALUES (?, ?)`, p.Key, p.Value); err != nil {
			return fmt.Errorf("failed to insert parameter: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit export: %w", err)
	}
	return nil
}

// ReadSQLite reads the tables back from a database written by WriteSQLite.
func ReadSQLite(ctx context.Context, path string) (tts.ExportTables, error) {
	var tables tts.ExportTables

	if _, err := os.Stat(path); err != nil {
		return tables, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return tables, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx,
		`SELECT temperature, omega, modulus, a_t, log_a_t, shifted_omega FROM master_curve_data ORDER BY id`)
	if err != nil {
		return tables, fmt.Errorf("failed to query samples: %w", err)
	}
	for rows.Next() {
		var r tts.SampleRow
		if err := rows.Scan(&r.Temperature, &r.Omega, &r.Modulus, &r.AT, &r.LogAT, &r.ShiftedOmega); err != nil {
			rows.Close()
			return tables, fmt.Errorf("failed to scan sample: %w", err)
		}
		tables.Samples = append(tables.Samples, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return tables, err
	}

	if tables.Factors, err = readFactors(ctx, db); err != nil {
		return tables, err
	}

	prows, err := db.QueryContext(ctx, `SELECT name, value FROM parameters ORDER BY id`)
	if err != nil {
		return tables, fmt.Errorf("failed to query parameters: %w", err)
	}
	defer prows.Close()
	for prows.Next() {
		var p tts.Param
		if err := prows.Scan(&p.Key, &p.Value); err != nil {
			return tables, fmt.Errorf("failed to scan parameter: %w", err)
		}
		tables.Params = append(tables.Params, p)
	}
	return tables, prows.Err()
}

func readFactors(ctx context.Context, db *sql.DB) ([]tts.FactorRow, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT temperature, a_t, log_a_t FROM shift_factors ORDER BY temperature`)
	if err != nil {
		return nil, fmt.Errorf("failed to query shift factors: %w", err)
	}
	defer rows.Close()

	var out []tts.FactorRow
	for rows.Next() {
		var r tts.FactorRow
		if err := rows.Scan(&r.Temperature, &r.AT, &r.LogAT); err != nil {
			return nil, fmt.Errorf("failed to scan shift factor: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
