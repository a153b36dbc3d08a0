// Package db provides the embedded DuckDB connection used for ad-hoc queries
// over the case dataset.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/joeblew999/plat-covid/internal/dataset"
)

var (
	instance *sql.DB
	once     sync.Once
	initErr  error
)

// Config holds database configuration.
type Config struct {
	DataDir string
	DBName  string
}

// Get returns the singleton DuckDB connection.
func Get(cfg Config) (*sql.DB, error) {
	once.Do(func() {
		instance, initErr = Open(cfg)
	})
	return instance, initErr
}

// Open opens a DuckDB database under DataDir/duckdb.
func Open(cfg Config) (*sql.DB, error) {
	duckdbDir := filepath.Join(cfg.DataDir, "duckdb")
	if err := os.MkdirAll(duckdbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create duckdb directory: %w", err)
	}

	dbPath := filepath.Join(duckdbDir, cfg.DBName+".duckdb")
	conn, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Close closes the singleton connection.
func Close() error {
	if instance != nil {
		return instance.Close()
	}
	return nil
}

// Lockdown stops queries from reaching the host: file readers, COPY TO,
// ATTACH and extension loading are disabled, and the configuration is locked
// so queries cannot turn them back on. It is a no-op on a locked database.
func Lockdown(ctx context.Context, conn *sql.DB) error {
	var locked bool
	if err := conn.QueryRowContext(ctx, "SELECT current_setting('lock_configuration')").Scan(&locked); err != nil {
		return fmt.Errorf("reading lock_configuration: %w", err)
	}
	if locked {
		return nil
	}
	for _, stmt := range []string{
		"SET enable_external_access = false",
		"SET lock_configuration = true",
	} {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("locking down duckdb: %w", err)
		}
	}
	return nil
}

// LoadCases replaces the "cases" table with one row per case feature.
// idx is the feature's position, matching the control panel option values.
func LoadCases(ctx context.Context, conn *sql.DB, fc *geojson.FeatureCollection) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		"DROP TABLE IF EXISTS cases",
		`CREATE TABLE cases (
			idx INTEGER PRIMARY KEY,
			id VARCHAR NOT NULL,
			title VARCHAR NOT NULL,
			date DATE,
			longitude DOUBLE NOT NULL,
			latitude DOUBLE NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating cases table: %w", err)
		}
	}

	insert, err := tx.PrepareContext(ctx, "INSERT INTO cases VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer insert.Close()

	for i, f := range fc.Features {
		p, ok := f.Geometry.(orb.Point)
		if !ok {
			return fmt.Errorf("case %d: %w", i, dataset.ErrNotPoint)
		}
		props := dataset.PropertiesOf(f)
		var date any
		if props.Date != "" {
			date = props.Date
		}
		if _, err := insert.ExecContext(ctx, i, props.ID, props.Title, date, p.Lon(), p.Lat()); err != nil {
			return fmt.Errorf("inserting case %d: %w", i, err)
		}
	}

	return tx.Commit()
}
