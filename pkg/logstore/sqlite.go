package logstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/itohio/gardenmeter/pkg/calibration"
	"github.com/itohio/gardenmeter/pkg/measurement"

	_ "modernc.org/sqlite"
)

const writeTimeout = 2 * time.Second

// SQLMirror keeps a queryable copy of the log in SQLite. It is written next to
// the CSV file and never replaces it.
type SQLMirror struct {
	db *sql.DB
}

// OpenSQLMirror opens (or creates) the database at path and ensures the schema.
func OpenSQLMirror(path string) (*SQLMirror, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// One connection serializes writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	m := &SQLMirror{db: db}
	if err := m.createTables(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return m, nil
}

func (m *SQLMirror) createTables(ctx context.Context) error {
	for _, stmt := range []string{
		`PRAGMA journal_mode=WAL`,
		`PRAGMA busy_timeout=5000`,
		`CREATE TABLE IF NOT EXISTS measurement (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TEXT NOT NULL,
			soil_raw INTEGER NOT NULL,
			soil_status TEXT NOT NULL,
			light_raw INTEGER NOT NULL,
			irradiance REAL NOT NULL,
			temperature REAL NOT NULL,
			humidity REAL NOT NULL
		)`,
	} {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init sqlite schema: %w", err)
		}
	}
	return nil
}

// Append inserts one row.
func (m *SQLMirror) Append(ms measurement.Measurement) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	_, err := m.db.ExecContext(ctx, `
		INSERT INTO measurement (timestamp, soil_raw, soil_status, light_raw, irradiance, temperature, humidity)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ms.Timestamp, ms.SoilRaw, ms.SoilStatus.String(), ms.LightRaw, ms.Irradiance, ms.Temperature, ms.Humidity,
	)
	if err != nil {
		return fmt.Errorf("insert measurement: %w", err)
	}
	return nil
}

// Recent returns up to limit rows, newest first.
func (m *SQLMirror) Recent(ctx context.Context, limit int) ([]measurement.Measurement, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT timestamp, soil_raw, soil_status, light_raw, irradiance, temperature, humidity
		FROM measurement
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query measurements: %w", err)
	}
	defer rows.Close()

	result := make([]measurement.Measurement, 0, limit)
	for rows.Next() {
		var (
			ms     measurement.Measurement
			status string
		)
		if err := rows.Scan(&ms.Timestamp, &ms.SoilRaw, &status, &ms.LightRaw, &ms.Irradiance, &ms.Temperature, &ms.Humidity); err != nil {
			return nil, fmt.Errorf("scan measurement: %w", err)
		}
		if ms.SoilStatus, err = calibration.ParseSoilStatus(status); err != nil {
			return nil, err
		}
		result = append(result, ms)
	}
	return result, rows.Err()
}

// Close closes the database.
func (m *SQLMirror) Close() error {
	return m.db.Close()
}
