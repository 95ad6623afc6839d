// Package database opens the quiz database and inspects its live schema.
//
// Two drivers are supported: SQLite through the pure-Go modernc.org/sqlite
// driver, and PostgreSQL through github.com/lib/pq. Driver differences
// (placeholders, catalog queries) are isolated behind the Dialect
// interface so the migration and seed code can stay driver-agnostic.
package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/shinji-kodama/quizctl/internal/model"
	"github.com/shinji-kodama/quizctl/internal/schema"
)

// Querier is the subset of *sql.DB and *sql.Tx the dialects need.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Dialect hides the differences between the supported databases.
type Dialect interface {
	// Driver returns the driver this dialect belongs to.
	Driver() model.Driver

	// Rebind rewrites "?" placeholders into the driver's syntax.
	Rebind(query string) string

	// Tables lists the user tables, sorted by name.
	Tables(ctx context.Context, q Querier) ([]string, error)

	// Columns lists the columns of table in declaration order.
	Columns(ctx context.Context, q Querier, table string) ([]schema.LiveColumn, error)

	// Indexes lists the secondary indexes of table, excluding indexes
	// that back the primary key.
	Indexes(ctx context.Context, q Querier, table string) ([]schema.LiveIndex, error)
}

// DB is an open database together with its dialect.
type DB struct {
	*sql.DB
	Dialect Dialect
}

// DialectFor returns the dialect of driver.
func DialectFor(driver model.Driver) (Dialect, error) {
	switch driver {
	case model.DriverSQLite:
		return sqliteDialect{}, nil
	case model.DriverPostgres:
		return postgresDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
}

// Open connects to the database and verifies the connection.
func Open(ctx context.Context, driver model.Driver, url string) (*DB, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}

	sqlDB, err := sql.Open(driver.String(), url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == model.DriverSQLite {
		// A single connection keeps ":memory:" databases shared and
		// serialises writers the way SQLite expects.
		sqlDB.SetMaxOpenConns(1)
		if err := applyPragmas(ctx, sqlDB); err != nil {
			sqlDB.Close()
			return nil, err
		}
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &DB{DB: sqlDB, Dialect: dialect}, nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}
	return nil
}

// Rebind rewrites query for the database's dialect.
func (db *DB) Rebind(query string) string {
	return db.Dialect.Rebind(query)
}

// TableExists reports whether a user table called name exists.
func (db *DB) TableExists(ctx context.Context, name string) (bool, error) {
	tables, err := db.Dialect.Tables(ctx, db)
	if err != nil {
		return false, err
	}
	for _, t := range tables {
		if t == name {
			return true, nil
		}
	}
	return false, nil
}

// Snapshot reads the live schema: every user table with its columns and
// secondary indexes.
func (db *DB) Snapshot(ctx context.Context) (schema.Snapshot, error) {
	return SnapshotOf(ctx, db.Dialect, db)
}

// SnapshotOf reads the live schema through q, which may be a transaction.
func SnapshotOf(ctx context.Context, d Dialect, q Querier) (schema.Snapshot, error) {
	var snap schema.Snapshot

	tables, err := d.Tables(ctx, q)
	if err != nil {
		return snap, fmt.Errorf("list tables: %w", err)
	}

	for _, name := range tables {
		cols, err := d.Columns(ctx, q, name)
		if err != nil {
			return snap, fmt.Errorf("list columns of %s: %w", name, err)
		}
		idx, err := d.Indexes(ctx, q, name)
		if err != nil {
			return snap, fmt.Errorf("list indexes of %s: %w", name, err)
		}
		snap.Tables = append(snap.Tables, schema.LiveTable{Name: name, Columns: cols, Indexes: idx})
	}
	return snap, nil
}
