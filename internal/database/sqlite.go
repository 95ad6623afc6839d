package database

import (
	"context"
	"database/sql"

	"github.com/shinji-kodama/quizctl/internal/model"
	"github.com/shinji-kodama/quizctl/internal/schema"
)

type sqliteDialect struct{}

func (sqliteDialect) Driver() model.Driver { return model.DriverSQLite }

func (sqliteDialect) Rebind(query string) string { return query }

func (sqliteDialect) Tables(ctx context.Context, q Querier) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (sqliteDialect) Columns(ctx context.Context, q Querier, table string) ([]schema.LiveColumn, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT name, type, "notnull", dflt_value, pk FROM pragma_table_info(?) ORDER BY cid`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []schema.LiveColumn
	for rows.Next() {
		var (
			col     schema.LiveColumn
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&col.Name, &col.Type, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		col.NotNull = notNull != 0
		col.PrimaryKey = pk > 0
		col.Default = dflt.String
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

func (sqliteDialect) Indexes(ctx context.Context, q Querier, table string) ([]schema.LiveIndex, error) {
	// origin 'c' restricts to indexes created with CREATE INDEX, leaving
	// out the automatic ones behind PRIMARY KEY and UNIQUE constraints.
	rows, err := q.QueryContext(ctx,
		`SELECT name, "unique" FROM pragma_index_list(?) WHERE origin = 'c' ORDER BY name`, table)
	if err != nil {
		return nil, err
	}

	var indexes []schema.LiveIndex
	for rows.Next() {
		var (
			idx    schema.LiveIndex
			unique int
		)
		if err := rows.Scan(&idx.Name, &unique); err != nil {
			rows.Close()
			return nil, err
		}
		idx.Unique = unique != 0
		indexes = append(indexes, idx)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// The column lookups run after the first result set is closed because
	// SQLite connections are limited to one.
	for i := range indexes {
		cols, err := sqliteIndexColumns(ctx, q, indexes[i].Name)
		if err != nil {
			return nil, err
		}
		indexes[i].Columns = cols
	}
	return indexes, nil
}

func sqliteIndexColumns(ctx context.Context, q Querier, index string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT name FROM pragma_index_info(?) ORDER BY seqno`, index)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}
