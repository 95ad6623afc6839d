package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/shinji-kodama/quizctl/internal/model"
	"github.com/shinji-kodama/quizctl/internal/schema"
)

type postgresDialect struct{}

func (postgresDialect) Driver() model.Driver { return model.DriverPostgres }

// Rebind turns each "?" into $1, $2, ... in order.
func (postgresDialect) Rebind(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (postgresDialect) Tables(ctx context.Context, q Querier) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
		ORDER BY table_name`)
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

func (postgresDialect) Columns(ctx context.Context, q Querier, table string) ([]schema.LiveColumn, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT c.column_name, c.data_type, c.character_maximum_length, c.is_nullable, c.column_default,
		       EXISTS (
		           SELECT 1 FROM information_schema.table_constraints tc
		           JOIN information_schema.key_column_usage k
		             ON k.constraint_name = tc.constraint_name AND k.table_schema = tc.table_schema
		           WHERE tc.constraint_type = 'PRIMARY KEY'
		             AND tc.table_schema = c.table_schema
		             AND tc.table_name = c.table_name
		             AND k.column_name = c.column_name
		       )
		FROM information_schema.columns c
		WHERE c.table_schema = current_schema() AND c.table_name = $1
		ORDER BY c.ordinal_position`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []schema.LiveColumn
	for rows.Next() {
		var (
			col      schema.LiveColumn
			dataType string
			length   sql.NullInt64
			nullable string
			dflt     sql.NullString
		)
		if err := rows.Scan(&col.Name, &dataType, &length, &nullable, &dflt, &col.PrimaryKey); err != nil {
			return nil, err
		}
		col.Type = strings.ToUpper(dataType)
		if length.Valid {
			col.Type = fmt.Sprintf("%s(%d)", col.Type, length.Int64)
		}
		col.NotNull = nullable == "NO"
		col.Default = dflt.String
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

func (postgresDialect) Indexes(ctx context.Context, q Querier, table string) ([]schema.LiveIndex, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT i.relname, ix.indisunique, a.attname
		FROM pg_class t
		JOIN pg_namespace n ON n.oid = t.relnamespace
		JOIN pg_index ix ON ix.indrelid = t.oid
		JOIN pg_class i ON i.oid = ix.indexrelid
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
		WHERE n.nspname = current_schema() AND t.relname = $1 AND NOT ix.indisprimary
		ORDER BY i.relname, array_position(ix.indkey::int2[], a.attnum)`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var indexes []schema.LiveIndex
	for rows.Next() {
		var (
			name   string
			unique bool
			column string
		)
		if err := rows.Scan(&name, &unique, &column); err != nil {
			return nil, err
		}
		indexes = appendIndexColumn(indexes, name, unique, column)
	}
	return indexes, rows.Err()
}

// appendIndexColumn folds one (index, column) catalog row into indexes.
// Rows arrive ordered by index name and column position, so a row for the
// same index as the previous one extends it.
func appendIndexColumn(indexes []schema.LiveIndex, name string, unique bool, column string) []schema.LiveIndex {
	if n := len(indexes); n > 0 && indexes[n-1].Name == name {
		indexes[n-1].Columns = append(indexes[n-1].Columns, column)
		return indexes
	}
	return append(indexes, schema.LiveIndex{Name: name, Unique: unique, Columns: []string{column}})
}
