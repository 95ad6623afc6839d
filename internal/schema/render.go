package schema

import (
	"fmt"
	"strings"

	"github.com/shinji-kodama/quizctl/internal/model"
)

// SQLType returns the SQL type of a declared column for driver.
func SQLType(col Column, driver model.Driver) string {
	switch col.Type {
	case TypeUUID:
		if driver == model.DriverPostgres {
			return "UUID"
		}
		return "CHAR(36)"
	case TypeString:
		if col.Size > 0 {
			return fmt.Sprintf("VARCHAR(%d)", col.Size)
		}
		return "VARCHAR"
	case TypeText:
		if driver == model.DriverPostgres {
			return "VARCHAR"
		}
		return "TEXT"
	case TypeBool:
		return "BOOLEAN"
	case TypeFloat:
		if driver == model.DriverPostgres {
			return "DOUBLE PRECISION"
		}
		return "FLOAT"
	case TypeInteger:
		return "INTEGER"
	case TypeTimestamp:
		if driver == model.DriverPostgres {
			return "TIMESTAMP WITH TIME ZONE"
		}
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

// Quote quotes an identifier. Both supported drivers use double quotes,
// which also protects reserved words such as "offset".
func Quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = Quote(n)
	}
	return strings.Join(quoted, ", ")
}

// RenderUp returns the SQL applying changes, one statement per line group.
func RenderUp(changes []Change, driver model.Driver) string {
	var b strings.Builder
	for _, c := range changes {
		writeStatements(&b, up(c, driver))
	}
	return b.String()
}

// RenderDown returns the SQL reverting changes, in reverse order.
func RenderDown(changes []Change, driver model.Driver) string {
	var b strings.Builder
	for i := len(changes) - 1; i >= 0; i-- {
		writeStatements(&b, down(changes[i], driver))
	}
	return b.String()
}

func writeStatements(b *strings.Builder, stmts []string) {
	for _, s := range stmts {
		b.WriteString(s)
		b.WriteString(";\n")
	}
}

func up(c Change, driver model.Driver) []string {
	switch c.Kind {
	case AddTable:
		stmts := []string{createTable(c.DeclaredTable, driver)}
		for _, idx := range c.DeclaredTable.Indexes {
			stmts = append(stmts, createIndex(idx.Name, c.Table, idx.Columns, idx.Unique))
		}
		return stmts
	case AddColumn:
		return addColumn(c.Table, c.DeclaredColumn, driver)
	case AddIndex:
		return []string{createIndex(c.DeclaredIndex.Name, c.Table, c.DeclaredIndex.Columns, c.DeclaredIndex.Unique)}
	case DropIndex:
		return []string{dropIndex(c.LiveIndex.Name)}
	case DropColumn:
		return []string{dropColumn(c.Table, c.LiveColumn.Name)}
	case DropTable:
		return []string{dropTable(c.Table)}
	}
	return nil
}

func down(c Change, driver model.Driver) []string {
	switch c.Kind {
	case AddTable:
		return []string{dropTable(c.Table)}
	case AddColumn:
		return []string{dropColumn(c.Table, c.DeclaredColumn.Name)}
	case AddIndex:
		return []string{dropIndex(c.DeclaredIndex.Name)}
	case DropIndex:
		return []string{createIndex(c.LiveIndex.Name, c.Table, c.LiveIndex.Columns, c.LiveIndex.Unique)}
	case DropColumn:
		return []string{fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", Quote(c.Table), liveColumnDef(*c.LiveColumn))}
	case DropTable:
		stmts := []string{recreateTable(c.LiveTable)}
		for _, idx := range c.LiveTable.Indexes {
			stmts = append(stmts, createIndex(idx.Name, c.Table, idx.Columns, idx.Unique))
		}
		return stmts
	}
	return nil
}

func columnDef(col Column, driver model.Driver, allowNotNull bool) string {
	parts := []string{Quote(col.Name), SQLType(col, driver)}
	if col.NotNull && allowNotNull {
		parts = append(parts, "NOT NULL")
	}
	if col.Default != "" {
		parts = append(parts, "DEFAULT "+col.Default)
	}
	return strings.Join(parts, " ")
}

func createTable(t *Table, driver model.Driver) string {
	var lines []string
	var pk []string
	for _, col := range t.Columns {
		lines = append(lines, "\t"+columnDef(col, driver, true))
		if col.PrimaryKey {
			pk = append(pk, col.Name)
		}
	}
	if len(pk) > 0 {
		lines = append(lines, fmt.Sprintf("\tPRIMARY KEY (%s)", quoteList(pk)))
	}
	for _, col := range t.Columns {
		if col.References == "" {
			continue
		}
		refTable, refCol, _ := strings.Cut(col.References, ".")
		lines = append(lines, fmt.Sprintf("\tFOREIGN KEY (%s) REFERENCES %s (%s)",
			Quote(col.Name), Quote(refTable), Quote(refCol)))
	}
	return fmt.Sprintf("CREATE TABLE %s (\n%s\n)", Quote(t.Name), strings.Join(lines, ",\n"))
}

// addColumn adds a column to an existing table. NOT NULL is only kept when
// the column has a default, since existing rows would otherwise violate it.
//
// SQLite rejects ADD COLUMN with a non-constant default such as
// CURRENT_TIMESTAMP once the table has rows. There the column is added
// without the default and existing rows are backfilled with an UPDATE.
func addColumn(table string, col *Column, driver model.Driver) []string {
	backfill := driver == model.DriverSQLite && col.Default != "" && !IsConstantDefault(col.Default)

	added := *col
	if backfill {
		added.Default = ""
	}
	def := columnDef(added, driver, added.Default != "")
	if col.References != "" {
		refTable, refCol, _ := strings.Cut(col.References, ".")
		def += fmt.Sprintf(" REFERENCES %s (%s)", Quote(refTable), Quote(refCol))
	}
	stmts := []string{fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", Quote(table), def)}
	if backfill {
		stmts = append(stmts, fmt.Sprintf("UPDATE %s SET %s = %s", Quote(table), Quote(col.Name), col.Default))
	}
	return stmts
}

// IsConstantDefault reports whether a column default is a literal value
// rather than an expression evaluated per row.
func IsConstantDefault(expr string) bool {
	e := strings.ToUpper(strings.TrimSpace(expr))
	switch {
	case e == "CURRENT_TIMESTAMP", e == "CURRENT_DATE", e == "CURRENT_TIME":
		return false
	case strings.HasPrefix(e, "("), strings.HasSuffix(e, ")"):
		return false
	}
	return true
}

func liveColumnDef(col LiveColumn) string {
	parts := []string{Quote(col.Name)}
	if col.Type != "" {
		parts = append(parts, col.Type)
	}
	if col.NotNull && col.Default != "" {
		parts = append(parts, "NOT NULL")
	}
	if col.Default != "" {
		parts = append(parts, "DEFAULT "+col.Default)
	}
	return strings.Join(parts, " ")
}

func recreateTable(t *LiveTable) string {
	var lines []string
	var pk []string
	for _, col := range t.Columns {
		parts := []string{Quote(col.Name)}
		if col.Type != "" {
			parts = append(parts, col.Type)
		}
		if col.NotNull {
			parts = append(parts, "NOT NULL")
		}
		if col.Default != "" {
			parts = append(parts, "DEFAULT "+col.Default)
		}
		lines = append(lines, "\t"+strings.Join(parts, " "))
		if col.PrimaryKey {
			pk = append(pk, col.Name)
		}
	}
	if len(pk) > 0 {
		lines = append(lines, fmt.Sprintf("\tPRIMARY KEY (%s)", quoteList(pk)))
	}
	return fmt.Sprintf("CREATE TABLE %s (\n%s\n)", Quote(t.Name), strings.Join(lines, ",\n"))
}

func createIndex(name, table string, columns []string, unique bool) string {
	kind := "INDEX"
	if unique {
		kind = "UNIQUE INDEX"
	}
	return fmt.Sprintf("CREATE %s %s ON %s (%s)", kind, Quote(name), Quote(table), quoteList(columns))
}

func dropIndex(name string) string {
	return "DROP INDEX " + Quote(name)
}

func dropColumn(table, column string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", Quote(table), Quote(column))
}

func dropTable(table string) string {
	return "DROP TABLE " + Quote(table)
}
