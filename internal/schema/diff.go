package schema

import "fmt"

// ChangeKind enumerates the schema operations Diff can produce.
type ChangeKind int

const (
	AddTable ChangeKind = iota
	AddColumn
	AddIndex
	DropIndex
	DropColumn
	DropTable
)

func (k ChangeKind) String() string {
	switch k {
	case AddTable:
		return "add table"
	case AddColumn:
		return "add column"
	case AddIndex:
		return "add index"
	case DropIndex:
		return "drop index"
	case DropColumn:
		return "drop column"
	case DropTable:
		return "drop table"
	default:
		return fmt.Sprintf("ChangeKind(%d)", int(k))
	}
}

// Change is one difference between the declared model and the live
// database. Only the fields relevant to Kind are set.
type Change struct {
	Kind  ChangeKind
	Table string

	// Declared side, for additions.
	DeclaredTable  *Table
	DeclaredColumn *Column
	DeclaredIndex  *Index

	// Live side, for drops. Kept so the drop can be reverted.
	LiveTable  *LiveTable
	LiveColumn *LiveColumn
	LiveIndex  *LiveIndex
}

// String describes the change for logs, e.g. "add column quizzes.deleted".
func (c Change) String() string {
	switch {
	case c.DeclaredColumn != nil:
		return fmt.Sprintf("%s %s.%s", c.Kind, c.Table, c.DeclaredColumn.Name)
	case c.LiveColumn != nil:
		return fmt.Sprintf("%s %s.%s", c.Kind, c.Table, c.LiveColumn.Name)
	case c.DeclaredIndex != nil:
		return fmt.Sprintf("%s %s on %s", c.Kind, c.DeclaredIndex.Name, c.Table)
	case c.LiveIndex != nil:
		return fmt.Sprintf("%s %s on %s", c.Kind, c.LiveIndex.Name, c.Table)
	default:
		return fmt.Sprintf("%s %s", c.Kind, c.Table)
	}
}

// Diff compares the declared tables with the live snapshot. Tables named
// in ignore (such as the migration bookkeeping table) are never dropped.
//
// Additions come first, in declaration order, so foreign keys resolve.
// Drops follow, indexes before columns before tables.
func Diff(declared []Table, live Snapshot, ignore ...string) []Change {
	skip := make(map[string]bool, len(ignore))
	for _, name := range ignore {
		skip[name] = true
	}
	known := make(map[string]bool, len(declared))

	var adds, dropIndexes, dropColumns, dropTables []Change

	for i := range declared {
		want := &declared[i]
		known[want.Name] = true

		have := live.Table(want.Name)
		if have == nil {
			adds = append(adds, Change{Kind: AddTable, Table: want.Name, DeclaredTable: want})
			continue
		}

		for j := range want.Columns {
			col := &want.Columns[j]
			if have.Column(col.Name) == nil {
				adds = append(adds, Change{Kind: AddColumn, Table: want.Name, DeclaredColumn: col})
			}
		}
		for j := range want.Indexes {
			idx := &want.Indexes[j]
			if have.Index(idx.Name) == nil {
				adds = append(adds, Change{Kind: AddIndex, Table: want.Name, DeclaredIndex: idx})
			}
		}

		for j := range have.Indexes {
			idx := &have.Indexes[j]
			if want.Index(idx.Name) == nil {
				dropIndexes = append(dropIndexes, Change{Kind: DropIndex, Table: want.Name, LiveIndex: idx})
			}
		}
		for j := range have.Columns {
			col := &have.Columns[j]
			if want.Column(col.Name) == nil {
				dropColumns = append(dropColumns, Change{Kind: DropColumn, Table: want.Name, LiveColumn: col})
			}
		}
	}

	// Undeclared tables are dropped in reverse of the order they were
	// reported in.
	for i := len(live.Tables) - 1; i >= 0; i-- {
		have := &live.Tables[i]
		if known[have.Name] || skip[have.Name] {
			continue
		}
		dropTables = append(dropTables, Change{Kind: DropTable, Table: have.Name, LiveTable: have})
	}

	changes := make([]Change, 0, len(adds)+len(dropIndexes)+len(dropColumns)+len(dropTables))
	changes = append(changes, adds...)
	changes = append(changes, dropIndexes...)
	changes = append(changes, dropColumns...)
	changes = append(changes, dropTables...)
	return changes
}
