package schema

// LiveColumn is a column as reported by the database.
type LiveColumn struct {
	Name string

	// Type is the raw type name, e.g. "VARCHAR(254)".
	Type string

	NotNull    bool
	PrimaryKey bool

	// Default is the raw default expression, empty when there is none.
	Default string
}

// LiveIndex is a secondary index as reported by the database.
type LiveIndex struct {
	Name    string
	Columns []string
	Unique  bool
}

// LiveTable is a table as reported by the database.
type LiveTable struct {
	Name    string
	Columns []LiveColumn
	Indexes []LiveIndex
}

// Column returns the named column, or nil.
func (t *LiveTable) Column(name string) *LiveColumn {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// Index returns the named index, or nil.
func (t *LiveTable) Index(name string) *LiveIndex {
	for i := range t.Indexes {
		if t.Indexes[i].Name == name {
			return &t.Indexes[i]
		}
	}
	return nil
}

// Snapshot is the set of tables found in a live database.
type Snapshot struct {
	Tables []LiveTable
}

// Table returns the named table, or nil.
func (s *Snapshot) Table(name string) *LiveTable {
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return &s.Tables[i]
		}
	}
	return nil
}
