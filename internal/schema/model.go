package schema

// ColumnType is a portable column type. Render maps it to the driver's
// SQL type.
type ColumnType int

const (
	TypeUUID ColumnType = iota
	TypeString
	TypeText
	TypeBool
	TypeFloat
	TypeInteger
	TypeTimestamp
)

// Column is a declared column.
type Column struct {
	Name string
	Type ColumnType

	// Size is the VARCHAR length for TypeString.
	Size int

	PrimaryKey bool
	NotNull    bool

	// Default is a SQL expression understood by every supported driver,
	// such as "false" or "CURRENT_TIMESTAMP".
	Default string

	// References is the "table.column" this column is a foreign key to.
	References string
}

// Index is a declared secondary index.
type Index struct {
	Name    string
	Columns []string
	Unique  bool
}

// Table is a declared table.
type Table struct {
	Name    string
	Columns []Column
	Indexes []Index
}

// Column returns the named column, or nil.
func (t *Table) Column(name string) *Column {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// Index returns the named index, or nil.
func (t *Table) Index(name string) *Index {
	for i := range t.Indexes {
		if t.Indexes[i].Name == name {
			return &t.Indexes[i]
		}
	}
	return nil
}

func id() Column {
	return Column{Name: "id", Type: TypeUUID, PrimaryKey: true, NotNull: true}
}

func fk(name, ref string) Column {
	return Column{Name: name, Type: TypeUUID, References: ref}
}

func timestamps() []Column {
	return []Column{
		{Name: "created_at", Type: TypeTimestamp, Default: "CURRENT_TIMESTAMP"},
		{Name: "updated_at", Type: TypeTimestamp},
	}
}

// Models returns the quiz service tables, parents before children so
// they can be created in order.
func Models() []Table {
	return []Table{
		{
			Name: "users",
			Columns: []Column{
				id(),
				{Name: "email", Type: TypeString, Size: 254, NotNull: true},
				{Name: "hashed_password", Type: TypeString, Size: 128, NotNull: true},
			},
			Indexes: []Index{
				{Name: "ix_users_email", Columns: []string{"email"}, Unique: true},
			},
		},
		{
			Name: "quizzes",
			Columns: append([]Column{
				id(),
				{Name: "title", Type: TypeText},
				{Name: "published", Type: TypeBool},
				{Name: "deleted", Type: TypeBool, Default: "false"},
			}, append(timestamps(),
				fk("user_id", "users.id"),
			)...),
			Indexes: []Index{
				{Name: "ix_quizzes_deleted", Columns: []string{"deleted"}},
			},
		},
		{
			Name: "questions",
			Columns: []Column{
				id(),
				{Name: "title", Type: TypeText},
				{Name: "type", Type: TypeText},
				fk("quiz_id", "quizzes.id"),
			},
		},
		{
			Name: "answers",
			Columns: []Column{
				id(),
				{Name: "value", Type: TypeString, Size: 254},
				{Name: "is_correct", Type: TypeBool},
				fk("question_id", "questions.id"),
			},
		},
		{
			Name: "games",
			Columns: append([]Column{
				id(),
				{Name: "finished", Type: TypeBool},
				{Name: "score", Type: TypeFloat},
				{Name: "offset", Type: TypeInteger},
			}, append(timestamps(),
				fk("user_id", "users.id"),
				fk("quiz_id", "quizzes.id"),
			)...),
		},
		{
			Name: "game_questions",
			Columns: append([]Column{
				id(),
				{Name: "answered", Type: TypeBool},
				{Name: "skipped", Type: TypeBool},
				{Name: "answer_score", Type: TypeFloat},
			}, append(timestamps(),
				fk("question_id", "questions.id"),
				fk("game_id", "games.id"),
			)...),
			Indexes: []Index{
				{Name: "ix_game_questions_question_id", Columns: []string{"question_id"}},
			},
		},
		{
			Name: "game_answers",
			Columns: []Column{
				id(),
				{Name: "choice", Type: TypeText},
				fk("game_question_id", "game_questions.id"),
			},
		},
	}
}
