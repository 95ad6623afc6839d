package migrate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/quizctl/internal/database"
	"github.com/shinji-kodama/quizctl/internal/model"
	"github.com/shinji-kodama/quizctl/internal/schema"
)

func rev(id, parent string) *Revision {
	return &Revision{ID: id, Parent: parent, File: id + ".sql"}
}

func TestNewRevisionID(t *testing.T) {
	id := NewRevisionID()
	assert.Len(t, id, 12)
	assert.Regexp(t, `^[0-9a-f]{12}$`, id)
	assert.NotEqual(t, id, NewRevisionID())
}

func TestFileName(t *testing.T) {
	tests := []struct {
		message string
		want    string
	}{
		{"init", "abc_init.sql"},
		{"Add quiz tags!", "abc_add_quiz_tags.sql"},
		{"", "abc.sql"},
		{"---", "abc.sql"},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Equal(t, tt.want, FileName("abc", tt.message))
		})
	}
}

func TestRevision_RenderParse(t *testing.T) {
	created := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	r := &Revision{
		ID:      "1a2b3c4d5e6f",
		Parent:  "0f9e8d7c6b5a",
		Message: "add quiz tags",
		Created: created,
		Up:      "ALTER TABLE quizzes ADD COLUMN tags TEXT;\n",
		Down:    "ALTER TABLE quizzes DROP COLUMN tags;\n",
	}

	parsed, err := ParseRevision("migrations/1a2b3c4d5e6f_add_quiz_tags.sql", r.Render())
	require.NoError(t, err)
	assert.Equal(t, r.ID, parsed.ID)
	assert.Equal(t, r.Parent, parsed.Parent)
	assert.Equal(t, r.Message, parsed.Message)
	assert.True(t, created.Equal(parsed.Created))
	assert.Equal(t, "1a2b3c4d5e6f_add_quiz_tags.sql", parsed.File)
	assert.Contains(t, parsed.Up, "ADD COLUMN tags")
	assert.NotContains(t, parsed.Up, "DROP COLUMN")
	assert.Contains(t, parsed.Down, "DROP COLUMN tags")
}

func TestParseRevision_Errors(t *testing.T) {
	_, err := ParseRevision("x.sql", []byte("-- +migrate Up\nSELECT 1;\n"))
	assert.ErrorContains(t, err, "Revision ID")

	_, err = ParseRevision("x.sql", []byte("-- Revision ID: aaa\n-- Revises: aaa\n"))
	assert.ErrorContains(t, err, "revises itself")

	_, err = ParseRevision("x.sql", []byte("-- Revision ID: aaa\n-- Create Date: yesterday\n"))
	assert.ErrorContains(t, err, "create date")
}

func TestParseRevision_SplitsStatements(t *testing.T) {
	content := `-- Revision ID: aaa
-- Revises:

-- +migrate Up
CREATE TABLE tags (
	name TEXT NOT NULL
);
CREATE INDEX ix_tags_name ON tags (name);

-- +migrate StatementBegin
CREATE TRIGGER tags_lower AFTER INSERT ON tags BEGIN
	UPDATE tags SET name = lower(name);
END;
-- +migrate StatementEnd

-- +migrate Down
-- nothing to keep
DROP TABLE tags;
`
	rev, err := ParseRevision("aaa_tags.sql", []byte(content))
	require.NoError(t, err)
	require.Len(t, rev.UpStatements, 3)
	assert.Contains(t, rev.UpStatements[0], "CREATE TABLE tags")
	assert.Contains(t, rev.UpStatements[1], "CREATE INDEX")
	assert.Contains(t, rev.UpStatements[2], "UPDATE tags SET name = lower(name);")
	require.Len(t, rev.DownStatements, 1)
	assert.Equal(t, "DROP TABLE tags;", strings.TrimSpace(rev.DownStatements[0]))
	assert.False(t, rev.NoTransactionUp)
}

func TestParseRevision_HeadersOnlyAboveMarkers(t *testing.T) {
	content := `-- Revision ID: bbb
-- Revises: aaa
-- Message: real message

-- +migrate Up
-- Revises: zzz
-- Message: not a header
SELECT 1;

-- +migrate Down
`
	rev, err := ParseRevision("bbb.sql", []byte(content))
	require.NoError(t, err)
	assert.Equal(t, "aaa", rev.Parent)
	assert.Equal(t, "real message", rev.Message)
	assert.Len(t, rev.UpStatements, 1)
}

func TestParseRevision_NoTransaction(t *testing.T) {
	content := "-- Revision ID: ccc\n\n-- +migrate Up notransaction\nCREATE INDEX CONCURRENTLY ix ON t (c);\n\n-- +migrate Down\nDROP INDEX ix;\n"
	rev, err := ParseRevision("ccc.sql", []byte(content))
	require.NoError(t, err)
	assert.True(t, rev.NoTransactionUp)
	assert.False(t, rev.NoTransactionDown)
}

func TestParseRevision_InvalidSections(t *testing.T) {
	_, err := ParseRevision("x.sql", []byte("-- Revision ID: aaa\nSELECT 1;\n"))
	assert.Error(t, err, "a file without section markers is rejected")

	_, err = ParseRevision("x.sql", []byte("-- Revision ID: aaa\n-- +migrate Up\nSELECT 1\n"))
	assert.Error(t, err, "an unterminated statement is rejected")
}

func TestBuildChain_Orders(t *testing.T) {
	chain, err := BuildChain([]*Revision{rev("c", "b"), rev("a", ""), rev("b", "a")})
	require.NoError(t, err)
	require.Len(t, chain, 3)
	assert.Equal(t, "a", chain[0].ID)
	assert.Equal(t, "b", chain[1].ID)
	assert.Equal(t, "c", chain.Head().ID)
}

func TestBuildChain_Empty(t *testing.T) {
	chain, err := BuildChain(nil)
	require.NoError(t, err)
	assert.Nil(t, chain.Head())
}

func TestBuildChain_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		revisions []*Revision
		wantErr   string
	}{
		{"duplicate", []*Revision{rev("a", ""), rev("a", "")}, "duplicate revision a"},
		{"unknown parent", []*Revision{rev("a", ""), rev("b", "zz")}, "unknown revision zz"},
		{"multiple heads", []*Revision{rev("a", ""), rev("b", "a"), rev("c", "a")}, "multiple heads"},
		{"multiple bases", []*Revision{rev("a", ""), rev("b", "")}, "multiple base revisions"},
		{"cycle", []*Revision{rev("a", "b"), rev("b", "a")}, "no base revision"},
		{"detached cycle", []*Revision{rev("a", ""), rev("b", "c"), rev("c", "b")}, "chain is broken"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildChain(tt.revisions)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestChain_Resolve(t *testing.T) {
	chain := Chain{rev("1a2b3c", ""), rev("1a9f00", "1a2b3c"), rev("ffee00", "1a9f00")}

	pos, err := chain.Resolve(model.TargetHead)
	require.NoError(t, err)
	assert.Equal(t, 2, pos)

	pos, err = chain.Resolve(model.TargetBase)
	require.NoError(t, err)
	assert.Equal(t, -1, pos)

	pos, err = chain.Resolve("ffe")
	require.NoError(t, err)
	assert.Equal(t, 2, pos)

	pos, err = chain.Resolve("1a9f00")
	require.NoError(t, err)
	assert.Equal(t, 1, pos)

	_, err = chain.Resolve("1a")
	assert.ErrorContains(t, err, "ambiguous")

	_, err = chain.Resolve("0000")
	assert.ErrorContains(t, err, "can't locate")
}

func TestLoadChain_MissingDir(t *testing.T) {
	chain, err := LoadChain(os.DirFS(filepath.Join(t.TempDir(), "missing")))
	require.NoError(t, err)
	assert.Empty(t, chain)
}

func TestLoadChain_SkipsOtherFiles(t *testing.T) {
	fsys := fstest.MapFS{
		"aaa_init.sql": {Data: []byte("-- Revision ID: aaa\n-- Revises: \n-- +migrate Up\n-- +migrate Down\n")},
		"bbb_next.sql": {Data: []byte("-- Revision ID: bbb\n-- Revises: aaa\n-- +migrate Up\n-- +migrate Down\n")},
		"README.md":    {Data: []byte("# migrations")},
		"old/ccc.sql":  {Data: []byte("-- Revision ID: ccc\n-- Revises: bbb\n-- +migrate Up\n")},
	}
	chain, err := LoadChain(fsys)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, "bbb", chain.Head().ID)
}

func newTestMigrator(t *testing.T) *Migrator {
	t.Helper()
	dir := t.TempDir()
	db, err := database.Open(context.Background(), model.DriverSQLite, filepath.Join(dir, "quiz.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db, filepath.Join(dir, "migrations"), nil)
}

func TestMigrator_EmptyRevisionWithoutDatabase(t *testing.T) {
	m := New(nil, t.TempDir(), nil)

	first, err := m.Revision(context.Background(), "first", false)
	require.NoError(t, err)
	assert.Empty(t, first.Parent)

	second, err := m.Revision(context.Background(), "second", false)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.Parent)

	_, err = m.Revision(context.Background(), "auto", true)
	assert.ErrorContains(t, err, "no database connection")

	history, err := m.History(context.Background())
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.False(t, history[0].Applied)
	assert.True(t, history[1].Head)
}

func TestMigrator_Lifecycle(t *testing.T) {
	ctx := context.Background()
	m := newTestMigrator(t)

	current, err := m.Current(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)

	// Fresh database: the first autogenerated revision creates every table.
	initRev, err := m.Revision(ctx, "init", true)
	require.NoError(t, err)
	assert.Contains(t, initRev.Up, `CREATE TABLE "users"`)
	assert.FileExists(t, filepath.Join(m.Dir, initRev.File))

	applied, err := m.Upgrade(ctx, model.TargetHead)
	require.NoError(t, err)
	require.Len(t, applied, 1)

	current, err = m.Current(ctx)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, initRev.ID, current.ID)

	// Second run: nothing to generate, nothing to apply.
	_, err = m.Revision(ctx, "init", true)
	assert.ErrorIs(t, err, ErrNoChanges)

	applied, err = m.Upgrade(ctx, model.TargetHead)
	require.NoError(t, err)
	assert.Empty(t, applied)

	entries, err := os.ReadDir(m.Dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	// A model change produces a second revision on top of the first.
	for i := range m.Models {
		if m.Models[i].Name == "quizzes" {
			m.Models[i].Columns = append(m.Models[i].Columns, schema.Column{Name: "tags", Type: schema.TypeText})
		}
	}
	tagsRev, err := m.Revision(ctx, "add quiz tags", true)
	require.NoError(t, err)
	assert.Equal(t, initRev.ID, tagsRev.Parent)
	assert.Contains(t, tagsRev.Up, "ADD COLUMN")

	// Autogenerate refuses to stack on a database that is behind.
	_, err = m.Revision(ctx, "again", true)
	assert.ErrorIs(t, err, ErrNotUpToDate)

	_, err = m.Upgrade(ctx, "")
	require.NoError(t, err)

	history, err := m.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].Applied)
	assert.False(t, history[0].Current)
	assert.True(t, history[1].Current)
	assert.True(t, history[1].Head)

	// Step back one revision.
	reverted, err := m.Downgrade(ctx, model.TargetPrevious)
	require.NoError(t, err)
	require.Len(t, reverted, 1)
	assert.Equal(t, tagsRev.ID, reverted[0].ID)

	snap, err := m.DB.Snapshot(ctx)
	require.NoError(t, err)
	assert.Nil(t, snap.Table("quizzes").Column("tags"))

	_, err = m.Upgrade(ctx, model.TargetBase)
	assert.ErrorContains(t, err, "use downgrade")

	// All the way down.
	reverted, err = m.Downgrade(ctx, model.TargetBase)
	require.NoError(t, err)
	assert.Len(t, reverted, 1)

	exists, err := m.DB.TableExists(ctx, "users")
	require.NoError(t, err)
	assert.False(t, exists)

	current, err = m.Current(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)

	_, err = m.Downgrade(ctx, model.TargetPrevious)
	assert.ErrorContains(t, err, "past base")
}

func TestMigrator_UnknownAppliedRevision(t *testing.T) {
	ctx := context.Background()
	m := newTestMigrator(t)

	require.NoError(t, m.ensureVersionTable(ctx))
	_, err := m.DB.ExecContext(ctx, `INSERT INTO schema_migrations (revision, applied_at) VALUES ('deadbeef0000', 0)`)
	require.NoError(t, err)

	_, err = m.Current(ctx)
	assert.ErrorContains(t, err, "deadbeef0000")
}

func TestMigrator_FailedRevisionRollsBack(t *testing.T) {
	ctx := context.Background()
	m := newTestMigrator(t)

	broken := &Revision{ID: "bad000000000", Message: "broken", Created: time.Now().UTC(),
		Up: "CREATE TABLE ok_table (id INTEGER);\nTHIS IS NOT SQL;\n"}
	require.NoError(t, os.MkdirAll(m.Dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(m.Dir, FileName(broken.ID, broken.Message)), broken.Render(), 0o644))

	_, err := m.Upgrade(ctx, model.TargetHead)
	require.Error(t, err)

	current, err := m.Current(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)

	exists, err := m.DB.TableExists(ctx, "ok_table")
	require.NoError(t, err)
	assert.False(t, exists)
}

// TestMigrator_AddTimestampColumnToPopulatedTable adds a column with a
// CURRENT_TIMESTAMP default to a SQLite table that already holds rows.
func TestMigrator_AddTimestampColumnToPopulatedTable(t *testing.T) {
	ctx := context.Background()
	m := newTestMigrator(t)

	full := m.Models
	m.Models = schema.Models()
	for i := range m.Models {
		if m.Models[i].Name != "quizzes" {
			continue
		}
		var cols []schema.Column
		for _, col := range m.Models[i].Columns {
			if col.Name != "created_at" {
				cols = append(cols, col)
			}
		}
		m.Models[i].Columns = cols
	}

	_, err := m.Revision(ctx, "init", true)
	require.NoError(t, err)
	_, err = m.Upgrade(ctx, model.TargetHead)
	require.NoError(t, err)

	_, err = m.DB.ExecContext(ctx, `INSERT INTO quizzes (id, title) VALUES ('q1', 'Capitals')`)
	require.NoError(t, err)

	m.Models = full
	rev, err := m.Revision(ctx, "add quiz created_at", true)
	require.NoError(t, err)
	assert.Contains(t, rev.Up, `ADD COLUMN "created_at"`)

	_, err = m.Upgrade(ctx, model.TargetHead)
	require.NoError(t, err)

	var createdAt *string
	require.NoError(t, m.DB.QueryRowContext(ctx, `SELECT created_at FROM quizzes WHERE id = 'q1'`).Scan(&createdAt))
	require.NotNil(t, createdAt, "existing rows are backfilled")
	assert.NotEmpty(t, *createdAt)

	_, err = m.Revision(ctx, "again", true)
	assert.ErrorIs(t, err, ErrNoChanges)
}
