package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/quizctl/internal/model"
	"github.com/shinji-kodama/quizctl/internal/schema"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), model.DriverSQLite, filepath.Join(t.TempDir(), "quiz.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), model.Driver("mysql"), "x")
	require.Error(t, err)
}

func TestSnapshot_RoundTripsRenderedSchema(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	up := schema.RenderUp(schema.Diff(schema.Models(), schema.Snapshot{}), model.DriverSQLite)
	_, err := db.ExecContext(ctx, up)
	require.NoError(t, err)

	snap, err := db.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Tables, 7)

	users := snap.Table("users")
	require.NotNil(t, users)
	email := users.Column("email")
	require.NotNil(t, email)
	assert.Equal(t, "VARCHAR(254)", email.Type)
	assert.True(t, email.NotNull)
	assert.True(t, users.Column("id").PrimaryKey)

	idx := users.Index("ix_users_email")
	require.NotNil(t, idx)
	assert.True(t, idx.Unique)
	assert.Equal(t, []string{"email"}, idx.Columns)

	assert.Empty(t, schema.Diff(schema.Models(), snap), "rendered schema must introspect as up to date")
}

func TestSnapshot_SkipsAutomaticIndexes(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	_, err := db.ExecContext(ctx, `CREATE TABLE tags (name TEXT PRIMARY KEY, slug TEXT UNIQUE)`)
	require.NoError(t, err)

	snap, err := db.Snapshot(ctx)
	require.NoError(t, err)

	tags := snap.Table("tags")
	require.NotNil(t, tags)
	assert.Empty(t, tags.Indexes)
}

func TestTableExists(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	ok, err := db.TableExists(ctx, "users")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = db.ExecContext(ctx, `CREATE TABLE users (id TEXT PRIMARY KEY)`)
	require.NoError(t, err)

	ok, err = db.TableExists(ctx, "users")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRebind(t *testing.T) {
	q := "SELECT id FROM users WHERE email = ? AND id <> ?"

	sqlite, err := DialectFor(model.DriverSQLite)
	require.NoError(t, err)
	assert.Equal(t, q, sqlite.Rebind(q))

	pg, err := DialectFor(model.DriverPostgres)
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM users WHERE email = $1 AND id <> $2", pg.Rebind(q))
}
