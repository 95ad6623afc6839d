package migrate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shinji-kodama/quizctl/internal/database"
	"github.com/shinji-kodama/quizctl/internal/model"
	"github.com/shinji-kodama/quizctl/internal/schema"
)

// VersionTable records applied revisions.
const VersionTable = "schema_migrations"

var (
	// ErrNoChanges is returned by an autogenerated revision when the live
	// schema already matches the declared models.
	ErrNoChanges = errors.New("no changes in schema detected")

	// ErrNotUpToDate is returned by an autogenerated revision when the
	// database has not been upgraded to the current head.
	ErrNotUpToDate = errors.New("target database is not up to date")
)

// Migrator generates revisions in Dir and applies them to DB.
type Migrator struct {
	DB  *database.DB
	Dir string

	// Models is the declared schema that autogenerate compares against.
	Models []schema.Table

	Logger logrus.FieldLogger

	// Now stamps new revisions and applied_at. Defaults to time.Now.
	Now func() time.Time
}

// New returns a Migrator over the quiz models. db may be nil when only
// empty revisions will be generated.
func New(db *database.DB, dir string, logger logrus.FieldLogger) *Migrator {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &Migrator{
		DB:     db,
		Dir:    dir,
		Models: schema.Models(),
		Logger: logger,
		Now:    time.Now,
	}
}

// Chain loads the revisions in the migrations directory.
func (m *Migrator) Chain() (Chain, error) {
	return LoadChain(os.DirFS(m.Dir))
}

func (m *Migrator) requireDB() error {
	if m.DB == nil {
		return errors.New("no database connection")
	}
	return nil
}

func (m *Migrator) ensureVersionTable(ctx context.Context) error {
	_, err := m.DB.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+VersionTable+` (
	revision VARCHAR(32) NOT NULL PRIMARY KEY,
	applied_at BIGINT NOT NULL
)`)
	if err != nil {
		return fmt.Errorf("create %s: %w", VersionTable, err)
	}
	return nil
}

func (m *Migrator) applied(ctx context.Context) (map[string]bool, error) {
	if err := m.ensureVersionTable(ctx); err != nil {
		return nil, err
	}
	rows, err := m.DB.QueryContext(ctx, `SELECT revision FROM `+VersionTable)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", VersionTable, err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		applied[id] = true
	}
	return applied, rows.Err()
}

// position returns the chain index of the newest applied revision, or -1
// when nothing is applied.
func (m *Migrator) position(ctx context.Context, chain Chain) (int, error) {
	applied, err := m.applied(ctx)
	if err != nil {
		return 0, err
	}
	pos := -1
	for i, rev := range chain {
		if applied[rev.ID] {
			pos = i
			delete(applied, rev.ID)
		}
	}
	if len(applied) > 0 {
		unknown := make([]string, 0, len(applied))
		for id := range applied {
			unknown = append(unknown, id)
		}
		sort.Strings(unknown)
		return 0, fmt.Errorf("can't locate revision %s from the database in %s", strings.Join(unknown, ", "), m.Dir)
	}
	return pos, nil
}

// Current returns the newest applied revision, or nil when the database is
// at base.
func (m *Migrator) Current(ctx context.Context) (*Revision, error) {
	if err := m.requireDB(); err != nil {
		return nil, err
	}
	chain, err := m.Chain()
	if err != nil {
		return nil, err
	}
	pos, err := m.position(ctx, chain)
	if err != nil {
		return nil, err
	}
	if pos < 0 {
		return nil, nil
	}
	return chain[pos], nil
}

// Revision writes a new revision on top of the current head. With
// autogenerate the revision holds the SQL that brings the live schema in
// line with Models; otherwise its sections are empty.
func (m *Migrator) Revision(ctx context.Context, message string, autogenerate bool) (*Revision, error) {
	chain, err := m.Chain()
	if err != nil {
		return nil, err
	}

	rev := &Revision{
		ID:      NewRevisionID(),
		Message: message,
		Created: m.Now().UTC().Truncate(time.Second),
	}
	if head := chain.Head(); head != nil {
		rev.Parent = head.ID
	}

	if autogenerate {
		if err := m.requireDB(); err != nil {
			return nil, err
		}
		pos, err := m.position(ctx, chain)
		if err != nil {
			return nil, err
		}
		if pos != len(chain)-1 {
			return nil, ErrNotUpToDate
		}

		snap, err := m.DB.Snapshot(ctx)
		if err != nil {
			return nil, fmt.Errorf("inspect database: %w", err)
		}
		changes := schema.Diff(m.Models, snap, VersionTable)
		if len(changes) == 0 {
			return nil, ErrNoChanges
		}
		for _, c := range changes {
			m.Logger.Infof("Detected %s", c)
		}

		driver := m.DB.Dialect.Driver()
		rev.Up = schema.RenderUp(changes, driver)
		rev.Down = schema.RenderDown(changes, driver)
	}

	rev.File = FileName(rev.ID, message)
	if err := os.MkdirAll(m.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create migrations dir: %w", err)
	}
	target := filepath.Join(m.Dir, rev.File)
	if err := os.WriteFile(target, rev.Render(), 0o644); err != nil {
		return nil, fmt.Errorf("write revision: %w", err)
	}
	m.Logger.Infof("Generating %s ... done", target)
	return rev, nil
}

// Upgrade applies every revision after the current one up to target
// ("head" or a revision id). It returns the applied revisions.
func (m *Migrator) Upgrade(ctx context.Context, target string) ([]*Revision, error) {
	if err := m.requireDB(); err != nil {
		return nil, err
	}
	chain, err := m.Chain()
	if err != nil {
		return nil, err
	}
	pos, err := m.position(ctx, chain)
	if err != nil {
		return nil, err
	}
	dest, err := chain.Resolve(target)
	if err != nil {
		return nil, err
	}
	if dest < pos {
		return nil, fmt.Errorf("target %s is older than the current revision %s; use downgrade", target, chain[pos].ID)
	}

	var done []*Revision
	for i := pos + 1; i <= dest; i++ {
		rev := chain[i]
		m.Logger.Infof("Running upgrade %s -> %s, %s", displayID(rev.Parent), rev.ID, rev.Message)
		if err := m.apply(ctx, rev.UpStatements, rev.NoTransactionUp, `INSERT INTO `+VersionTable+` (revision, applied_at) VALUES (?, ?)`, rev.ID, m.Now().Unix()); err != nil {
			return done, fmt.Errorf("upgrade %s: %w", rev.ID, err)
		}
		done = append(done, rev)
	}
	return done, nil
}

// Downgrade reverts revisions down to target: "-1" (or "-N") relative to
// the current revision, "base", or a revision id. It returns the reverted
// revisions, newest first.
func (m *Migrator) Downgrade(ctx context.Context, target string) ([]*Revision, error) {
	if err := m.requireDB(); err != nil {
		return nil, err
	}
	chain, err := m.Chain()
	if err != nil {
		return nil, err
	}
	pos, err := m.position(ctx, chain)
	if err != nil {
		return nil, err
	}

	var dest int
	if steps, ok := relativeSteps(target); ok {
		dest = pos - steps
		if dest < -1 {
			return nil, fmt.Errorf("relative revision %s goes past base", target)
		}
	} else {
		dest, err = chain.Resolve(target)
		if err != nil {
			return nil, err
		}
	}
	if dest > pos {
		return nil, fmt.Errorf("target %s is newer than the current revision; use upgrade", target)
	}

	var done []*Revision
	for i := pos; i > dest; i-- {
		rev := chain[i]
		m.Logger.Infof("Running downgrade %s -> %s, %s", rev.ID, displayID(rev.Parent), rev.Message)
		if err := m.apply(ctx, rev.DownStatements, rev.NoTransactionDown, `DELETE FROM `+VersionTable+` WHERE revision = ?`, rev.ID); err != nil {
			return done, fmt.Errorf("downgrade %s: %w", rev.ID, err)
		}
		done = append(done, rev)
	}
	return done, nil
}

// apply runs the statements of one revision section and its bookkeeping
// statement in a single transaction. With noTx the statements run directly
// on the database, for DDL that refuses to run inside a transaction.
func (m *Migrator) apply(ctx context.Context, stmts []string, noTx bool, record string, args ...any) error {
	if noTx {
		for _, stmt := range stmts {
			if _, err := m.DB.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		if _, err := m.DB.ExecContext(ctx, m.DB.Rebind(record), args...); err != nil {
			return fmt.Errorf("record revision: %w", err)
		}
		return nil
	}

	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, m.DB.Rebind(record), args...); err != nil {
		return fmt.Errorf("record revision: %w", err)
	}
	return tx.Commit()
}

// HistoryEntry is one line of the revision history.
type HistoryEntry struct {
	Revision *Revision
	Applied  bool
	Current  bool
	Head     bool
}

// History returns the chain from base to head with each revision's applied
// state. Without a database connection nothing is marked applied.
func (m *Migrator) History(ctx context.Context) ([]HistoryEntry, error) {
	chain, err := m.Chain()
	if err != nil {
		return nil, err
	}
	pos := -1
	if m.DB != nil {
		if pos, err = m.position(ctx, chain); err != nil {
			return nil, err
		}
	}

	entries := make([]HistoryEntry, len(chain))
	for i, rev := range chain {
		entries[i] = HistoryEntry{
			Revision: rev,
			Applied:  i <= pos,
			Current:  i == pos,
			Head:     i == len(chain)-1,
		}
	}
	return entries, nil
}

func relativeSteps(target string) (int, bool) {
	if !strings.HasPrefix(target, "-") {
		return 0, false
	}
	n, err := strconv.Atoi(target[1:])
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

func displayID(id string) string {
	if id == "" {
		return "<" + model.TargetBase + ">"
	}
	return id
}
