// Package migrate generates and applies schema revisions.
//
// A revision is a plain SQL file in the migrations directory:
//
//	-- Revision ID: 1a2b3c4d5e6f
//	-- Revises: 0f9e8d7c6b5a
//	-- Create Date: 2026-10-18T12:00:00Z
//	-- Message: add quiz tags
//
//	-- +migrate Up
//	CREATE TABLE ...;
//
//	-- +migrate Down
//	DROP TABLE ...;
//
// The sections use the rubenv/sql-migrate file format. Revisions form one
// linear chain through their "Revises" header. Applied revisions are
// recorded in the schema_migrations table.
package migrate

import (
	"bytes"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rubenv/sql-migrate/sqlparse"
)

const (
	headerID      = "-- Revision ID:"
	headerRevises = "-- Revises:"
	headerDate    = "-- Create Date:"
	headerMessage = "-- Message:"

	markerPrefix = "-- +migrate"
	markerUp     = markerPrefix + " Up"
	markerDown   = markerPrefix + " Down"
)

// Revision is one parsed revision file.
type Revision struct {
	ID      string
	Parent  string
	Message string
	Created time.Time

	// File is the file name inside the migrations directory.
	File string

	// Up and Down hold the SQL text of each section.
	Up   string
	Down string

	// UpStatements and DownStatements are the sections split into single
	// statements. They are only set on parsed revisions.
	UpStatements   []string
	DownStatements []string

	// NoTransactionUp and NoTransactionDown are set by
	// "-- +migrate Up notransaction" and its Down counterpart.
	NoTransactionUp   bool
	NoTransactionDown bool
}

// NewRevisionID returns a random 12 character hex revision identifier.
func NewRevisionID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

var slugUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

// FileName returns "<id>_<slug>.sql" for a revision.
func FileName(id, message string) string {
	slug := strings.Trim(slugUnsafe.ReplaceAllString(strings.ToLower(message), "_"), "_")
	if len(slug) > 40 {
		slug = strings.TrimRight(slug[:40], "_")
	}
	if slug == "" {
		return id + ".sql"
	}
	return id + "_" + slug + ".sql"
}

// Render returns the file contents of r.
func (r *Revision) Render() []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s %s\n", headerID, r.ID)
	fmt.Fprintf(&b, "%s %s\n", headerRevises, r.Parent)
	fmt.Fprintf(&b, "%s %s\n", headerDate, r.Created.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "%s %s\n", headerMessage, r.Message)
	b.WriteString("\n")
	b.WriteString(markerUp + "\n")
	b.WriteString(r.Up)
	b.WriteString("\n")
	b.WriteString(markerDown + "\n")
	b.WriteString(r.Down)
	return b.Bytes()
}

// ParseRevision parses the contents of a revision file. Header lines are
// only read above the first "-- +migrate" marker; the sections are split
// into statements by sql-migrate's parser, so "-- +migrate StatementBegin"
// and "StatementEnd" work for bodies containing semicolons.
func ParseRevision(file string, content []byte) (*Revision, error) {
	rev := &Revision{File: path.Base(file)}

	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, markerPrefix) {
			break
		}
		switch {
		case strings.HasPrefix(line, headerID):
			rev.ID = strings.TrimSpace(strings.TrimPrefix(line, headerID))
		case strings.HasPrefix(line, headerRevises):
			rev.Parent = strings.TrimSpace(strings.TrimPrefix(line, headerRevises))
		case strings.HasPrefix(line, headerMessage):
			rev.Message = strings.TrimSpace(strings.TrimPrefix(line, headerMessage))
		case strings.HasPrefix(line, headerDate):
			value := strings.TrimSpace(strings.TrimPrefix(line, headerDate))
			if value == "" {
				continue
			}
			created, err := time.Parse(time.RFC3339, value)
			if err != nil {
				return nil, fmt.Errorf("revision %s: invalid create date %q: %w", file, value, err)
			}
			rev.Created = created
		}
	}

	if rev.ID == "" {
		return nil, fmt.Errorf("revision %s: missing %q header", file, headerID)
	}
	if rev.Parent == rev.ID {
		return nil, fmt.Errorf("revision %s revises itself", rev.ID)
	}

	parsed, err := sqlparse.ParseMigration(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("revision %s: %w", file, err)
	}
	rev.UpStatements = parsed.UpStatements
	rev.DownStatements = parsed.DownStatements
	rev.NoTransactionUp = parsed.DisableTransactionUp
	rev.NoTransactionDown = parsed.DisableTransactionDown
	rev.Up = strings.Join(parsed.UpStatements, "")
	rev.Down = strings.Join(parsed.DownStatements, "")
	return rev, nil
}
