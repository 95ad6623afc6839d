// revision.go implements the "quizctl revision" command.
//
// With --autogenerate the declared quiz models are compared with the live
// database and the difference is written as a new revision file. Without
// it an empty revision is written for hand-written SQL.
package cli

import (
	"errors"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/quizctl/internal/database"
	"github.com/shinji-kodama/quizctl/internal/migrate"
	"github.com/shinji-kodama/quizctl/internal/model"
)

type revisionFlags struct {
	message      string
	autogenerate bool
}

// NewRevisionCommand creates the "revision" cobra command.
func NewRevisionCommand() *cobra.Command {
	flags := &revisionFlags{}

	cmd := &cobra.Command{
		Use:   "revision",
		Short: "Create a new revision file",
		Long: `Create a new revision on top of the current head.

With --autogenerate the database must be at the head revision. When the
schema already matches the quiz models no file is written.

Examples:
  quizctl revision --autogenerate -m init
  quizctl revision -m "backfill quiz titles"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRevision(cmd, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.message, "message", "m", "", "Revision message")
	cmd.Flags().BoolVar(&flags.autogenerate, "autogenerate", false, "Diff the quiz models against the database")
	_ = cmd.MarkFlagRequired("message")

	return cmd
}

func runRevision(cmd *cobra.Command, flags *revisionFlags) error {
	ctx := cmd.Context()
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	var db *database.DB
	if flags.autogenerate {
		if db, err = s.openDatabase(ctx); err != nil {
			return err
		}
		defer db.Close()
	}

	rev, err := s.migrator(db).Revision(ctx, flags.message, flags.autogenerate)
	switch {
	case errors.Is(err, migrate.ErrNoChanges):
		s.log.Info("No changes in schema detected")
		return nil
	case errors.Is(err, migrate.ErrNotUpToDate):
		return model.NewCLIError(model.ExitMigrationError, "Target database is not up to date")
	case err != nil:
		return migrationError("cannot create revision", err)
	}

	if IsJSONOutput() {
		printJSON(cmd, revisionJSON(rev, s.cfg.Migrations.Dir))
	}
	return nil
}

type revisionOut struct {
	ID      string `json:"id"`
	Parent  string `json:"parent,omitempty"`
	Message string `json:"message"`
	Path    string `json:"path"`
}

func revisionJSON(rev *migrate.Revision, dir string) revisionOut {
	return revisionOut{
		ID:      rev.ID,
		Parent:  rev.Parent,
		Message: rev.Message,
		Path:    filepath.Join(dir, rev.File),
	}
}
