// history.go implements the "quizctl history" command.
//
// Revisions are listed newest first, one per line:
//
//	1a2b3c4d5e6f -> 9f8e7d6c5b4a (head) (current), add quiz tags
//	<base> -> 1a2b3c4d5e6f, init
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/quizctl/internal/database"
	"github.com/shinji-kodama/quizctl/internal/migrate"
)

type historyFlags struct {
	offline bool
}

// NewHistoryCommand creates the "history" cobra command.
func NewHistoryCommand() *cobra.Command {
	flags := &historyFlags{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List revisions from head to base",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, flags)
		},
	}

	cmd.Flags().BoolVar(&flags.offline, "offline", false, "Do not connect to the database; omit the current marker")

	return cmd
}

func runHistory(cmd *cobra.Command, flags *historyFlags) error {
	ctx := cmd.Context()
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	var db *database.DB
	if !flags.offline {
		if db, err = s.openDatabase(ctx); err != nil {
			return err
		}
		defer db.Close()
	}

	history, err := s.migrator(db).History(ctx)
	if err != nil {
		return migrationError("cannot read revisions", err)
	}

	if IsJSONOutput() {
		type entryJSON struct {
			revisionOut
			Applied bool `json:"applied"`
			Current bool `json:"current"`
			Head    bool `json:"head"`
		}
		out := make([]entryJSON, 0, len(history))
		for i := len(history) - 1; i >= 0; i-- {
			e := history[i]
			out = append(out, entryJSON{
				revisionOut: revisionJSON(e.Revision, s.cfg.Migrations.Dir),
				Applied:     e.Applied,
				Current:     e.Current,
				Head:        e.Head,
			})
		}
		printJSON(cmd, out)
		return nil
	}

	for i := len(history) - 1; i >= 0; i-- {
		fmt.Fprintln(cmd.OutOrStdout(), formatHistoryLine(history[i]))
	}
	return nil
}

func formatHistoryLine(e migrate.HistoryEntry) string {
	parent := e.Revision.Parent
	if parent == "" {
		parent = "<base>"
	}
	line := fmt.Sprintf("%s -> %s%s", parent, e.Revision.ID, headMarker(e.Head))
	if e.Current {
		line += " (current)"
	}
	return line + ", " + e.Revision.Message
}
