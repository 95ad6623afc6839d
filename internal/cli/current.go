// current.go implements the "quizctl current" command.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewCurrentCommand creates the "current" cobra command.
func NewCurrentCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "current",
		Short: "Show the revision the database is at",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCurrent(cmd)
		},
	}
}

func runCurrent(cmd *cobra.Command) error {
	ctx := cmd.Context()
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	db, err := s.openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	history, err := s.migrator(db).History(ctx)
	if err != nil {
		return migrationError("cannot read revisions", err)
	}

	for _, entry := range history {
		if !entry.Current {
			continue
		}
		if IsJSONOutput() {
			printJSON(cmd, map[string]any{"current": entry.Revision.ID, "head": entry.Head})
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), entry.Revision.ID+headMarker(entry.Head))
		return nil
	}

	if IsJSONOutput() {
		printJSON(cmd, map[string]any{"current": nil, "head": len(history) == 0})
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), "<base>")
	return nil
}

func headMarker(head bool) string {
	if head {
		return " (head)"
	}
	return ""
}
