// upgrade.go implements the "quizctl upgrade" command.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/shinji-kodama/quizctl/internal/migrate"
	"github.com/shinji-kodama/quizctl/internal/model"
)

// NewUpgradeCommand creates the "upgrade" cobra command.
func NewUpgradeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "upgrade [head|<revision>]",
		Short: "Apply pending revisions",
		Long: `Apply every revision between the current one and the target, oldest
first. Each revision runs in its own transaction. The target defaults to
head; a unique prefix of a revision id is accepted.

Examples:
  quizctl upgrade
  quizctl upgrade head
  quizctl upgrade 1a2b3c`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := model.TargetHead
			if len(args) == 1 {
				target = args[0]
			}
			return runMove(cmd, target, true)
		},
	}
}

// runMove upgrades or downgrades to target and reports the revisions that
// were applied or reverted.
func runMove(cmd *cobra.Command, target string, up bool) error {
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

	m := s.migrator(db)
	var (
		moved []*migrate.Revision
		verb  = "upgrade"
	)
	if up {
		moved, err = m.Upgrade(ctx, target)
	} else {
		verb = "downgrade"
		moved, err = m.Downgrade(ctx, target)
	}
	if err != nil {
		return migrationError(verb+" failed", err)
	}
	if len(moved) == 0 {
		s.log.Debugf("nothing to %s", verb)
	}

	if IsJSONOutput() {
		out := make([]revisionOut, 0, len(moved))
		for _, rev := range moved {
			out = append(out, revisionJSON(rev, s.cfg.Migrations.Dir))
		}
		printJSON(cmd, map[string]any{"action": verb, "revisions": out})
	}
	return nil
}
