// downgrade.go implements the "quizctl downgrade" command.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/shinji-kodama/quizctl/internal/model"
)

// NewDowngradeCommand creates the "downgrade" cobra command.
//
// Relative targets start with a dash, so they must follow "--" to keep
// cobra from reading them as flags.
func NewDowngradeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "downgrade [-N|base|<revision>]",
		Short: "Revert applied revisions",
		Long: `Run the Down sections of applied revisions, newest first, until the
database is at the target. The target defaults to one revision back.

Examples:
  quizctl downgrade
  quizctl downgrade -- -2
  quizctl downgrade base`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := model.TargetPrevious
			if len(args) == 1 {
				target = args[0]
			}
			return runMove(cmd, target, false)
		},
	}
}
