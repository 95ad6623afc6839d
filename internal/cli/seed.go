// seed.go implements the "quizctl seed" command, which
// creates the initial data of a migrated database.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/shinji-kodama/quizctl/internal/model"
	"github.com/shinji-kodama/quizctl/internal/seed"
)

// NewSeedCommand creates the "seed" cobra command.
func NewSeedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create initial data (the first superuser)",
		Long: `Create the first superuser from FIRST_SUPERUSER_EMAIL and
FIRST_SUPERUSER_PASSWORD unless a user with that email already exists.
The schema must have been upgraded first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd)
		},
	}
}

func runSeed(cmd *cobra.Command) error {
	ctx := cmd.Context()
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.cfg.ValidateSuperuser(); err != nil {
		return model.WrapCLIError(model.ExitConfigError, "invalid superuser settings", err)
	}

	db, err := s.openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	su := seed.Superuser{Email: s.cfg.Superuser.Email, Password: s.cfg.Superuser.Password}
	if err := seed.Run(ctx, db, su, s.log); err != nil {
		return model.WrapCLIError(model.ExitSeedError, "initial data failed", err)
	}
	return nil
}
