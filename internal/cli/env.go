package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/quizctl/internal/config"
	"github.com/shinji-kodama/quizctl/internal/database"
	"github.com/shinji-kodama/quizctl/internal/logging"
	"github.com/shinji-kodama/quizctl/internal/migrate"
	"github.com/shinji-kodama/quizctl/internal/model"
)

// session bundles what every database command needs: the resolved
// configuration and a logger built from it.
type session struct {
	cfg *config.Config
	log *logging.Logger
}

// newSession loads the configuration named by --config and builds the
// logger. Callers must Close the session.
func newSession(cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := newLogger(cmd, cfg.Logging.Config)
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, log: log}, nil
}

// Close releases the log files.
func (s *session) Close() {
	_ = s.log.Close()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.Options{Path: configPath})
	if err != nil {
		return nil, model.WrapCLIError(model.ExitConfigError, "invalid configuration", err)
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, logConfig string) (*logging.Logger, error) {
	log, err := logging.New(logging.Options{
		ConfigPath: logConfig,
		Output:     cmd.ErrOrStderr(),
		Verbose:    verbose,
	})
	if err != nil {
		return nil, model.WrapCLIError(model.ExitConfigError, "invalid logging configuration", err)
	}
	return log, nil
}

// openDatabase connects to the configured database.
func (s *session) openDatabase(ctx context.Context) (*database.DB, error) {
	s.log.WithField("driver", s.cfg.Database.Driver).Debug("opening database")
	db, err := database.Open(ctx, s.cfg.DriverName(), s.cfg.Database.URL)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitDatabaseError, "cannot open database", err)
	}
	return db, nil
}

func (s *session) migrator(db *database.DB) *migrate.Migrator {
	return migrate.New(db, s.cfg.Migrations.Dir, s.log)
}

// migrationError wraps err for the migration commands. Errors that are
// already CLIErrors keep their exit code.
func migrationError(message string, err error) error {
	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		return err
	}
	return model.WrapCLIError(model.ExitMigrationError, message, err)
}
