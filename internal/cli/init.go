// init.go implements the "quizctl init" command.
//
// init bootstraps a database in three steps, each run as a separate child
// process of this same binary:
//
//	Make migrations            quizctl revision --autogenerate -m init
//	Run migrations             quizctl upgrade head
//	Create initial data in DB  quizctl seed
//
// The banner is printed right before each child starts. A failing step
// does not stop the next one (unless --fail-fast is given) and init exits
// with the exit code of the last step, so a rerun against an initialised
// database is harmless.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/shinji-kodama/quizctl/internal/config"
	"github.com/shinji-kodama/quizctl/internal/docker"
	"github.com/shinji-kodama/quizctl/internal/model"
	"github.com/shinji-kodama/quizctl/internal/port"
	"github.com/shinji-kodama/quizctl/internal/runner"
)

// Step banners, printed verbatim.
const (
	bannerMakeMigrations = "Make migrations"
	bannerRunMigrations  = "Run migrations"
	bannerInitialData    = "Create initial data in DB"
)

// executable resolves the binary init re-executes. Tests replace it.
var executable = os.Executable

type initFlags struct {
	failFast bool
}

// NewInitCommand creates the "init" cobra command.
func NewInitCommand() *cobra.Command {
	flags := &initFlags{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Generate and apply migrations, then create initial data",
		Long: `Bootstrap the quiz database:

  1. Make migrations            (quizctl revision --autogenerate -m init)
  2. Run migrations             (quizctl upgrade head)
  3. Create initial data in DB  (quizctl seed)

Every step runs even when an earlier one fails, unless --fail-fast is set.
The exit code is the one of the last step that ran.

When database.container or database.wait_address is configured, init first
waits for the database to come up.

With --json the banners and the output of the steps go to stderr and
stdout carries only the JSON step report.

Examples:
  quizctl init
  quizctl init --config deploy/quizctl.yaml
  quizctl init --fail-fast`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, flags)
		},
	}

	cmd.Flags().BoolVar(&flags.failFast, "fail-fast", false, "Stop after the first failing step")

	return cmd
}

// bootstrapSteps returns the three init steps for the binary at self.
// Global flags that change how the children behave are forwarded.
func bootstrapSteps(self string) []runner.Step {
	var global []string
	if configPath != "" {
		global = append(global, "--config", configPath)
	}
	if verbose {
		global = append(global, "--verbose")
	}

	command := func(args ...string) []string {
		out := append([]string{self}, args...)
		return append(out, global...)
	}

	return []runner.Step{
		{Label: bannerMakeMigrations, Command: command("revision", "--autogenerate", "-m", "init")},
		{Label: bannerRunMigrations, Command: command("upgrade", model.TargetHead)},
		{Label: bannerInitialData, Command: command("seed")},
	}
}

func runInit(cmd *cobra.Command, flags *initFlags) error {
	ctx := cmd.Context()

	// init itself does not need a valid configuration: the children load
	// it again and report their own errors. Without one there is simply
	// nothing to wait for.
	var cfg *config.Config
	logConfig := config.DefaultConfig().Logging.Config
	loaded, cfgErr := loadConfig()
	if cfgErr == nil {
		cfg = loaded
		logConfig = cfg.Logging.Config
	}

	log, err := newLogger(cmd, logConfig)
	if err != nil {
		return err
	}
	defer func() { _ = log.Close() }()

	if cfgErr != nil {
		log.WithError(cfgErr).Warn("configuration not loaded; skipping database readiness checks")
	} else if err := waitForDatabase(ctx, cfg.Database, log); err != nil {
		return err
	}

	self, err := executable()
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "cannot locate the quizctl executable", err)
	}

	r := runner.New(log)
	r.Stdout = cmd.OutOrStdout()
	if IsJSONOutput() {
		// Keep stdout for the JSON report alone.
		r.Stdout = cmd.ErrOrStderr()
	}
	r.Stderr = cmd.ErrOrStderr()
	r.Stdin = cmd.InOrStdin()
	r.FailFast = flags.failFast

	report := r.Run(ctx, bootstrapSteps(self))

	if IsJSONOutput() {
		printJSON(cmd, reportJSON(report))
	}

	if code := report.ExitCode(); code != 0 {
		return model.ExitWith(code)
	}
	if ctx.Err() != nil {
		return model.WrapCLIError(model.ExitGeneralError, "interrupted", ctx.Err())
	}
	return nil
}

// waitForDatabase blocks until the configured container is running and
// the configured address accepts connections. Both waits share
// db.WaitTimeout; zero means no limit.
func waitForDatabase(ctx context.Context, db config.DatabaseConfig, log logrus.FieldLogger) error {
	if db.Container == "" && db.WaitAddress == "" {
		return nil
	}

	if db.WaitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, db.WaitTimeout)
		defer cancel()
	}

	if db.Container != "" {
		cli, err := docker.NewClient()
		if err != nil {
			return err
		}
		defer func() { _ = cli.Close() }()

		if err := cli.Ping(ctx); err != nil {
			return err
		}
		log.WithField("container", db.Container).Info("Waiting for database container")
		if err := docker.EnsureRunning(ctx, cli, db.Container, 0, log); err != nil {
			return err
		}
	}

	if db.WaitAddress != "" {
		log.WithField("address", db.WaitAddress).Info("Waiting for database")
		if err := port.NewProber().Wait(ctx, db.WaitAddress); err != nil {
			return model.WrapCLIError(model.ExitNotReady,
				fmt.Sprintf("database at %s is not reachable", db.WaitAddress), err)
		}
	}
	return nil
}

type stepJSON struct {
	Label      string   `json:"label"`
	Command    []string `json:"command"`
	ExitCode   int      `json:"exitCode"`
	DurationMS int64    `json:"durationMs"`
	Error      string   `json:"error,omitempty"`
}

func reportJSON(report runner.Report) map[string]any {
	steps := make([]stepJSON, 0, len(report.Results))
	for _, res := range report.Results {
		s := stepJSON{
			Label:      res.Step.Label,
			Command:    res.Step.Command,
			ExitCode:   res.ExitCode,
			DurationMS: res.Duration.Milliseconds(),
		}
		if res.Err != nil {
			s.Error = res.Err.Error()
		}
		steps = append(steps, s)
	}
	return map[string]any{
		"steps":    steps,
		"exitCode": report.ExitCode(),
	}
}
