package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Exit codes reported for commands that never ran, following the shell
// convention.
const (
	ExitCannotExecute = 126
	ExitNotFound      = 127
)

// Step is one labelled command.
type Step struct {
	// Label is printed on its own line right before the command starts.
	Label string

	// Command is the executable followed by its arguments.
	Command []string
}

// String renders the command the way a user would type it.
func (s Step) String() string {
	return strings.Join(s.Command, " ")
}

// StepResult records how a step ended.
type StepResult struct {
	Step     Step
	ExitCode int
	Err      error
	Duration time.Duration
}

// Report is the ordered list of executed steps.
type Report struct {
	Results []StepResult
}

// ExitCode returns the exit code of the last executed step, or 0 when no
// step ran.
func (r Report) ExitCode() int {
	if len(r.Results) == 0 {
		return 0
	}
	return r.Results[len(r.Results)-1].ExitCode
}

// Failed returns the steps that exited non-zero.
func (r Report) Failed() []StepResult {
	var failed []StepResult
	for _, res := range r.Results {
		if res.ExitCode != 0 {
			failed = append(failed, res)
		}
	}
	return failed
}

// Runner executes steps sequentially. The zero value is not usable; call New.
type Runner struct {
	// Stdout receives the banners and the children's standard output.
	Stdout io.Writer

	// Stderr receives the children's standard error and start failures.
	Stderr io.Writer

	// Stdin is passed to every child.
	Stdin io.Reader

	// Dir is the working directory of the children. Empty means the
	// current directory.
	Dir string

	// Env is the children's environment. Nil means the current process
	// environment.
	Env []string

	// FailFast stops the run after the first step that exits non-zero.
	FailFast bool

	// Logger receives debug traces of each step.
	Logger logrus.FieldLogger
}

// New returns a Runner wired to the process's standard streams.
func New(logger logrus.FieldLogger) *Runner {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &Runner{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Stdin:  os.Stdin,
		Logger: logger,
	}
}

// Run executes steps in order and returns what happened to each.
//
// A step's outcome never stops later steps unless FailFast is set. The run
// does stop when ctx is cancelled, since an interrupted run should not
// start new children.
func (r *Runner) Run(ctx context.Context, steps []Step) Report {
	var report Report
	for _, step := range steps {
		if ctx.Err() != nil {
			r.Logger.WithError(ctx.Err()).Debug("run interrupted")
			break
		}

		res := r.runStep(ctx, step)
		report.Results = append(report.Results, res)

		if res.ExitCode != 0 && r.FailFast {
			r.Logger.WithField("step", step.Label).Debug("stopping after failed step")
			break
		}
	}
	return report
}

func (r *Runner) runStep(ctx context.Context, step Step) StepResult {
	fmt.Fprintln(r.Stdout, step.Label)

	log := r.Logger.WithFields(logrus.Fields{
		"step":    step.Label,
		"command": step.String(),
	})
	log.Debug("starting step")

	start := time.Now()
	code, err := r.execute(ctx, step.Command)
	res := StepResult{
		Step:     step,
		ExitCode: code,
		Err:      err,
		Duration: time.Since(start),
	}

	log.WithFields(logrus.Fields{
		"exit_code": res.ExitCode,
		"duration":  res.Duration.Round(time.Millisecond).String(),
	}).Debug("step finished")
	return res
}

// execute runs a single command and maps its outcome to an exit code.
// Commands that cannot be started report 126/127 and print the reason to
// Stderr, as a shell would.
func (r *Runner) execute(ctx context.Context, command []string) (int, error) {
	if len(command) == 0 {
		err := errors.New("empty command")
		fmt.Fprintf(r.Stderr, "runner: %v\n", err)
		return ExitNotFound, err
	}

	// #nosec G204 -- commands come from the built-in step list
	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	cmd.Stdin = r.Stdin
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	cmd.Dir = r.Dir
	cmd.Env = r.Env

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		if code < 0 {
			// Killed by a signal.
			code = 1
		}
		return code, err
	}

	fmt.Fprintf(r.Stderr, "%s: %v\n", command[0], err)
	if errors.Is(err, fs.ErrPermission) {
		return ExitCannotExecute, err
	}
	return ExitNotFound, err
}
