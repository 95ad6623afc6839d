package runner

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHelperProcess is not a real test. It is the child process started by
// helperCommand: it prints its message and exits with the requested code.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	if len(args) < 3 {
		fmt.Fprintln(os.Stderr, "helper: missing arguments")
		os.Exit(2)
	}

	code, err := strconv.Atoi(args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, "helper: bad exit code")
		os.Exit(2)
	}
	fmt.Println(args[2])
	if code != 0 {
		fmt.Fprintf(os.Stderr, "%s failed\n", args[2])
	}
	os.Exit(code)
}

// helperCommand returns a command that re-runs the test binary as a child
// which prints output and exits with code.
func helperCommand(code int, output string) []string {
	return []string{os.Args[0], "-test.run=TestHelperProcess", "--", strconv.Itoa(code), output}
}

func newTestRunner() (*Runner, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	r := New(nil)
	r.Stdout = &stdout
	r.Stderr = &stderr
	r.Stdin = strings.NewReader("")
	r.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1")
	return r, &stdout, &stderr
}

func TestRun_PrintsBannerBeforeEachStep(t *testing.T) {
	r, stdout, _ := newTestRunner()

	report := r.Run(context.Background(), []Step{
		{Label: "Make migrations", Command: helperCommand(0, "revision written")},
		{Label: "Run migrations", Command: helperCommand(0, "upgraded")},
		{Label: "Create initial data in DB", Command: helperCommand(0, "seeded")},
	})

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	assert.Equal(t, []string{
		"Make migrations",
		"revision written",
		"Run migrations",
		"upgraded",
		"Create initial data in DB",
		"seeded",
	}, lines)

	require.Len(t, report.Results, 3)
	assert.Equal(t, 0, report.ExitCode())
	assert.Empty(t, report.Failed())
}

func TestRun_ContinuesAfterFailure(t *testing.T) {
	r, stdout, stderr := newTestRunner()

	report := r.Run(context.Background(), []Step{
		{Label: "one", Command: helperCommand(3, "first")},
		{Label: "two", Command: helperCommand(0, "second")},
		{Label: "three", Command: helperCommand(0, "third")},
	})

	require.Len(t, report.Results, 3)
	assert.Equal(t, 3, report.Results[0].ExitCode)
	assert.Error(t, report.Results[0].Err)
	assert.Equal(t, 0, report.ExitCode(), "overall status is the last step's status")
	assert.Len(t, report.Failed(), 1)

	assert.Contains(t, stdout.String(), "third")
	assert.Contains(t, stderr.String(), "first failed")
}

func TestRun_ExitCodeIsLastStep(t *testing.T) {
	r, _, _ := newTestRunner()

	report := r.Run(context.Background(), []Step{
		{Label: "one", Command: helperCommand(0, "first")},
		{Label: "two", Command: helperCommand(4, "second")},
	})

	assert.Equal(t, 4, report.ExitCode())
}

func TestRun_MissingExecutable(t *testing.T) {
	r, stdout, stderr := newTestRunner()
	missing := filepath.Join(t.TempDir(), "no-such-migration-tool")

	report := r.Run(context.Background(), []Step{
		{Label: "Make migrations", Command: []string{missing, "revision"}},
		{Label: "Run migrations", Command: helperCommand(0, "upgraded")},
	})

	require.Len(t, report.Results, 2)
	assert.Equal(t, ExitNotFound, report.Results[0].ExitCode)
	assert.Error(t, report.Results[0].Err)
	assert.Contains(t, stderr.String(), missing)

	assert.Equal(t, "Make migrations\nRun migrations\nupgraded\n", stdout.String())
	assert.Equal(t, 0, report.ExitCode())
}

func TestRun_EmptyCommand(t *testing.T) {
	r, stdout, _ := newTestRunner()

	report := r.Run(context.Background(), []Step{{Label: "nothing"}})

	require.Len(t, report.Results, 1)
	assert.Equal(t, ExitNotFound, report.ExitCode())
	assert.Equal(t, "nothing\n", stdout.String())
}

func TestRun_FailFast(t *testing.T) {
	r, stdout, _ := newTestRunner()
	r.FailFast = true

	report := r.Run(context.Background(), []Step{
		{Label: "one", Command: helperCommand(2, "first")},
		{Label: "two", Command: helperCommand(0, "second")},
	})

	require.Len(t, report.Results, 1)
	assert.Equal(t, 2, report.ExitCode())
	assert.NotContains(t, stdout.String(), "two")
}

func TestRun_CancelledContext(t *testing.T) {
	r, stdout, _ := newTestRunner()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := r.Run(ctx, []Step{
		{Label: "one", Command: helperCommand(0, "first")},
	})

	assert.Empty(t, report.Results)
	assert.Empty(t, stdout.String())
	assert.Equal(t, 0, report.ExitCode())
}

func TestStep_String(t *testing.T) {
	s := Step{Label: "Run migrations", Command: []string{"quizctl", "upgrade", "head"}}
	assert.Equal(t, "quizctl upgrade head", s.String())
}
