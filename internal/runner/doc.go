// Package runner executes a fixed list of external commands one after the
// other, printing a status banner before each.
//
// The runner is deliberately forgiving: a step that fails, or that cannot
// even be started, does not prevent the following steps from running.
// The overall exit status is the one of the last step executed, the same
// as a shell script without "set -e". Setting Runner.FailFast switches to
// stop-on-first-failure.
package runner
