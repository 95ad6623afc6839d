package model

import (
	"fmt"
	"strings"
)

// Driver identifies the SQL database the migration tool and the seeding
// step talk to.
type Driver string

const (
	// DriverSQLite stores the quiz database in a single file using the
	// pure-Go modernc.org/sqlite driver. This is the default.
	DriverSQLite Driver = "sqlite"

	// DriverPostgres connects to a PostgreSQL server via github.com/lib/pq.
	DriverPostgres Driver = "postgres"
)

// String returns the driver name as accepted by database/sql.Open.
func (d Driver) String() string {
	return string(d)
}

// IsValid reports whether d is one of the supported drivers.
func (d Driver) IsValid() bool {
	switch d {
	case DriverSQLite, DriverPostgres:
		return true
	default:
		return false
	}
}

// ParseDriver converts a string to a Driver. "postgresql" is accepted as an
// alias for "postgres".
func ParseDriver(s string) (Driver, error) {
	value := strings.ToLower(strings.TrimSpace(s))
	if value == "postgresql" {
		value = string(DriverPostgres)
	}
	driver := Driver(value)
	if !driver.IsValid() {
		return "", fmt.Errorf("invalid database driver: %q (valid: sqlite, postgres)", s)
	}
	return driver, nil
}

// Well-known revision targets for upgrade and downgrade.
const (
	// TargetHead is the newest revision in the chain.
	TargetHead = "head"

	// TargetBase is the empty database, before any revision.
	TargetBase = "base"

	// TargetPrevious steps one revision back from the current one.
	TargetPrevious = "-1"
)

// ExitCode defines the process exit codes of quizctl. Scripts can use them
// to tell configuration problems apart from database or migration failures.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitConfigError indicates the configuration file or environment is invalid.
	ExitConfigError ExitCode = 2

	// ExitDatabaseError indicates the database could not be opened or queried.
	ExitDatabaseError ExitCode = 3

	// ExitMigrationError indicates a revision could not be generated, applied
	// or rolled back.
	ExitMigrationError ExitCode = 4

	// ExitSeedError indicates the initial data could not be created.
	ExitSeedError ExitCode = 5

	// ExitDockerNotRunning indicates the Docker daemon is not accessible or
	// the database container could not be started.
	ExitDockerNotRunning ExitCode = 6

	// ExitNotReady indicates the database did not become reachable in time.
	ExitNotReady ExitCode = 7
)

// CLIError is an error that carries an exit code.
//
// A CLIError with an empty Message is silent: the root command exits with
// Code without printing anything. init uses this to pass the exit status of
// its last child process through unchanged.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface.
func (e *CLIError) Error() string {
	if e.Message == "" {
		if e.Err != nil {
			return e.Err.Error()
		}
		return fmt.Sprintf("exit status %d", e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// Silent reports whether the error should be reported only through the
// exit code.
func (e *CLIError) Silent() bool {
	return e.Message == "" && e.Err == nil
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}

// ExitWith returns a silent CLIError that makes the process exit with code.
func ExitWith(code int) *CLIError {
	return &CLIError{Code: ExitCode(code)}
}
