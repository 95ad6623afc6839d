// Package model defines the shared value types of the quizctl CLI.
//
// This package has no dependencies outside the standard library. It holds
// the exit codes (ExitCode) and the CLIError type that every command
// returns so the root command can translate failures into process exit
// statuses, plus the small enumerations (database drivers, upgrade targets)
// that are parsed from flags and configuration.
package model
