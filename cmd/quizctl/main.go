// Package main is the entry point for the quizctl CLI.
//
// This binary bootstraps the quiz service database. It delegates all
// functionality to the internal/cli package, which defines cobra commands.
package main

import (
	"github.com/maloquacious/semver"

	"github.com/shinji-kodama/quizctl/internal/cli"
)

// version can be overridden at build time with
//
//	-ldflags "-X main.version=1.2.3"
//
// Otherwise the semver below is used, tagged with the VCS commit the
// binary was built from.
var version = ""

var release = semver.Version{Minor: 1, PreRelease: "alpha", Build: semver.Commit()}

func main() {
	if version == "" {
		version = release.String()
	}
	cli.Version = version

	rootCmd := cli.NewRootCommand()
	cli.Execute(rootCmd)
}
