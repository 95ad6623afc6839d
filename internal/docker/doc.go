// Package docker makes sure the database container is up before quizctl
// touches the database.
//
// This package handles:
//   - Docker client initialization with automatic socket detection
//     (Linux, macOS, Windows)
//   - Inspecting the configured database container and starting it when
//     it is stopped
//   - Waiting until the container is running and, when it declares a
//     HEALTHCHECK, healthy
//
// The package uses github.com/docker/docker/client as the underlying
// Docker SDK, with version negotiation enabled for broad compatibility.
package docker
