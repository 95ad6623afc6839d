package docker

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/sirupsen/logrus"

	"github.com/shinji-kodama/quizctl/internal/model"
)

// defaultPollInterval is how often EnsureRunning re-inspects the container
// while it is starting.
const defaultPollInterval = 500 * time.Millisecond

// ContainerAPI is the subset of the Docker API that EnsureRunning uses.
// *Client satisfies it; tests substitute a fake.
type ContainerAPI interface {
	ContainerInspect(ctx context.Context, nameOrID string) (container.InspectResponse, error)
	ContainerStart(ctx context.Context, nameOrID string, opts container.StartOptions) error
}

// Readiness is the outcome of inspecting a container once.
type Readiness int

const (
	// Ready means the container is running and healthy (or has no
	// health check).
	Ready Readiness = iota

	// Starting means the container is on its way up: restarting, or
	// running with a health check that has not passed yet.
	Starting

	// Stopped means the container exists but is not running. It can be
	// started with ContainerStart.
	Stopped

	// Broken means the container cannot become ready without user action,
	// e.g. it is paused, being removed, or dead.
	Broken
)

// String returns a human-readable name for the readiness state.
func (r Readiness) String() string {
	switch r {
	case Ready:
		return "ready"
	case Starting:
		return "starting"
	case Stopped:
		return "stopped"
	default:
		return "broken"
	}
}

// Assess maps an inspect response to a readiness state together with the
// Docker status that produced it.
//
// Docker status strings are compared as plain strings so the mapping does
// not depend on how a given SDK version types them.
func Assess(resp container.InspectResponse) (Readiness, string) {
	if resp.ContainerJSONBase == nil || resp.State == nil {
		return Broken, "unknown"
	}
	state := resp.State
	status := string(state.Status)

	switch status {
	case "running":
		if state.Health == nil {
			return Ready, status
		}
		health := string(state.Health.Status)
		switch health {
		case "healthy", "none", "":
			return Ready, status
		default:
			// "starting" and "unhealthy" both keep the wait going; an
			// unhealthy database often recovers once it finishes init.
			return Starting, status + " (" + health + ")"
		}
	case "restarting":
		return Starting, status
	case "created", "exited":
		return Stopped, status
	default:
		return Broken, status
	}
}

// EnsureRunning makes sure the named container is running and healthy.
//
// A stopped container is started once; afterwards the container is polled
// every interval until it is ready or ctx is done. Callers bound the wait
// with context.WithTimeout.
//
// Errors are model.CLIError values: ExitDockerNotRunning when the
// container is missing, broken, or cannot be started, and ExitNotReady
// when ctx expires first.
func EnsureRunning(ctx context.Context, api ContainerAPI, name string, interval time.Duration, logger logrus.FieldLogger) error {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	log := logger.WithField("container", name)

	started := false
	for {
		resp, err := api.ContainerInspect(ctx, name)
		if err != nil {
			if client.IsErrNotFound(err) {
				return model.WrapCLIError(
					model.ExitDockerNotRunning,
					fmt.Sprintf("database container %q not found", name),
					err,
				)
			}
			if ctx.Err() != nil {
				return notReady(name, ctx.Err())
			}
			return model.WrapCLIError(
				model.ExitDockerNotRunning,
				fmt.Sprintf("failed to inspect container %q", name),
				err,
			)
		}

		readiness, status := Assess(resp)
		log.WithField("status", status).Debugf("container is %s", readiness)

		switch readiness {
		case Ready:
			return nil
		case Broken:
			return model.NewCLIError(
				model.ExitDockerNotRunning,
				fmt.Sprintf("database container %q is %s", name, status),
			)
		case Stopped:
			if started {
				// It went down again after we started it.
				return model.NewCLIError(
					model.ExitDockerNotRunning,
					fmt.Sprintf("database container %q stopped right after starting (%s)", name, status),
				)
			}
			log.Info("Starting database container")
			if err := api.ContainerStart(ctx, name, container.StartOptions{}); err != nil {
				return model.WrapCLIError(
					model.ExitDockerNotRunning,
					fmt.Sprintf("failed to start container %q", name),
					err,
				)
			}
			started = true
			continue
		}

		select {
		case <-ctx.Done():
			return notReady(name, ctx.Err())
		case <-time.After(interval):
		}
	}
}

func notReady(name string, err error) error {
	return model.WrapCLIError(
		model.ExitNotReady,
		fmt.Sprintf("database container %q did not become ready", name),
		err,
	)
}
