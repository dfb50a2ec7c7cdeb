// SPDX-License-Identifier: MPL-2.0

// Package container provides an abstraction layer for container runtimes
// (Docker/Podman) driven through their CLI binaries.
package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// EngineType identifies the container engine type.
type EngineType string

const (
	EngineTypeDocker EngineType = "docker"
	EngineTypePodman EngineType = "podman"
)

// ErrNoEngineAvailable is the sentinel error wrapped by EngineNotAvailableError.
var ErrNoEngineAvailable = errors.New("no container engine available")

type (
	// Engine defines the interface for container operations.
	Engine interface {
		// Name returns the engine name (docker or podman)
		Name() string
		// Available checks if the engine is available on the system
		Available() bool
		// Build builds an image from a build recipe file
		Build(ctx context.Context, opts BuildOptions) error
		// Run runs a command in a container and reports the exit code
		Run(ctx context.Context, opts RunOptions) (*RunResult, error)
		// ImageExists checks if an image exists locally
		ImageExists(ctx context.Context, image string) (bool, error)
		// ImageLabel reads a label value from a local image, empty when unset
		ImageLabel(ctx context.Context, image, label string) (string, error)
	}

	// BuildOptions contains options for building an image.
	BuildOptions struct {
		// ContextDir is the build context directory
		ContextDir string
		// Dockerfile is the recipe path, relative to ContextDir
		Dockerfile string
		// Tag is the image tag
		Tag string
		// Labels are attached to the image, used for fingerprint bookkeeping
		Labels map[string]string
		// Stdout is where to write build output
		Stdout io.Writer
		// Stderr is where to write build errors
		Stderr io.Writer
	}

	// RunOptions contains options for running a container.
	RunOptions struct {
		// Image is the image to run
		Image string
		// Args are appended after the image, following the image entrypoint
		Args []string
		// Env holds resolved KEY=VALUE entries, already in precedence order
		Env []string
		// Volumes are volume mounts in "host:container" format
		Volumes []string
		// Ports are port mappings in "host:container" format
		Ports []string
		// Network is the container network name, empty for the default
		Network string
		// Name is the container name
		Name string
		// Remove automatically removes the container after exit
		Remove bool
		// Interactive attaches stdin and allocates a TTY
		Interactive bool
		// GracePeriod bounds how long a cancelled run may keep going after
		// the engine client receives SIGTERM, before it is force-killed
		GracePeriod time.Duration
		// Stdin is the standard input
		Stdin io.Reader
		// Stdout is where to write standard output
		Stdout io.Writer
		// Stderr is where to write standard error
		Stderr io.Writer
	}

	// RunResult contains the result of running a container.
	RunResult struct {
		// ExitCode is the container's exit code
		ExitCode int
		// Error contains any failure to start or wait, nil for plain
		// non-zero exits
		Error error
	}

	// EngineNotAvailableError is returned when a container engine cannot
	// be used on this system.
	EngineNotAvailableError struct {
		Engine string
		Reason string
	}
)

// Error implements the error interface.
func (e *EngineNotAvailableError) Error() string {
	return fmt.Sprintf("container engine '%s' is not available: %s", e.Engine, e.Reason)
}

// Unwrap returns ErrNoEngineAvailable so callers can use errors.Is.
func (e *EngineNotAvailableError) Unwrap() error { return ErrNoEngineAvailable }

// AutoDetectEngine returns the first available engine, preferring Docker
// and falling back to Podman.
func AutoDetectEngine(opts ...BaseCLIEngineOption) (Engine, error) {
	if docker := NewDockerEngine(opts...); docker.Available() {
		return docker, nil
	}
	if podman := NewPodmanEngine(opts...); podman.Available() {
		return podman, nil
	}
	return nil, &EngineNotAvailableError{
		Engine: "docker",
		Reason: "neither docker nor podman is installed or accessible",
	}
}
