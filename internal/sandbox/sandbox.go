// SPDX-License-Identifier: MPL-2.0

// Package sandbox runs an analyzed package inside an isolated execution
// environment. The container path builds an image from a generated recipe
// and runs it through a container engine; the native path runs the
// entrypoint as a bare OS process on the invoking host.
package sandbox

import (
	"errors"
	"fmt"
	"time"

	"runbox-cli/internal/pack"
	"runbox-cli/internal/source"
)

// ExecutorKind selects the isolation mechanism for a run.
type ExecutorKind string

const (
	// KindDocker runs the package in a container, built on demand and
	// served by whichever compatible engine is available.
	KindDocker ExecutorKind = "docker"
	// KindNative runs the package directly on the host, without any
	// isolation boundary.
	KindNative ExecutorKind = "native"
)

// State tracks a run through its lifecycle. A run always starts in
// StatePrepared and ends in exactly one of the four terminal states.
type State string

const (
	StatePrepared  State = "prepared"
	StateBuilding  State = "building"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateTimedOut  State = "timed_out"
	StateCancelled State = "cancelled"
	StateFailed    State = "failed"
)

// Orchestration exit codes. A child's own exit code is always mirrored
// unchanged; these identify outcomes the orchestrator itself produced.
const (
	ExitOrchestration = 2
	ExitTimedOut      = 124
	ExitCancelled     = 130
)

var (
	// ErrConfiguration is the sentinel error wrapped by ConfigurationError.
	ErrConfiguration = errors.New("invalid run configuration")

	// ErrBuild is the sentinel error wrapped by BuildError.
	ErrBuild = errors.New("image build failed")
)

type (
	// RunConfiguration captures everything needed to reproduce a run. It
	// is assembled from flags on a fresh run and serialized verbatim when
	// the run is recorded as an alias.
	RunConfiguration struct {
		// Reference identifies the project to run
		Reference source.Reference `json:"reference"`
		// Executor selects the isolation mechanism
		Executor ExecutorKind `json:"executor"`
		// Overrides are field-level wins over detected metadata
		Overrides pack.Overrides `json:"overrides,omitempty"`
		// Autogen regenerates metadata before running when it is absent
		Autogen bool `json:"autogen,omitempty"`
		// Interactive attaches stdin and a terminal to the child
		Interactive bool `json:"interactive,omitempty"`
		// Network is the container network name, container path only
		Network string `json:"network,omitempty"`
		// FSMaps are host:target volume mounts, container path only
		FSMaps []string `json:"fs_maps,omitempty"`
		// PortMaps are host:target port bindings, container path only
		PortMaps []string `json:"port_maps,omitempty"`
		// EnvMaps are environment entries, either KEY=VALUE or a bare
		// KEY forwarded from the invoker's environment
		EnvMaps []string `json:"env_maps,omitempty"`
		// TimeoutSeconds bounds the run, zero means no limit
		TimeoutSeconds int `json:"timeout_seconds,omitempty"`
		// Args are positional arguments appended after the entrypoint
		Args []string `json:"args,omitempty"`
	}

	// ExecutionResult is the terminal outcome of a run.
	ExecutionResult struct {
		// ExitCode is the child's exit code for completed runs, or an
		// orchestration code for timed out / cancelled ones
		ExitCode int
		// State is the terminal state the run ended in
		State State
		// Duration measures from preparation to termination
		Duration time.Duration
	}

	// ConfigurationError reports a malformed run configuration. It is
	// always raised before any child process starts.
	ConfigurationError struct {
		Field  string
		Value  string
		Reason string
	}

	// BuildError reports a failed image build. The child never starts.
	BuildError struct {
		Image  string
		Reason string
	}
)

// ParseExecutorKind validates a user-supplied executor name.
func ParseExecutorKind(s string) (ExecutorKind, error) {
	switch ExecutorKind(s) {
	case KindDocker:
		return KindDocker, nil
	case KindNative:
		return KindNative, nil
	default:
		return "", &ConfigurationError{
			Field:  "executor",
			Value:  s,
			Reason: fmt.Sprintf("must be one of '%s', '%s'", KindDocker, KindNative),
		}
	}
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s '%s': %s", e.Field, e.Value, e.Reason)
}

// Unwrap returns ErrConfiguration so callers can use errors.Is.
func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// Error implements the error interface.
func (e *BuildError) Error() string {
	return fmt.Sprintf("building image '%s' failed: %s", e.Image, e.Reason)
}

// Unwrap returns ErrBuild so callers can use errors.Is.
func (e *BuildError) Unwrap() error { return ErrBuild }
