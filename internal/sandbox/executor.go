// SPDX-License-Identifier: MPL-2.0

package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"runbox-cli/internal/container"
	"runbox-cli/internal/pack"
)

// ExecCommandFunc is the function signature for creating exec.Cmd.
// This allows injection of mock implementations for testing.
type ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

type (
	// Executor drives a run through its state machine: prepare and
	// validate, build when the container path needs it, run the child,
	// and classify the terminal outcome.
	Executor struct {
		kind        ExecutorKind
		engine      container.Engine
		gracePeriod time.Duration
		execCommand ExecCommandFunc
		lookupEnv   LookupEnvFunc

		stdin  io.Reader
		stdout io.Writer
		stderr io.Writer

		state State
	}

	// Option configures an Executor.
	Option func(*Executor)

	// Request bundles a materialized project with the configuration for
	// one run of it.
	Request struct {
		// Root is the materialized project directory
		Root string
		// Remote is set when Root was fetched from a remote source
		Remote bool
		// Pack is the effective package record, overrides already applied
		Pack *pack.Package
		// Config is the run configuration
		Config *RunConfiguration
	}
)

// WithEngine sets the container engine, bypassing auto-detection.
func WithEngine(engine container.Engine) Option {
	return func(e *Executor) { e.engine = engine }
}

// WithGracePeriod bounds how long a cancelled or timed out child may
// keep running after the graceful termination request.
func WithGracePeriod(d time.Duration) Option {
	return func(e *Executor) { e.gracePeriod = d }
}

// WithStdio redirects the run's standard streams.
func WithStdio(stdin io.Reader, stdout, stderr io.Writer) Option {
	return func(e *Executor) {
		e.stdin = stdin
		e.stdout = stdout
		e.stderr = stderr
	}
}

// WithSandboxExecCommand sets a custom exec command function for testing.
func WithSandboxExecCommand(fn ExecCommandFunc) Option {
	return func(e *Executor) { e.execCommand = fn }
}

// WithLookupEnv sets a custom environment lookup function for testing.
func WithLookupEnv(fn LookupEnvFunc) Option {
	return func(e *Executor) { e.lookupEnv = fn }
}

// NewExecutor creates an executor for the given isolation kind.
func NewExecutor(kind ExecutorKind, opts ...Option) *Executor {
	e := &Executor{
		kind:        kind,
		gracePeriod: 10 * time.Second,
		execCommand: exec.CommandContext,
		lookupEnv:   os.LookupEnv,
		stdin:       os.Stdin,
		stdout:      os.Stdout,
		stderr:      os.Stderr,
		state:       StatePrepared,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State reports the executor's current lifecycle state.
func (e *Executor) State() State { return e.state }

// Execute runs the request to completion. The child's exit code is
// mirrored in the result for completed runs; timed out and cancelled
// runs carry their own distinct codes. Errors are orchestration
// failures: the configuration was rejected, the build failed, or the
// child could not be started at all.
func (e *Executor) Execute(ctx context.Context, req *Request) (*ExecutionResult, error) {
	start := time.Now()

	env, err := e.prepare(req)
	if err != nil {
		return e.terminal(StateFailed, ExitOrchestration, start), err
	}

	runCtx := ctx
	cancel := context.CancelFunc(func() {})
	if req.Config.TimeoutSeconds > 0 {
		timeout := time.Duration(req.Config.TimeoutSeconds) * time.Second
		runCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	var exitCode int
	switch e.kind {
	case KindNative:
		exitCode, err = e.runNative(runCtx, req, env)
	default:
		exitCode, err = e.runContainer(runCtx, req, env)
	}

	// The child has exited one way or another; decide which of the three
	// completion sources fired first.
	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		slog.Debug("run timed out", "timeout_seconds", req.Config.TimeoutSeconds)
		return e.terminal(StateTimedOut, ExitTimedOut, start), nil
	case ctx.Err() != nil:
		slog.Debug("run cancelled")
		return e.terminal(StateCancelled, ExitCancelled, start), nil
	case err != nil:
		return e.terminal(StateFailed, ExitOrchestration, start), err
	}
	return e.terminal(StateCompleted, exitCode, start), nil
}

// prepare validates the run configuration and resolves the child's
// environment entries. Every rejection happens here, before any child
// process exists.
func (e *Executor) prepare(req *Request) ([]string, error) {
	e.setState(StatePrepared)
	cfg := req.Config

	if req.Pack == nil || !req.Pack.Complete() {
		return nil, &ConfigurationError{
			Field:  "package",
			Reason: "type, entrypoint and interpreter are all required; supply overrides or regenerate metadata",
		}
	}

	if e.kind == KindNative {
		if len(cfg.FSMaps) > 0 {
			return nil, &ConfigurationError{
				Field:  "fs-map",
				Value:  strings.Join(cfg.FSMaps, ","),
				Reason: "volume mounts require the docker executor",
			}
		}
		if len(cfg.PortMaps) > 0 {
			return nil, &ConfigurationError{
				Field:  "port-map",
				Value:  strings.Join(cfg.PortMaps, ","),
				Reason: "port bindings require the docker executor",
			}
		}
		if cfg.Network != "" {
			return nil, &ConfigurationError{
				Field:  "network",
				Value:  cfg.Network,
				Reason: "container networks require the docker executor",
			}
		}
	}

	for _, m := range cfg.FSMaps {
		if err := validateMapping("fs-map", m, false); err != nil {
			return nil, err
		}
	}
	for _, p := range cfg.PortMaps {
		if err := validateMapping("port-map", p, true); err != nil {
			return nil, err
		}
	}

	return ResolveEnv(cfg.EnvMaps, e.lookupEnv)
}

func (e *Executor) setState(s State) {
	slog.Debug("sandbox state transition", "from", e.state, "to", s)
	e.state = s
}

func (e *Executor) terminal(s State, exitCode int, start time.Time) *ExecutionResult {
	e.setState(s)
	return &ExecutionResult{
		ExitCode: exitCode,
		State:    s,
		Duration: time.Since(start),
	}
}

// validateMapping checks a host:target pair. Port mappings additionally
// require both sides to be numeric.
func validateMapping(field, entry string, numeric bool) error {
	host, target, ok := strings.Cut(entry, ":")
	if !ok || host == "" || target == "" {
		return &ConfigurationError{
			Field:  field,
			Value:  entry,
			Reason: "must be a 'host:target' pair",
		}
	}
	if numeric {
		for _, side := range []string{host, target} {
			if _, err := strconv.Atoi(side); err != nil {
				return &ConfigurationError{
					Field:  field,
					Value:  entry,
					Reason: fmt.Sprintf("'%s' is not a valid port number", side),
				}
			}
		}
	}
	return nil
}

// ImageName derives a deterministic image reference for a project root
// and tag, so rebuilding the same project overwrites its previous image
// instead of accumulating new ones.
func ImageName(root, tag string) string {
	if tag == "" {
		tag = "latest"
	}
	name := strings.NewReplacer("/", "-", ".", "-", "\\", "-", ":", "-").Replace(root)
	return fmt.Sprintf("runbox%s:%s", strings.ToLower(name), strings.ToLower(tag))
}
