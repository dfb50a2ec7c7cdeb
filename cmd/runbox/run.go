// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"runbox-cli/internal/alias"
	"runbox-cli/internal/meta"
	"runbox-cli/internal/sandbox"
	"runbox-cli/internal/source"

	"github.com/spf13/cobra"
)

var (
	runSubDir      string
	runTag         string
	runRefresh     bool
	runAliasName   string
	runExecutor    string
	runAutogen     bool
	runInteractive bool
	runNetwork     string
	runFSMaps      []string
	runPortMaps    []string
	runEnvMaps     []string
	runTimeout     int

	runCmd = &cobra.Command{
		Use:   "run <root|alias> [-- args]",
		Short: "Run a project in an isolated execution environment",
		Long: `Run a project to completion inside a sandbox. The target is a local
directory, a remote git repository, or the name of a recorded alias.
Arguments after -- are passed to the project's entrypoint.

The docker executor builds a container image on first run and reuses it
while the project's type, entrypoint and dependencies are unchanged. The
native executor runs the entrypoint directly on the host and rejects
isolation-only flags such as --fs-map and --port-map.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runProject,
	}
)

func init() {
	runCmd.Flags().StringVar(&runSubDir, "sub-dir", "", "narrow the project root to a sub-directory")
	runCmd.Flags().StringVar(&runTag, "tag", "", "tag to fetch for remote references (default \"latest\")")
	runCmd.Flags().BoolVar(&runRefresh, "refresh", false, "refetch the source and rebuild the image")
	runCmd.Flags().StringVar(&runAliasName, "alias", "", "record this run under an alias name on success")
	runCmd.Flags().StringVar(&runExecutor, "executor", "", "executor to use (docker|native)")
	runCmd.Flags().BoolVar(&runAutogen, "autogen", false, "generate metadata automatically when it is missing")
	runCmd.Flags().BoolVarP(&runInteractive, "interactive", "i", false, "attach stdin and a terminal to the child")
	runCmd.Flags().StringVar(&runNetwork, "network", "", "container network name")
	runCmd.Flags().StringArrayVar(&runFSMaps, "fs-map", nil, "host:target volume mount (repeatable)")
	runCmd.Flags().StringArrayVar(&runPortMaps, "port-map", nil, "host:target port binding (repeatable)")
	runCmd.Flags().StringArrayVar(&runEnvMaps, "env-map", nil, "KEY=VALUE or bare KEY environment entry (repeatable)")
	runCmd.Flags().IntVar(&runTimeout, "timeout", 0, "abort the run after this many seconds")
}

func runProject(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	target := args[0]
	childArgs := positionalArgs(cmd, args)

	store := alias.NewStore(cfg.RootDir)
	runCfg, err := resolveRunConfiguration(store, target, childArgs)
	if err != nil {
		return orchestrationError(err)
	}

	resolved, err := newResolver().Resolve(ctx, runCfg.Reference)
	if err != nil {
		return orchestrationError(err)
	}

	p, err := meta.NewStore(resolved.Root).Load()
	if err != nil {
		if !errors.Is(err, meta.ErrMetadataMissing) || !runCfg.Autogen {
			return orchestrationError(err)
		}
		p, err = analyzeAndPersist(ctx, resolved.Root, runCfg.Overrides)
		if err != nil {
			return orchestrationError(err)
		}
	} else {
		runCfg.Overrides.Apply(p)
	}

	kind, err := sandbox.ParseExecutorKind(string(runCfg.Executor))
	if err != nil {
		return orchestrationError(err)
	}

	executor := sandbox.NewExecutor(kind,
		sandbox.WithGracePeriod(time.Duration(cfg.GracePeriodSeconds)*time.Second),
		sandbox.WithStdio(os.Stdin, os.Stdout, os.Stderr),
	)
	result, err := executor.Execute(ctx, &sandbox.Request{
		Root:   resolved.Root,
		Remote: resolved.Remote,
		Pack:   p,
		Config: runCfg,
	})
	if err != nil {
		return &ExitError{Code: sandbox.ExitOrchestration, Err: err}
	}
	slog.Debug("run finished", "state", result.State, "exit_code", result.ExitCode, "duration", result.Duration)

	switch result.State {
	case sandbox.StateTimedOut:
		return &ExitError{
			Code: result.ExitCode,
			Err:  fmt.Errorf("run timed out after %d seconds", runCfg.TimeoutSeconds),
		}
	case sandbox.StateCancelled:
		return &ExitError{Code: result.ExitCode, Err: errors.New("run cancelled")}
	}
	if result.ExitCode != 0 {
		return &ExitError{Code: result.ExitCode}
	}

	if runAliasName != "" {
		if err := store.Save(runAliasName, *runCfg); err != nil {
			return orchestrationError(err)
		}
		fmt.Println(SuccessStyle.Render("✓ ") + "recorded alias " + CmdStyle.Render(runAliasName))
	}
	return nil
}

// orchestrationError carries a failure of the run machinery itself out
// with the orchestration exit code, so it stays distinguishable from a
// child process that happened to exit non-zero.
func orchestrationError(err error) error {
	return &ExitError{Code: sandbox.ExitOrchestration, Err: err}
}

// positionalArgs extracts the arguments destined for the child: anything
// after --, or anything after the target when no separator was used.
func positionalArgs(cmd *cobra.Command, args []string) []string {
	if at := cmd.ArgsLenAtDash(); at >= 0 {
		return args[at:]
	}
	if len(args) > 1 {
		return args[1:]
	}
	return nil
}

// resolveRunConfiguration builds the configuration for this run. A
// target naming a recorded alias replays that configuration verbatim,
// with only the positional args replaced when new ones were supplied.
func resolveRunConfiguration(store *alias.Store, target string, childArgs []string) (*sandbox.RunConfiguration, error) {
	if isAliasTarget(store, target) {
		stored, err := store.Get(target)
		if err != nil {
			return nil, err
		}
		slog.Debug("replaying alias", "alias", target)
		if len(childArgs) > 0 {
			stored.Args = childArgs
		}
		return stored, nil
	}

	// A recorded alias must replay the same project from any working
	// directory, so local targets are absolutized before they can be saved.
	if !source.IsRemote(target) {
		if abs, err := filepath.Abs(target); err == nil {
			target = abs
		}
	}

	executor := runExecutor
	if executor == "" {
		executor = cfg.DefaultExecutor
	}
	timeout := runTimeout
	if timeout == 0 {
		timeout = cfg.DefaultTimeoutSeconds
	}

	return &sandbox.RunConfiguration{
		Reference: source.Reference{
			Target:  target,
			Tag:     runTag,
			SubDir:  runSubDir,
			Refresh: runRefresh,
		},
		Executor:       sandbox.ExecutorKind(executor),
		Autogen:        runAutogen,
		Interactive:    runInteractive,
		Network:        runNetwork,
		FSMaps:         runFSMaps,
		PortMaps:       runPortMaps,
		EnvMaps:        runEnvMaps,
		TimeoutSeconds: timeout,
		Args:           childArgs,
	}, nil
}

// isAliasTarget decides whether the target names a recorded alias. Remote
// locators and existing local directories always win over alias names.
func isAliasTarget(store *alias.Store, target string) bool {
	if source.IsRemote(target) {
		return false
	}
	if info, err := os.Stat(target); err == nil && info.IsDir() {
		return false
	}
	_, err := store.Get(target)
	return err == nil
}
