// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for runbox.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"runbox-cli/internal/config"
	"runbox-cli/internal/sandbox"

	"github.com/charmbracelet/fang"
	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"

	// verbose enables debug logging
	verbose bool
	// cfgFile allows specifying a custom config file
	cfgFile string

	// cfg holds the loaded settings for every command
	cfg *config.Config

	// rootCmd represents the base command when called without any subcommands
	rootCmd = &cobra.Command{
		Use:   "runbox",
		Short: "Run any project anywhere, with zero manual setup",
		Long: TitleStyle.Render("runbox") + SubtitleStyle.Render(" - run any project anywhere") + `

runbox takes a project reference (a local directory or a remote git
repository plus tag) and runs it to completion inside an isolated
execution environment. The project's language, entrypoint and
dependencies are detected automatically and recorded as metadata;
subsequent runs reuse every decision and are near-instant.

` + SubtitleStyle.Render("Examples:") + `
  runbox generate .                          Analyze the current directory
  runbox run . -- --help                     Run the local project
  runbox run https://github.com/org/tool     Fetch and run a remote project
  runbox run tool                            Replay the recorded 'tool' alias`,
	}
)

func init() {
	cobra.OnInitialize(initRootConfig)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/runbox/config.toml)")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(aliasCmd)
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(printError),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(sandbox.ExitOrchestration)
	}
}

// printError reports a failed invocation on stderr. A plain non-zero
// child exit carries no message of its own: the child already wrote its
// failure to the shared stderr, so only the code is propagated.
func printError(w io.Writer, _ fang.Styles, err error) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Err == nil {
		return
	}
	fmt.Fprintln(w, ErrorStyle.Render("Error: ")+err.Error())
}

// initRootConfig loads settings and wires the default logger.
func initRootConfig() {
	var (
		loaded *config.Config
		err    error
	)
	if cfgFile != "" {
		loaded, err = config.LoadFile(cfgFile)
	} else {
		loaded, err = config.Load()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, WarningStyle.Render("Warning: ")+err.Error())
		loaded = config.DefaultConfig()
	}
	cfg = loaded

	logger := charmlog.NewWithOptions(os.Stderr, charmlog.Options{Prefix: "runbox"})
	if verbose {
		logger.SetLevel(charmlog.DebugLevel)
	} else {
		logger.SetLevel(charmlog.WarnLevel)
	}
	slog.SetDefault(slog.New(logger))
}
