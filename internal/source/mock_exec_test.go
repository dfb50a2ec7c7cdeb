// SPDX-License-Identifier: MPL-2.0

package source

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"testing"
)

type (
	// MockCommandRecorder captures arguments passed to exec.Command for
	// verification. It uses the TestHelperProcess pattern to simulate
	// command execution.
	MockCommandRecorder struct {
		// Invocations records each call to the mock exec.Command
		Invocations []MockInvocation
		// ExitCode is the exit code to return (0 = success)
		ExitCode int
		// Stdout is the output to write to stdout
		Stdout string
		// Stderr is the output to write to stderr
		Stderr string
		// FailOnSubcommand can be set to a git subcommand that should fail
		FailOnSubcommand string
	}

	// MockInvocation represents a single invocation of exec.Command.
	MockInvocation struct {
		Name string
		Args []string
	}
)

// NewMockCommandRecorder creates a new recorder with default settings.
func NewMockCommandRecorder() *MockCommandRecorder {
	return &MockCommandRecorder{Invocations: make([]MockInvocation, 0)}
}

// CommandFunc returns a function that can replace the fetcher's execCommand.
func (m *MockCommandRecorder) CommandFunc(t *testing.T) ExecCommandFunc {
	t.Helper()
	return func(ctx context.Context, name string, args ...string) *exec.Cmd {
		m.Invocations = append(m.Invocations, MockInvocation{Name: name, Args: args})

		cs := []string{"-test.run=TestHelperProcess", "--", name}
		cs = append(cs, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], cs...)
		exitCode := m.ExitCode
		if m.FailOnSubcommand != "" && len(args) > 0 && args[0] == m.FailOnSubcommand {
			exitCode = 1
		}
		// A real `git clone` creates the destination directory; mimic that
		// so later commands running inside the slot can chdir into it.
		if exitCode == 0 && len(args) >= 2 && args[0] == "clone" {
			if err := os.MkdirAll(args[len(args)-1], 0o755); err != nil {
				t.Fatalf("mock clone mkdir: %v", err)
			}
		}
		cmd.Env = []string{
			"GO_WANT_HELPER_PROCESS=1",
			fmt.Sprintf("GO_HELPER_EXIT_CODE=%d", exitCode),
			fmt.Sprintf("GO_HELPER_STDOUT=%s", m.Stdout),
			fmt.Sprintf("GO_HELPER_STDERR=%s", m.Stderr),
		}
		return cmd
	}
}

// Subcommands returns the first argument of each git invocation, in order.
func (m *MockCommandRecorder) Subcommands() []string {
	subs := make([]string, 0, len(m.Invocations))
	for _, inv := range m.Invocations {
		if len(inv.Args) > 0 {
			subs = append(subs, inv.Args[0])
		}
	}
	return subs
}

// TestHelperProcess is used by the mock to simulate command execution.
// This function should not be called directly - it is invoked by the mock.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	if stdout := os.Getenv("GO_HELPER_STDOUT"); stdout != "" {
		fmt.Fprint(os.Stdout, stdout)
	}
	if stderr := os.Getenv("GO_HELPER_STDERR"); stderr != "" {
		fmt.Fprint(os.Stderr, stderr)
	}
	exitCode := 0
	if code := os.Getenv("GO_HELPER_EXIT_CODE"); code != "" {
		fmt.Sscanf(code, "%d", &exitCode)
	}
	os.Exit(exitCode)
}
