// SPDX-License-Identifier: MPL-2.0

package pack

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// DefaultDepTool is the external generator used to infer a requirements.txt
// for Python projects that ship without one.
const DefaultDepTool = "pipreqs"

type (
	// ExecCommandFunc is the function signature for creating exec.Cmd.
	// This allows injection of mock implementations for testing.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// DepFileGenerator invokes an external tool to produce a dependency
	// file. The tool's output is opaque to us: we never parse it, we only
	// check that the tool succeeded.
	DepFileGenerator struct {
		// Tool is the generator binary name.
		Tool string

		execCommand ExecCommandFunc
	}

	// DepFileGeneratorOption configures a DepFileGenerator.
	DepFileGeneratorOption func(*DepFileGenerator)
)

// WithDepExecCommand overrides command creation for tests.
func WithDepExecCommand(f ExecCommandFunc) DepFileGeneratorOption {
	return func(g *DepFileGenerator) { g.execCommand = f }
}

// NewDepFileGenerator creates a generator around the given tool, defaulting
// to DefaultDepTool.
func NewDepFileGenerator(tool string, opts ...DepFileGeneratorOption) *DepFileGenerator {
	if tool == "" {
		tool = DefaultDepTool
	}
	g := &DepFileGenerator{Tool: tool, execCommand: exec.CommandContext}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Available reports whether the generator tool is installed.
func (g *DepFileGenerator) Available() bool {
	_, err := exec.LookPath(g.Tool)
	return err == nil
}

// Generate runs the tool against root so it writes the dependency file in
// place. Failure is reported but treated as non-fatal by callers: the
// project can still run with author-supplied dependencies.
func (g *DepFileGenerator) Generate(ctx context.Context, root string) error {
	slog.Debug("generating dependency file", "tool", g.Tool, "root", root)
	cmd := g.execCommand(ctx, g.Tool, "--force", root)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("dependency generator %s failed: %s", g.Tool, strings.TrimSpace(string(out)))
	}
	return nil
}
