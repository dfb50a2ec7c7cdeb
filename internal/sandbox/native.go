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
	"path/filepath"
	"strings"
	"syscall"

	"github.com/creack/pty"
	"golang.org/x/sync/errgroup"

	"runbox-cli/internal/meta"
	"runbox-cli/internal/pack"
)

// runNative executes the entrypoint as a bare process on the host. The
// returned int is the child's exit code; a non-nil error means the child
// never ran.
func (e *Executor) runNative(ctx context.Context, req *Request, env []string) (int, error) {
	if req.Remote {
		fmt.Fprintln(e.stderr, "warning: the native executor runs code without sandboxing; make sure you trust this remote source")
	}

	if err := e.installNativeDeps(ctx, req); err != nil {
		return 0, err
	}

	interpreter := nativeInterpreter(req.Root, req.Pack)
	argv := strings.Fields(interpreter)
	argv = append(argv, req.Pack.Entrypoint)
	argv = append(argv, req.Config.Args...)

	e.setState(StateRunning)
	slog.Debug("starting native child", "argv", argv)

	cmd := e.execCommand(ctx, argv[0], argv[1:]...)
	cmd.Dir = req.Root
	if cmd.Env == nil {
		cmd.Env = os.Environ()
	}
	cmd.Env = append(cmd.Env, env...)
	if cmd.Cancel != nil {
		cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
		cmd.WaitDelay = e.gracePeriod
	}

	if req.Config.Interactive {
		return e.waitInteractive(cmd)
	}
	return e.waitStreaming(cmd)
}

// waitStreaming runs the child with both output streams pumped to the
// executor's writers as data arrives. The two pumps are independent so a
// stalled stream never blocks the other.
func (e *Executor) waitStreaming(cmd *exec.Cmd) (int, error) {
	cmd.Stdin = e.stdin
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return 0, fmt.Errorf("attaching stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return 0, fmt.Errorf("attaching stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("starting child process: %w", err)
	}

	var g errgroup.Group
	g.Go(func() error {
		io.Copy(e.stdout, stdout)
		return nil
	})
	g.Go(func() error {
		io.Copy(e.stderr, stderr)
		return nil
	})
	g.Wait()

	return exitCodeOf(cmd.Wait())
}

// waitInteractive runs the child behind a pseudo-terminal so programs
// that expect a TTY behave normally.
func (e *Executor) waitInteractive(cmd *exec.Cmd) (int, error) {
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return 0, fmt.Errorf("starting child process on a pty: %w", err)
	}
	defer ptmx.Close()

	go io.Copy(ptmx, e.stdin)
	io.Copy(e.stdout, ptmx)

	return exitCodeOf(cmd.Wait())
}

// installNativeDeps prepares language-level dependencies on the host
// before the child runs. Shell and untyped projects need nothing.
func (e *Executor) installNativeDeps(ctx context.Context, req *Request) error {
	switch req.Pack.Type {
	case pack.TypePython:
		return e.installPythonDeps(ctx, req.Root)
	case pack.TypeNode:
		return e.installNodeDeps(ctx, req.Root)
	default:
		return nil
	}
}

// installPythonDeps creates a project-local virtualenv on first use and
// installs requirements.txt into it when one exists.
func (e *Executor) installPythonDeps(ctx context.Context, root string) error {
	venv := venvPath(root)
	if _, err := os.Stat(venv); os.IsNotExist(err) {
		slog.Debug("creating virtualenv", "path", venv)
		if err := e.runSetupCommand(ctx, root, "python3", "-m", "venv", venv); err != nil {
			return fmt.Errorf("creating virtualenv: %w", err)
		}
	}

	requirements := filepath.Join(root, "requirements.txt")
	if _, err := os.Stat(requirements); err != nil {
		return nil
	}
	pip := filepath.Join(venv, "bin", "pip")
	if err := e.runSetupCommand(ctx, root, pip, "install", "-r", requirements); err != nil {
		return fmt.Errorf("installing python dependencies: %w", err)
	}
	return nil
}

// installNodeDeps runs the ecosystem installer once, against the
// project's own manifest.
func (e *Executor) installNodeDeps(ctx context.Context, root string) error {
	manifest := filepath.Join(root, "package.json")
	modules := filepath.Join(root, "node_modules")
	if _, err := os.Stat(manifest); err != nil {
		return nil
	}
	if _, err := os.Stat(modules); err == nil {
		return nil
	}
	if err := e.runSetupCommand(ctx, root, "npm", "install"); err != nil {
		return fmt.Errorf("installing node dependencies: %w", err)
	}
	return nil
}

func (e *Executor) runSetupCommand(ctx context.Context, dir, name string, args ...string) error {
	cmd := e.execCommand(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = e.stdout
	cmd.Stderr = e.stderr
	return cmd.Run()
}

// nativeInterpreter picks the interpreter for the native path. Python
// projects run through their virtualenv's interpreter so installed
// dependencies are actually visible to them.
func nativeInterpreter(root string, p *pack.Package) string {
	if p.Type == pack.TypePython {
		return filepath.Join(venvPath(root), "bin", "python")
	}
	return p.Interpreter
}

func venvPath(root string) string {
	return filepath.Join(root, meta.DirName, "venv")
}

// exitCodeOf maps a Wait outcome to the child's exit code. Plain
// non-zero exits are not errors; anything else is.
func exitCodeOf(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return 0, fmt.Errorf("waiting for child process: %w", err)
}
