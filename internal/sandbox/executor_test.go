// SPDX-License-Identifier: MPL-2.0

package sandbox

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"runbox-cli/internal/pack"
	"runbox-cli/internal/source"
)

func shellPack() *pack.Package {
	return &pack.Package{
		Name:        "scripts",
		Type:        pack.TypeShell,
		Interpreter: "/bin/sh",
		Entrypoint:  "run.sh",
	}
}

func shellRequest(root string) *Request {
	return &Request{
		Root: root,
		Pack: shellPack(),
		Config: &RunConfiguration{
			Reference: source.Reference{Target: root},
			Executor:  KindNative,
		},
	}
}

func TestExecutor_NativeRejectsIsolationFlags(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*RunConfiguration)
	}{
		{"volume mount", func(c *RunConfiguration) { c.FSMaps = []string{"/data:/app/data"} }},
		{"port binding", func(c *RunConfiguration) { c.PortMaps = []string{"8080:80"} }},
		{"network", func(c *RunConfiguration) { c.Network = "bridge" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			recorder := NewMockCommandRecorder()
			executor := NewExecutor(KindNative,
				WithSandboxExecCommand(recorder.CommandFunc(t)),
				WithStdio(strings.NewReader(""), &bytes.Buffer{}, &bytes.Buffer{}),
			)

			req := shellRequest(t.TempDir())
			tc.mutate(req.Config)

			result, err := executor.Execute(context.Background(), req)
			if !errors.Is(err, ErrConfiguration) {
				t.Fatalf("Execute() error = %v, want ErrConfiguration", err)
			}
			if result.State != StateFailed {
				t.Errorf("Execute() state = %q, want %q", result.State, StateFailed)
			}
			if len(recorder.Invocations) != 0 {
				t.Errorf("Execute() started a process despite rejected configuration: %v", recorder.Invocations)
			}
		})
	}
}

func TestExecutor_RejectsIncompletePackage(t *testing.T) {
	t.Parallel()

	executor := NewExecutor(KindNative,
		WithStdio(strings.NewReader(""), &bytes.Buffer{}, &bytes.Buffer{}),
	)
	req := shellRequest(t.TempDir())
	req.Pack = &pack.Package{Name: "incomplete", Type: pack.TypeShell}

	if _, err := executor.Execute(context.Background(), req); !errors.Is(err, ErrConfiguration) {
		t.Errorf("Execute() error = %v, want ErrConfiguration", err)
	}
}

func TestExecutor_RejectsMalformedMappings(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*RunConfiguration)
	}{
		{"mount without target", func(c *RunConfiguration) { c.FSMaps = []string{"/data"} }},
		{"mount with empty host", func(c *RunConfiguration) { c.FSMaps = []string{":/app"} }},
		{"non-numeric port", func(c *RunConfiguration) { c.PortMaps = []string{"http:80"} }},
		{"port without host", func(c *RunConfiguration) { c.PortMaps = []string{":80"} }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			executor := NewExecutor(KindDocker,
				WithStdio(strings.NewReader(""), &bytes.Buffer{}, &bytes.Buffer{}),
			)
			req := shellRequest(t.TempDir())
			req.Config.Executor = KindDocker
			tc.mutate(req.Config)

			if _, err := executor.Execute(context.Background(), req); !errors.Is(err, ErrConfiguration) {
				t.Errorf("Execute() error = %v, want ErrConfiguration", err)
			}
		})
	}
}

func TestExecutor_UnsetEnvRejectedBeforeStart(t *testing.T) {
	t.Parallel()

	recorder := NewMockCommandRecorder()
	executor := NewExecutor(KindNative,
		WithSandboxExecCommand(recorder.CommandFunc(t)),
		WithLookupEnv(mapLookup(nil)),
		WithStdio(strings.NewReader(""), &bytes.Buffer{}, &bytes.Buffer{}),
	)

	req := shellRequest(t.TempDir())
	req.Config.EnvMaps = []string{"UNSET_VAR"}

	if _, err := executor.Execute(context.Background(), req); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("Execute() error = %v, want ErrConfiguration", err)
	}
	if len(recorder.Invocations) != 0 {
		t.Errorf("Execute() started a process despite unset env variable: %v", recorder.Invocations)
	}
}

func TestExecutor_NativeCompleted(t *testing.T) {
	t.Parallel()

	recorder := NewMockCommandRecorder()
	recorder.Stdout = "hello from child\n"
	var stdout, stderr bytes.Buffer
	executor := NewExecutor(KindNative,
		WithSandboxExecCommand(recorder.CommandFunc(t)),
		WithStdio(strings.NewReader(""), &stdout, &stderr),
	)

	req := shellRequest(t.TempDir())
	req.Config.Args = []string{"--flag", "value"}

	result, err := executor.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.State != StateCompleted {
		t.Errorf("Execute() state = %q, want %q", result.State, StateCompleted)
	}
	if result.ExitCode != 0 {
		t.Errorf("Execute() exit code = %d, want 0", result.ExitCode)
	}
	if got := stdout.String(); got != "hello from child\n" {
		t.Errorf("Execute() relayed stdout = %q, want %q", got, "hello from child\n")
	}

	if len(recorder.Invocations) != 1 {
		t.Fatalf("Execute() invocations = %d, want 1", len(recorder.Invocations))
	}
	inv := recorder.Invocations[0]
	if inv.Name != "/bin/sh" {
		t.Errorf("child command = %q, want /bin/sh", inv.Name)
	}
	wantArgs := []string{"run.sh", "--flag", "value"}
	if !reflect.DeepEqual(inv.Args, wantArgs) {
		t.Errorf("child args = %v, want %v", inv.Args, wantArgs)
	}
}

func TestExecutor_NativeMirrorsChildExitCode(t *testing.T) {
	t.Parallel()

	recorder := NewMockCommandRecorder()
	recorder.ExitCode = 3
	executor := NewExecutor(KindNative,
		WithSandboxExecCommand(recorder.CommandFunc(t)),
		WithStdio(strings.NewReader(""), &bytes.Buffer{}, &bytes.Buffer{}),
	)

	result, err := executor.Execute(context.Background(), shellRequest(t.TempDir()))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.State != StateCompleted {
		t.Errorf("Execute() state = %q, want %q", result.State, StateCompleted)
	}
	if result.ExitCode != 3 {
		t.Errorf("Execute() exit code = %d, want 3", result.ExitCode)
	}
}

func TestExecutor_NativeCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	recorder := NewMockCommandRecorder()
	executor := NewExecutor(KindNative,
		WithSandboxExecCommand(recorder.CommandFunc(t)),
		WithStdio(strings.NewReader(""), &bytes.Buffer{}, &bytes.Buffer{}),
	)

	result, err := executor.Execute(ctx, shellRequest(t.TempDir()))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.State != StateCancelled {
		t.Errorf("Execute() state = %q, want %q", result.State, StateCancelled)
	}
	if result.ExitCode != ExitCancelled {
		t.Errorf("Execute() exit code = %d, want %d", result.ExitCode, ExitCancelled)
	}
}

func TestExecutor_NativeTimedOut(t *testing.T) {
	t.Parallel()

	recorder := NewMockCommandRecorder()
	recorder.Stdout = "partial output\n"
	recorder.SleepMillis = 10_000
	var stdout bytes.Buffer
	executor := NewExecutor(KindNative,
		WithSandboxExecCommand(recorder.CommandFunc(t)),
		WithGracePeriod(500*time.Millisecond),
		WithStdio(strings.NewReader(""), &stdout, &bytes.Buffer{}),
	)

	req := shellRequest(t.TempDir())
	req.Config.TimeoutSeconds = 1

	start := time.Now()
	result, err := executor.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.State != StateTimedOut {
		t.Errorf("Execute() state = %q, want %q", result.State, StateTimedOut)
	}
	if result.ExitCode != ExitTimedOut {
		t.Errorf("Execute() exit code = %d, want %d", result.ExitCode, ExitTimedOut)
	}
	if got := stdout.String(); got != "partial output\n" {
		t.Errorf("Execute() dropped output emitted before the cutoff: %q", got)
	}
	// timeout + grace period + scheduling slack
	if elapsed := time.Since(start); elapsed > 4*time.Second {
		t.Errorf("Execute() took %v, expected a bounded return after the timeout", elapsed)
	}
}

func TestExecutor_NativeRemoteSourceWarning(t *testing.T) {
	t.Parallel()

	recorder := NewMockCommandRecorder()
	var stderr bytes.Buffer
	executor := NewExecutor(KindNative,
		WithSandboxExecCommand(recorder.CommandFunc(t)),
		WithStdio(strings.NewReader(""), &bytes.Buffer{}, &stderr),
	)

	req := shellRequest(t.TempDir())
	req.Remote = true

	if _, err := executor.Execute(context.Background(), req); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(stderr.String(), "warning:") {
		t.Errorf("Execute() stderr = %q, want a sandboxing warning", stderr.String())
	}
}

func TestExecutor_NativePythonInstallsDependencies(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root+"/requirements.txt", "requests==2.31.0\n")

	recorder := NewMockCommandRecorder()
	executor := NewExecutor(KindNative,
		WithSandboxExecCommand(recorder.CommandFunc(t)),
		WithStdio(strings.NewReader(""), &bytes.Buffer{}, &bytes.Buffer{}),
	)

	req := shellRequest(root)
	req.Pack = pythonPack()

	result, err := executor.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.State != StateCompleted {
		t.Errorf("Execute() state = %q, want %q", result.State, StateCompleted)
	}

	if len(recorder.Invocations) != 3 {
		t.Fatalf("Execute() invocations = %d, want 3 (venv, pip, child): %v",
			len(recorder.Invocations), recorder.Invocations)
	}
	if recorder.Invocations[0].Name != "python3" {
		t.Errorf("first invocation = %q, want python3", recorder.Invocations[0].Name)
	}
	if !strings.HasSuffix(recorder.Invocations[1].Name, "/bin/pip") {
		t.Errorf("second invocation = %q, want the virtualenv pip", recorder.Invocations[1].Name)
	}
	if !strings.HasSuffix(recorder.Invocations[2].Name, "venv/bin/python") {
		t.Errorf("child interpreter = %q, want the virtualenv python", recorder.Invocations[2].Name)
	}
}

func TestParseExecutorKind(t *testing.T) {
	t.Parallel()

	if kind, err := ParseExecutorKind("docker"); err != nil || kind != KindDocker {
		t.Errorf("ParseExecutorKind(docker) = %q, %v", kind, err)
	}
	if kind, err := ParseExecutorKind("native"); err != nil || kind != KindNative {
		t.Errorf("ParseExecutorKind(native) = %q, %v", kind, err)
	}
	if _, err := ParseExecutorKind("chroot"); !errors.Is(err, ErrConfiguration) {
		t.Errorf("ParseExecutorKind(chroot) error = %v, want ErrConfiguration", err)
	}
}

func TestImageName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		root string
		tag  string
		want string
	}{
		{"/tmp/test-project", "latest", "runbox-tmp-test-project:latest"},
		{"/home/user/My.Proj", "V1.0", "runbox-home-user-my-proj:v1.0"},
		{"/tmp/demo", "", "runbox-tmp-demo:latest"},
	}
	for _, tc := range cases {
		if got := ImageName(tc.root, tc.tag); got != tc.want {
			t.Errorf("ImageName(%q, %q) = %q, want %q", tc.root, tc.tag, got, tc.want)
		}
	}
}
