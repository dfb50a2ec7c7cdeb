// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"runbox-cli/internal/alias"
	"runbox-cli/internal/config"
	"runbox-cli/internal/meta"
	"runbox-cli/internal/sandbox"
	"runbox-cli/internal/source"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

func testConfig(t *testing.T) {
	t.Helper()
	prev := cfg
	cfg = config.DefaultConfig()
	cfg.RootDir = t.TempDir()
	t.Cleanup(func() { cfg = prev })
}

func storedAlias(t *testing.T, store *alias.Store, name string) sandbox.RunConfiguration {
	t.Helper()
	recorded := sandbox.RunConfiguration{
		Reference: source.Reference{Target: "https://github.com/org/tool", Tag: "v2"},
		Executor:  sandbox.KindDocker,
		EnvMaps:   []string{"MODE=fast"},
		Args:      []string{"--original"},
	}
	if err := store.Save(name, recorded); err != nil {
		t.Fatal(err)
	}
	return recorded
}

func TestResolveRunConfiguration_AliasReplaysVerbatim(t *testing.T) {
	testConfig(t)

	store := alias.NewStore(cfg.RootDir)
	recorded := storedAlias(t, store, "tool")

	got, err := resolveRunConfiguration(store, "tool", nil)
	if err != nil {
		t.Fatalf("resolveRunConfiguration() error = %v", err)
	}
	if !reflect.DeepEqual(*got, recorded) {
		t.Errorf("resolveRunConfiguration() = %+v, want the recorded configuration %+v", *got, recorded)
	}
}

func TestResolveRunConfiguration_AliasReplacesOnlyArgs(t *testing.T) {
	testConfig(t)

	store := alias.NewStore(cfg.RootDir)
	recorded := storedAlias(t, store, "tool")

	got, err := resolveRunConfiguration(store, "tool", []string{"--new", "args"})
	if err != nil {
		t.Fatalf("resolveRunConfiguration() error = %v", err)
	}
	if !reflect.DeepEqual(got.Args, []string{"--new", "args"}) {
		t.Errorf("Args = %v, want the new positional args", got.Args)
	}

	got.Args = recorded.Args
	if !reflect.DeepEqual(*got, recorded) {
		t.Errorf("non-args fields changed on replay: %+v vs %+v", *got, recorded)
	}
}

func TestResolveRunConfiguration_FreshRunUsesDefaults(t *testing.T) {
	testConfig(t)

	store := alias.NewStore(cfg.RootDir)
	root := t.TempDir()

	got, err := resolveRunConfiguration(store, root, []string{"a", "b"})
	if err != nil {
		t.Fatalf("resolveRunConfiguration() error = %v", err)
	}
	if got.Executor != sandbox.ExecutorKind(cfg.DefaultExecutor) {
		t.Errorf("Executor = %q, want config default %q", got.Executor, cfg.DefaultExecutor)
	}
	if got.Reference.Target != root {
		t.Errorf("Reference.Target = %q, want %q", got.Reference.Target, root)
	}
	if !reflect.DeepEqual(got.Args, []string{"a", "b"}) {
		t.Errorf("Args = %v, want [a b]", got.Args)
	}
}

func TestResolveRunConfiguration_AbsolutizesLocalTarget(t *testing.T) {
	testConfig(t)

	parent := t.TempDir()
	if err := os.Mkdir(filepath.Join(parent, "proj"), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Chdir(parent)

	store := alias.NewStore(cfg.RootDir)
	got, err := resolveRunConfiguration(store, "proj", nil)
	if err != nil {
		t.Fatalf("resolveRunConfiguration() error = %v", err)
	}
	if !filepath.IsAbs(got.Reference.Target) {
		t.Errorf("Reference.Target = %q, want an absolute path", got.Reference.Target)
	}
	if filepath.Base(got.Reference.Target) != "proj" {
		t.Errorf("Reference.Target = %q, want it to still name proj", got.Reference.Target)
	}
}

func TestResolveRunConfiguration_KeepsRemoteTargetVerbatim(t *testing.T) {
	testConfig(t)

	store := alias.NewStore(cfg.RootDir)
	got, err := resolveRunConfiguration(store, "https://github.com/org/tool", nil)
	if err != nil {
		t.Fatalf("resolveRunConfiguration() error = %v", err)
	}
	if got.Reference.Target != "https://github.com/org/tool" {
		t.Errorf("Reference.Target = %q, want the remote locator unchanged", got.Reference.Target)
	}
}

func TestRunProject_PreRunFailureUsesOrchestrationCode(t *testing.T) {
	testConfig(t)

	root := t.TempDir()
	c := &cobra.Command{}
	c.SetContext(context.Background())

	err := runProject(c, []string{root})
	if err == nil {
		t.Fatal("runProject() expected an error for a project without metadata")
	}
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("runProject() error = %v, want *ExitError", err)
	}
	if exitErr.Code != sandbox.ExitOrchestration {
		t.Errorf("Code = %d, want %d", exitErr.Code, sandbox.ExitOrchestration)
	}
	if !errors.Is(err, meta.ErrMetadataMissing) {
		t.Errorf("error = %v, want it to wrap the metadata-missing cause", err)
	}
}

func TestPrintError(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	printError(&buf, fang.Styles{}, &ExitError{Code: 2, Err: errors.New("boom")})
	if !strings.Contains(buf.String(), "boom") {
		t.Errorf("printError() output = %q, want the message", buf.String())
	}

	buf.Reset()
	printError(&buf, fang.Styles{}, &ExitError{Code: 3})
	if buf.Len() != 0 {
		t.Errorf("printError() output = %q, want silence for a bare child exit code", buf.String())
	}
}

func TestIsAliasTarget(t *testing.T) {
	testConfig(t)

	store := alias.NewStore(cfg.RootDir)
	storedAlias(t, store, "tool")

	if !isAliasTarget(store, "tool") {
		t.Error("isAliasTarget() = false for a recorded alias")
	}
	if isAliasTarget(store, "https://github.com/org/tool") {
		t.Error("isAliasTarget() = true for a remote locator")
	}
	localDir := t.TempDir()
	if isAliasTarget(store, localDir) {
		t.Error("isAliasTarget() = true for an existing local directory")
	}
	if isAliasTarget(store, "unknown-name") {
		t.Error("isAliasTarget() = true for an unrecorded name")
	}
}

func TestPositionalArgs(t *testing.T) {
	t.Parallel()

	c := &cobra.Command{Use: "run", Args: cobra.ArbitraryArgs, Run: func(*cobra.Command, []string) {}}
	c.SetArgs([]string{"target", "--", "--flag", "x"})
	if err := c.Execute(); err != nil {
		t.Fatal(err)
	}
	got := positionalArgs(c, []string{"target", "--flag", "x"})
	want := []string{"--flag", "x"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("positionalArgs() = %v, want %v", got, want)
	}
}
