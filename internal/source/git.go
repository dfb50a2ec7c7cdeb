// SPDX-License-Identifier: MPL-2.0

package source

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// GitFetcher fetches remote repositories with the system git client into a
// cache directory. Slots are keyed by (locator, tag): the slot path is
// derived deterministically from both, so refetching the same key overwrites
// instead of accumulating.
type GitFetcher struct {
	cacheRoot   string
	execCommand ExecCommandFunc
}

// GitFetcherOption configures a GitFetcher.
type GitFetcherOption func(*GitFetcher)

// WithExecCommand overrides command creation, used by tests to avoid
// shelling out to a real git binary.
func WithExecCommand(f ExecCommandFunc) GitFetcherOption {
	return func(g *GitFetcher) { g.execCommand = f }
}

// NewGitFetcher creates a GitFetcher rooted at cacheRoot. The directory is
// created on first use, not here.
func NewGitFetcher(cacheRoot string, opts ...GitFetcherOption) *GitFetcher {
	g := &GitFetcher{
		cacheRoot:   cacheRoot,
		execCommand: exec.CommandContext,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Fetch materializes locator@tag in its cache slot. An existing slot is a
// cache hit and is returned immediately unless refresh is set; a miss clones
// and checks out the tag. A refresh on an existing slot swaps back to the
// default branch, pulls, refetches tags and checks the tag out again.
func (g *GitFetcher) Fetch(ctx context.Context, locator, tag string, refresh bool) (string, error) {
	if tag == "" {
		tag = DefaultTag
	}
	slotRel, err := slotPath(locator, tag)
	if err != nil {
		return "", err
	}
	slot := filepath.Join(g.cacheRoot, slotRel)

	if info, statErr := os.Stat(slot); statErr == nil && info.IsDir() {
		if !refresh {
			return slot, nil
		}
		if err := g.refreshSlot(ctx, locator, tag, slot); err != nil {
			return "", err
		}
		return slot, nil
	}

	if err := g.populateSlot(ctx, locator, tag, slot); err != nil {
		return "", err
	}
	return slot, nil
}

func (g *GitFetcher) populateSlot(ctx context.Context, locator, tag, slot string) error {
	if err := os.MkdirAll(filepath.Dir(slot), 0o755); err != nil {
		return &FetchError{Locator: locator, Tag: tag, Reason: err.Error()}
	}
	if err := g.git(ctx, locator, tag, "", "clone", locator, slot); err != nil {
		return err
	}
	if err := g.git(ctx, locator, tag, slot, "fetch", "--tags"); err != nil {
		return err
	}
	return g.checkoutTag(ctx, locator, tag, slot)
}

func (g *GitFetcher) refreshSlot(ctx context.Context, locator, tag, slot string) error {
	if err := g.checkoutDefaultBranch(ctx, locator, tag, slot); err != nil {
		return err
	}
	if err := g.git(ctx, locator, tag, slot, "pull"); err != nil {
		return err
	}
	if err := g.git(ctx, locator, tag, slot, "fetch", "--tags"); err != nil {
		return err
	}
	return g.checkoutTag(ctx, locator, tag, slot)
}

// checkoutTag checks out the requested tag. The default tag means the tip of
// the default branch, which the slot is already on after clone or refresh.
func (g *GitFetcher) checkoutTag(ctx context.Context, locator, tag, slot string) error {
	if tag == DefaultTag {
		return nil
	}
	return g.git(ctx, locator, tag, slot, "checkout", tag)
}

// checkoutDefaultBranch detects the default branch from the remote HEAD,
// falling back to main then master.
func (g *GitFetcher) checkoutDefaultBranch(ctx context.Context, locator, tag, slot string) error {
	out, err := g.gitOutput(ctx, slot, "symbolic-ref", "refs/remotes/origin/HEAD", "--short")
	if err == nil {
		branch := strings.TrimPrefix(strings.TrimSpace(out), "origin/")
		if branch != "" && g.git(ctx, locator, tag, slot, "checkout", branch) == nil {
			return nil
		}
	}
	if g.git(ctx, locator, tag, slot, "checkout", "main") == nil {
		return nil
	}
	return g.git(ctx, locator, tag, slot, "checkout", "master")
}

// git runs a git subcommand, translating failure into a FetchError carrying
// the client's stderr.
func (g *GitFetcher) git(ctx context.Context, locator, tag, dir string, args ...string) error {
	cmd := g.execCommand(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		reason := strings.TrimSpace(string(out))
		if reason == "" {
			reason = err.Error()
		}
		return &FetchError{Locator: locator, Tag: tag, Reason: fmt.Sprintf("git %s: %s", args[0], reason)}
	}
	return nil
}

func (g *GitFetcher) gitOutput(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := g.execCommand(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	return string(out), err
}

// slotPath maps a locator and tag to a deterministic cache-relative path of
// the form <host>/<org>/<repo>/<tag>. Both SSH-style (git@host:org/repo.git)
// and HTTP(S) locators are supported.
func slotPath(locator, tag string) (string, error) {
	host, org, repo, err := splitLocator(locator)
	if err != nil {
		return "", err
	}
	return filepath.Join(host, org, repo, tag), nil
}

func splitLocator(locator string) (host, org, repo string, err error) {
	trimmed := strings.TrimSuffix(locator, ".git")

	rest, ok := strings.CutPrefix(trimmed, "https://")
	if !ok {
		rest, ok = strings.CutPrefix(trimmed, "http://")
	}
	if ok {
		parts := strings.Split(rest, "/")
		if len(parts) < 3 {
			return "", "", "", &FetchError{Locator: locator, Reason: "cannot parse repository locator"}
		}
		return parts[0], parts[len(parts)-2], parts[len(parts)-1], nil
	}

	// SSH style: [user@]host:org/repo
	hostPart, pathPart, found := strings.Cut(trimmed, ":")
	if !found {
		return "", "", "", &FetchError{Locator: locator, Reason: "cannot parse repository locator"}
	}
	if at := strings.LastIndex(hostPart, "@"); at >= 0 {
		hostPart = hostPart[at+1:]
	}
	parts := strings.Split(pathPart, "/")
	if len(parts) < 2 {
		return "", "", "", &FetchError{Locator: locator, Reason: "cannot parse repository locator"}
	}
	return hostPart, parts[len(parts)-2], parts[len(parts)-1], nil
}

// IsRemote reports whether a project reference names a remote repository
// rather than a local directory.
func IsRemote(ref string) bool {
	return strings.HasPrefix(ref, "https://") ||
		strings.HasPrefix(ref, "http://") ||
		strings.HasPrefix(ref, "git@") ||
		strings.HasPrefix(ref, "ssh://")
}
