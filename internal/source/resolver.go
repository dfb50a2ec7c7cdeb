// SPDX-License-Identifier: MPL-2.0

package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

type (
	// Reference identifies what to run: a local directory or a remote
	// repository locator with a tag, optionally narrowed to a sub-directory.
	// Immutable per invocation.
	Reference struct {
		// Target is the local path or remote locator.
		Target string `json:"target"`
		// Tag selects the remote revision; DefaultTag means the default
		// branch tip. Ignored for local references.
		Tag string `json:"tag,omitempty"`
		// SubDir narrows the resolved root to a subtree.
		SubDir string `json:"sub_dir,omitempty"`
		// Refresh forces a refetch even on a cache hit.
		Refresh bool `json:"refresh,omitempty"`
	}

	// Resolved is a materialized project directory.
	Resolved struct {
		// Root is the directory downstream components operate in.
		Root string
		// Remote is set when the source was fetched from a repository,
		// which the native executor uses to warn before running it.
		Remote bool
	}

	// Resolver turns references into local directories, delegating remote
	// ones to its Fetcher.
	Resolver struct {
		Fetcher Fetcher
	}
)

// NewResolver creates a Resolver backed by the given fetcher.
func NewResolver(f Fetcher) *Resolver {
	return &Resolver{Fetcher: f}
}

// Resolve materializes the reference. Local paths resolve to themselves
// after an existence check and are never cached.
func (r *Resolver) Resolve(ctx context.Context, ref Reference) (*Resolved, error) {
	var root string
	remote := IsRemote(ref.Target)

	if remote {
		dir, err := r.Fetcher.Fetch(ctx, ref.Target, ref.Tag, ref.Refresh)
		if err != nil {
			return nil, err
		}
		root = dir
	} else {
		abs, err := filepath.Abs(ref.Target)
		if err != nil {
			return nil, fmt.Errorf("cannot resolve path %s: %w", ref.Target, err)
		}
		info, err := os.Stat(abs)
		if err != nil || !info.IsDir() {
			return nil, fmt.Errorf("project root %s is not a directory", abs)
		}
		root = abs
	}

	if ref.SubDir != "" {
		sub := filepath.Join(root, filepath.FromSlash(ref.SubDir))
		info, err := os.Stat(sub)
		if err != nil || !info.IsDir() {
			return nil, fmt.Errorf("sub-directory %s does not exist under %s", ref.SubDir, root)
		}
		root = sub
	}

	return &Resolved{Root: root, Remote: remote}, nil
}
