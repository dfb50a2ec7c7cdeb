// SPDX-License-Identifier: MPL-2.0

// Package source materializes project references: local directories resolve
// in place, remote repositories are fetched into a tag-addressed cache.
package source

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// DefaultTag addresses the tip of the default branch.
const DefaultTag = "latest"

// ErrFetch is the sentinel error wrapped by FetchError.
var ErrFetch = errors.New("fetch failed")

type (
	// Fetcher retrieves a (locator, tag) pair into a local directory and
	// returns its path. Implementations must be idempotent per key: the
	// same key always maps to the same slot, overwritten on refetch.
	Fetcher interface {
		Fetch(ctx context.Context, locator, tag string, refresh bool) (string, error)
	}

	// ExecCommandFunc is the function signature for creating exec.Cmd.
	// This allows injection of mock implementations for testing.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// FetchError is returned when the external VCS client fails. It is
	// fatal for the current invocation and never auto-retried.
	FetchError struct {
		Locator string
		Tag     string
		Reason  string
	}
)

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch %s@%s: %s", e.Locator, e.Tag, e.Reason)
}

// Unwrap returns ErrFetch so callers can use errors.Is.
func (e *FetchError) Unwrap() error { return ErrFetch }
