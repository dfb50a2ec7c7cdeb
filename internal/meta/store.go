// SPDX-License-Identifier: MPL-2.0

// Package meta persists per-project analysis decisions at a fixed
// project-relative location, distinct from the process-wide cache.
package meta

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"runbox-cli/internal/pack"
)

const (
	// DirName is the per-project metadata directory.
	DirName = ".runbox"
	// metaFileName is the decision record inside DirName.
	metaFileName = "meta.json"
)

// ErrMetadataMissing is the sentinel error wrapped by MetadataMissingError.
var ErrMetadataMissing = errors.New("metadata missing")

type (
	// MetadataMissingError is returned when a run requires metadata that
	// was never generated. The store never triggers analysis on its own.
	MetadataMissingError struct {
		Root string
	}

	// Store reads and writes the per-project decision record. Writes
	// replace the record wholesale; there is no merging and no
	// cross-process locking (last writer wins).
	Store struct {
		root string
	}
)

// Error implements the error interface.
func (e *MetadataMissingError) Error() string {
	return fmt.Sprintf("no metadata found for %s: run 'runbox generate %s' first (or pass --autogen)", e.Root, e.Root)
}

// Unwrap returns ErrMetadataMissing so callers can use errors.Is.
func (e *MetadataMissingError) Unwrap() error { return ErrMetadataMissing }

// NewStore creates a store for the project rooted at root.
func NewStore(root string) *Store {
	return &Store{root: root}
}

// Dir returns the metadata directory path.
func (s *Store) Dir() string {
	return filepath.Join(s.root, DirName)
}

// Path returns the decision record path.
func (s *Store) Path() string {
	return filepath.Join(s.Dir(), metaFileName)
}

// Exists reports whether a decision record has been generated.
func (s *Store) Exists() bool {
	info, err := os.Stat(s.Path())
	return err == nil && info.Mode().IsRegular()
}

// Load reads the decision record. Unknown fields in the document are
// tolerated for forward compatibility.
func (s *Store) Load() (*pack.Package, error) {
	raw, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &MetadataMissingError{Root: s.root}
		}
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}
	var p pack.Package
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("malformed metadata at %s: %w", s.Path(), err)
	}
	return &p, nil
}

// Save writes the decision record, creating the metadata directory if
// needed. The previous record, if any, is replaced in full.
func (s *Store) Save(p *pack.Package) error {
	if err := os.MkdirAll(s.Dir(), 0o755); err != nil {
		return fmt.Errorf("failed to create metadata directory: %w", err)
	}
	raw, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	if err := os.WriteFile(s.Path(), append(raw, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}
