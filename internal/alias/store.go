// SPDX-License-Identifier: MPL-2.0

// Package alias persists named run configurations in a process-wide
// store, so a successful invocation can be replayed by name.
package alias

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"runbox-cli/internal/sandbox"
)

// fileName is the store document inside the runbox root directory.
const fileName = "aliases.json"

// ErrAliasNotFound is the sentinel error wrapped by NotFoundError.
var ErrAliasNotFound = errors.New("alias not found")

type (
	// Store reads and writes the alias document. Entries map an alias
	// name to the full run configuration recorded when it was created.
	Store struct {
		path string
	}

	// NotFoundError is returned when a named alias does not exist.
	NotFoundError struct {
		Name string
	}
)

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("alias '%s' not found; use 'runbox alias list' to see recorded aliases", e.Name)
}

// Unwrap returns ErrAliasNotFound so callers can use errors.Is.
func (e *NotFoundError) Unwrap() error { return ErrAliasNotFound }

// NewStore creates a store rooted at the process-wide runbox directory.
func NewStore(rootDir string) *Store {
	return &Store{path: filepath.Join(rootDir, fileName)}
}

// Path returns the location of the alias document.
func (s *Store) Path() string { return s.path }

// List returns every recorded alias. A missing document is an empty
// store, not an error.
func (s *Store) List() (map[string]sandbox.RunConfiguration, error) {
	return s.load()
}

// Names returns the recorded alias names in sorted order.
func (s *Store) Names() ([]string, error) {
	aliases, err := s.load()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(aliases))
	for name := range aliases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Get returns the configuration recorded under name.
func (s *Store) Get(name string) (*sandbox.RunConfiguration, error) {
	aliases, err := s.load()
	if err != nil {
		return nil, err
	}
	cfg, ok := aliases[name]
	if !ok {
		return nil, &NotFoundError{Name: name}
	}
	return &cfg, nil
}

// Save records the configuration under name, replacing any previous
// entry with the same name.
func (s *Store) Save(name string, cfg sandbox.RunConfiguration) error {
	aliases, err := s.load()
	if err != nil {
		return err
	}
	aliases[name] = cfg
	return s.write(aliases)
}

// Delete removes the named alias.
func (s *Store) Delete(name string) error {
	aliases, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := aliases[name]; !ok {
		return &NotFoundError{Name: name}
	}
	delete(aliases, name)
	return s.write(aliases)
}

func (s *Store) load() (map[string]sandbox.RunConfiguration, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]sandbox.RunConfiguration{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading alias store: %w", err)
	}

	aliases := map[string]sandbox.RunConfiguration{}
	if err := json.Unmarshal(data, &aliases); err != nil {
		return nil, fmt.Errorf("parsing alias store %s: %w", s.path, err)
	}
	return aliases, nil
}

func (s *Store) write(aliases map[string]sandbox.RunConfiguration) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating runbox directory: %w", err)
	}
	data, err := json.MarshalIndent(aliases, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding alias store: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("writing alias store: %w", err)
	}
	return nil
}
