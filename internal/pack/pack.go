// SPDX-License-Identifier: MPL-2.0

// Package pack classifies a project directory, ranks entrypoint candidates
// and records the decision that the sandbox executor later consumes.
package pack

import (
	"errors"
	"fmt"
)

// Project type constants for the supported ecosystems.
const (
	TypePython Type = "python"
	TypeNode   Type = "node"
	TypeShell  Type = "shell"
	TypeOther  Type = "other"
)

// ErrUnknownType is the sentinel error wrapped by UnknownTypeError.
var ErrUnknownType = errors.New("unknown project type")

// ErrAnalysis is the sentinel error wrapped by AnalysisError.
var ErrAnalysis = errors.New("analysis failed")

type (
	// Type identifies the ecosystem a project belongs to. The zero value
	// is not valid; classification always yields one of the four constants.
	Type string

	// UnknownTypeError is returned when a user-supplied type string does not
	// name a supported project type.
	UnknownTypeError struct {
		Value string
	}

	// AnalysisError is returned when a directory has no recognizable project
	// shape. It is non-fatal: callers may still run the project by supplying
	// a complete manual override (type, entrypoint and interpreter).
	AnalysisError struct {
		Root   string
		Reason string
	}

	// Package is the persisted decision record of an analysis, possibly
	// amended by user overrides. Once written it governs subsequent runs.
	Package struct {
		// Name is the project name, defaulting to the root directory basename.
		Name string `json:"name"`
		// Type is the detected or overridden project type.
		Type Type `json:"type"`
		// Interpreter is the command line used to execute the entrypoint,
		// e.g. "/usr/bin/env python" or a shebang remainder taken verbatim.
		Interpreter string `json:"interpreter"`
		// Entrypoint is the selected program file, relative to the root.
		Entrypoint string `json:"entrypoint"`
		// Deps are OS-level dependency declarations embedded opaquely.
		Deps []string `json:"deps,omitempty"`
	}
)

// Error implements the error interface.
func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown project type %q (supported: python, node, shell, other)", e.Value)
}

// Unwrap returns ErrUnknownType so callers can use errors.Is.
func (e *UnknownTypeError) Unwrap() error { return ErrUnknownType }

// Error implements the error interface.
func (e *AnalysisError) Error() string {
	return fmt.Sprintf("cannot analyze %s: %s", e.Root, e.Reason)
}

// Unwrap returns ErrAnalysis so callers can use errors.Is.
func (e *AnalysisError) Unwrap() error { return ErrAnalysis }

// ParseType converts a user-supplied string into a Type.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypePython, TypeNode, TypeShell, TypeOther:
		return Type(s), nil
	default:
		return "", &UnknownTypeError{Value: s}
	}
}

// DefaultInterpreter returns the conventional interpreter for a project type.
// Shell projects carry their interpreter in the shebang line, so the fallback
// here is only used when no shebang was found.
func DefaultInterpreter(t Type) string {
	switch t {
	case TypePython:
		return "/usr/bin/env python"
	case TypeNode:
		return "/usr/bin/env node"
	case TypeShell:
		return "/bin/sh"
	default:
		return ""
	}
}

// Complete reports whether the package carries the full
// (Type, Entrypoint, Interpreter) triple required to run.
func (p *Package) Complete() bool {
	return p.Type != "" && p.Entrypoint != "" && p.Interpreter != ""
}
