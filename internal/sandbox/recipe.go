// SPDX-License-Identifier: MPL-2.0

package sandbox

import (
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"runbox-cli/internal/pack"
)

// dockerfileTemplate is the build recipe skeleton shared by all project
// types. Type-specific decisions (base image, dependency install step)
// are computed before rendering.
const dockerfileTemplate = `# Generated by runbox. Do not edit.
FROM {{.BaseImage}}

RUN apk add --no-cache ca-certificates bash
{{- if .OSDeps}}
RUN apk add --no-cache{{range .OSDeps}} {{.}}{{end}}
{{- end}}

WORKDIR /runbox/app
{{- if .DepFile}}
ADD ./{{.DepFile}} /runbox/app/{{.DepFile}}
RUN {{.DepInstall}}
{{- end}}

ADD . /runbox/app
ENTRYPOINT [{{.Entrypoint}}]
`

// dockerignoreContent keeps VCS state, installed dependency trees, and
// runbox bookkeeping out of the build context so they never invalidate
// the content fingerprint.
const dockerignoreContent = `**/.git
**/.gitignore
**/node_modules
**/.runbox
*.pyc
`

var recipeTemplate = template.Must(template.New("Dockerfile").Parse(dockerfileTemplate))

type (
	// Recipe is a rendered container build recipe for one package.
	Recipe struct {
		// Dockerfile is the full recipe text
		Dockerfile string
		// Dockerignore is the matching build context exclusion list
		Dockerignore string
	}

	recipeData struct {
		BaseImage  string
		OSDeps     []string
		DepFile    string
		DepInstall string
		Entrypoint string
	}
)

// NewRecipe derives a build recipe from an analyzed package. It is a pure
// function of the package and the hasDepFile flag, so recipes can be
// inspected and tested without touching an engine.
func NewRecipe(p *pack.Package, hasDepFile bool) (*Recipe, error) {
	if !p.Complete() {
		return nil, &ConfigurationError{
			Field:  "package",
			Reason: "type, entrypoint and interpreter are all required to derive a build recipe",
		}
	}

	data := recipeData{
		BaseImage:  baseImageFor(p.Type),
		OSDeps:     p.Deps,
		Entrypoint: entrypointJSON(p),
	}
	if hasDepFile {
		switch p.Type {
		case pack.TypePython:
			data.DepFile = "requirements.txt"
			data.DepInstall = "pip install -r requirements.txt"
		case pack.TypeNode:
			data.DepFile = "package.json"
			data.DepInstall = "npm install"
		}
	}

	var sb strings.Builder
	if err := recipeTemplate.Execute(&sb, data); err != nil {
		return nil, fmt.Errorf("rendering build recipe: %w", err)
	}
	return &Recipe{Dockerfile: sb.String(), Dockerignore: dockerignoreContent}, nil
}

// DepFileFor returns the conventional dependency declaration file for a
// project type, empty when the type has none.
func DepFileFor(t pack.Type) string {
	switch t {
	case pack.TypePython:
		return "requirements.txt"
	case pack.TypeNode:
		return "package.json"
	default:
		return ""
	}
}

func baseImageFor(t pack.Type) string {
	switch t {
	case pack.TypePython:
		return "python:3.11-alpine"
	case pack.TypeNode:
		return "node:alpine"
	default:
		return "alpine"
	}
}

// entrypointJSON renders the exec-form ENTRYPOINT value. Interpreters
// recorded as "/usr/bin/env <cmd>" are collapsed to the bare command,
// since the image's PATH already resolves it.
func entrypointJSON(p *pack.Package) string {
	interpreter := strings.TrimPrefix(p.Interpreter, "/usr/bin/env ")
	parts := append(strings.Fields(interpreter), p.Entrypoint)
	quoted := make([]string, len(parts))
	for i, part := range parts {
		quoted[i] = strconv.Quote(part)
	}
	return strings.Join(quoted, ", ")
}
