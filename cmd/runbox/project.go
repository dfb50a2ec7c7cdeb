// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"os"

	"runbox-cli/internal/meta"
	"runbox-cli/internal/pack"
	"runbox-cli/internal/sandbox"
	"runbox-cli/internal/source"
)

// newResolver builds the source resolver backed by the git cache under
// the configured runbox root.
func newResolver() *source.Resolver {
	return source.NewResolver(source.NewGitFetcher(cfg.CacheDir()))
}

// analyzeAndPersist runs the full generation pipeline for a materialized
// project root: analyze, apply overrides, generate a dependency file if
// needed, and persist the decision record. An analysis failure is fatal
// only when the overrides do not amount to a complete package on their
// own.
func analyzeAndPersist(ctx context.Context, root string, overrides pack.Overrides) (*pack.Package, error) {
	analysis, err := pack.Analyze(root)
	if analysis == nil {
		return nil, err
	}

	p := analysis.Package()
	overrides.Apply(p)
	if !p.Complete() {
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("analysis of %s is incomplete; supply --type, --entrypoint and --interpreter", root)
	}

	if p.Type == pack.TypePython && analysis.NeedsDepGeneration {
		generateDepFile(ctx, root)
	}

	if err := meta.NewStore(root).Save(p); err != nil {
		return nil, err
	}
	if err := sandbox.MaterializeRecipe(root, p); err != nil {
		return nil, err
	}
	return p, nil
}

// generateDepFile delegates Python dependency inference to the
// configured external tool. Failure is a warning, not an error: the
// project may genuinely have no dependencies.
func generateDepFile(ctx context.Context, root string) {
	gen := pack.NewDepFileGenerator(cfg.DepTool)
	if !gen.Available() {
		fmt.Fprintln(os.Stderr, WarningStyle.Render("Warning: ")+
			fmt.Sprintf("'%s' is not installed; continuing without a generated dependency file", cfg.DepTool))
		return
	}
	if err := gen.Generate(ctx, root); err != nil {
		fmt.Fprintln(os.Stderr, WarningStyle.Render("Warning: ")+
			fmt.Sprintf("dependency file generation failed: %v", err))
	}
}
