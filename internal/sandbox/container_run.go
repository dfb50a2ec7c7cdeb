// SPDX-License-Identifier: MPL-2.0

package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"runbox-cli/internal/container"
	"runbox-cli/internal/meta"
	"runbox-cli/internal/pack"
)

// runContainer executes the entrypoint inside a container. The image is
// rebuilt only when the recipe fingerprint changed or a refresh was
// requested; otherwise the existing image is reused as-is.
func (e *Executor) runContainer(ctx context.Context, req *Request, env []string) (int, error) {
	engine := e.engine
	if engine == nil {
		detected, err := container.AutoDetectEngine()
		if err != nil {
			return 0, err
		}
		engine = detected
	}

	image := ImageName(req.Root, req.Config.Reference.Tag)
	fingerprint, err := Fingerprint(req.Pack, req.Root)
	if err != nil {
		return 0, err
	}

	if e.needsBuild(ctx, engine, image, fingerprint, req.Config.Reference.Refresh) {
		if err := e.build(ctx, engine, req, image, fingerprint); err != nil {
			return 0, err
		}
	} else {
		slog.Debug("reusing image", "image", image, "fingerprint", fingerprint)
	}

	e.setState(StateRunning)
	result, err := engine.Run(ctx, container.RunOptions{
		Image:       image,
		Args:        req.Config.Args,
		Env:         env,
		Volumes:     req.Config.FSMaps,
		Ports:       req.Config.PortMaps,
		Network:     req.Config.Network,
		Name:        containerName(),
		Remove:      true,
		Interactive: req.Config.Interactive,
		GracePeriod: e.gracePeriod,
		Stdin:       e.stdin,
		Stdout:      e.stdout,
		Stderr:      e.stderr,
	})
	if err != nil {
		return 0, err
	}
	if result.Error != nil && ctx.Err() == nil {
		return 0, fmt.Errorf("running container: %w", result.Error)
	}
	return result.ExitCode, nil
}

// needsBuild decides whether the image can be reused. A missing image, a
// changed fingerprint, or an explicit refresh all force a rebuild.
func (e *Executor) needsBuild(ctx context.Context, engine container.Engine, image, fingerprint string, refresh bool) bool {
	if refresh {
		return true
	}
	exists, err := engine.ImageExists(ctx, image)
	if err != nil || !exists {
		return true
	}
	recorded, err := engine.ImageLabel(ctx, image, FingerprintLabel)
	if err != nil {
		return true
	}
	return recorded != fingerprint
}

// MaterializeRecipe renders the build recipe for p and writes it under
// root: the Dockerfile into the metadata directory and the context
// exclusion list at the root. Both files are regenerated wholesale.
func MaterializeRecipe(root string, p *pack.Package) error {
	depFile := DepFileFor(p.Type)
	hasDepFile := depFile != "" && fileExists(filepath.Join(root, depFile))
	recipe, err := NewRecipe(p, hasDepFile)
	if err != nil {
		return err
	}

	recipeDir := filepath.Join(root, meta.DirName)
	if err := os.MkdirAll(recipeDir, 0o755); err != nil {
		return fmt.Errorf("creating recipe directory: %w", err)
	}
	recipePath := filepath.Join(recipeDir, "Dockerfile")
	if err := os.WriteFile(recipePath, []byte(recipe.Dockerfile), 0o644); err != nil {
		return fmt.Errorf("writing build recipe: %w", err)
	}
	ignorePath := filepath.Join(root, ".dockerignore")
	if err := os.WriteFile(ignorePath, []byte(recipe.Dockerignore), 0o644); err != nil {
		return fmt.Errorf("writing build context exclusions: %w", err)
	}
	return nil
}

// build renders the recipe into the project's metadata directory and
// hands the project root to the engine as build context. The fingerprint
// is recorded as an image label for the next run's reuse check.
func (e *Executor) build(ctx context.Context, engine container.Engine, req *Request, image, fingerprint string) error {
	e.setState(StateBuilding)
	slog.Debug("building image", "image", image, "fingerprint", fingerprint, "engine", engine.Name())

	if err := MaterializeRecipe(req.Root, req.Pack); err != nil {
		return err
	}

	err := engine.Build(ctx, container.BuildOptions{
		ContextDir: req.Root,
		Dockerfile: filepath.Join(meta.DirName, "Dockerfile"),
		Tag:        image,
		Labels:     map[string]string{FingerprintLabel: fingerprint},
		Stdout:     e.stdout,
		Stderr:     e.stderr,
	})
	if err != nil {
		return &BuildError{Image: image, Reason: err.Error()}
	}
	return nil
}

// containerName gives each run a unique container name so concurrent
// runs of the same project never collide.
func containerName() string {
	return "runbox-" + uuid.NewString()[:8]
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
