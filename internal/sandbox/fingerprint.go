// SPDX-License-Identifier: MPL-2.0

package sandbox

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"

	"runbox-cli/internal/pack"
)

// FingerprintLabel is the image label under which the build fingerprint
// is recorded, so a later run can tell whether the image is still
// current without rebuilding it.
const FingerprintLabel = "runbox.fingerprint"

// Fingerprint hashes the inputs that shape a build recipe: the project
// type, the entrypoint command, and the dependency declaration file's
// contents. Images whose recorded fingerprint matches can be reused
// as-is, which is what makes repeated runs near-instant.
func Fingerprint(p *pack.Package, root string) (string, error) {
	h := xxhash.New()
	io.WriteString(h, string(p.Type))
	io.WriteString(h, "\x00")
	io.WriteString(h, p.Interpreter)
	io.WriteString(h, "\x00")
	io.WriteString(h, p.Entrypoint)
	io.WriteString(h, "\x00")
	io.WriteString(h, strings.Join(p.Deps, ","))
	io.WriteString(h, "\x00")

	if depFile := DepFileFor(p.Type); depFile != "" {
		content, err := os.ReadFile(filepath.Join(root, depFile))
		if err != nil && !os.IsNotExist(err) {
			return "", fmt.Errorf("reading %s: %w", depFile, err)
		}
		h.Write(content)
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}
