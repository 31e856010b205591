// Package artifact computes the release image filenames and writes the
// per-board output manifest.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/boardci/boardci/internal/cierrors"
	"github.com/boardci/boardci/internal/osrelease"
)

// ManifestName is the manifest file inside the board's output
// subdirectory.
const ManifestName = "latest-images.txt"

// Manifest is the ordered pair of produced image filenames.
type Manifest struct {
	GzipImage string
	XzImage   string
}

// ImageNames computes the image filenames for a build.
func ImageNames(product, board, version string) Manifest {
	base := fmt.Sprintf("%s-%s-%s.img", product, board, version)
	return Manifest{GzipImage: base + ".gz", XzImage: base + ".xz"}
}

// Reporter writes the output manifest after a successful release phase.
type Reporter struct {
	checkoutDir string
	outputDir   string
}

// NewReporter creates a reporter reading version info from checkoutDir
// and writing the manifest into the board's output directory.
func NewReporter(checkoutDir, outputDir string) *Reporter {
	return &Reporter{checkoutDir: checkoutDir, outputDir: outputDir}
}

// Report parses the version-info resource, computes the image names and
// writes the two-line manifest. A missing resource or product-name key
// is fatal rather than degrading to a malformed filename.
func (r *Reporter) Report(board, version string) (Manifest, error) {
	info, err := osrelease.ParseFile(filepath.Join(r.checkoutDir, osrelease.FileName))
	if err != nil {
		return Manifest{}, cierrors.Wrap(cierrors.KindArtifact, "failed to read version info", err)
	}
	product, err := info.ProductName()
	if err != nil {
		return Manifest{}, cierrors.Wrap(cierrors.KindArtifact, "invalid version info", err)
	}

	m := ImageNames(product, board, version)
	if err := WriteManifest(filepath.Join(r.outputDir, ManifestName), m); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// WriteManifest writes the manifest: the gzip filename as the first
// (truncating) line, the xz filename appended as the second, both
// newline-terminated.
func WriteManifest(path string, m Manifest) error {
	content := m.GzipImage + "\n" + m.XzImage + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return cierrors.Wrap(cierrors.KindArtifact, "failed to write manifest", err)
	}
	return nil
}
