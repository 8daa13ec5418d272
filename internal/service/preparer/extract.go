package preparer

import (
	"context"
	"fmt"

	"github.com/oshokin/webdeploy/internal/domain/deploy"
	"github.com/oshokin/webdeploy/internal/service/common"
)

// Extractor unpacks a release artifact into a directory.
type Extractor interface {
	Extract(ctx context.Context, archivePath, destDir string) error
}

// TarExtractor invokes the system tar, which is the boundary contract for
// extraction: exit code zero means the tree is complete.
type TarExtractor struct {
	runner common.Runner
}

// NewTarExtractor returns an Extractor backed by the system tar.
func NewTarExtractor(runner common.Runner) *TarExtractor {
	return &TarExtractor{runner: runner}
}

// Extract unpacks the archive into destDir, stripping the artifact's single
// top-level directory so the release tree sits directly in destDir.
func (e *TarExtractor) Extract(ctx context.Context, archivePath, destDir string) error {
	argv := []string{"tar", "--extract", "--gzip",
		"--file", archivePath,
		"--directory", destDir,
		"--strip-components=1",
	}

	if err := e.runner.Run(ctx, argv); err != nil {
		return fmt.Errorf("%w: %w", deploy.ErrExtract, err)
	}

	return nil
}
