package preparer

import (
	"context"
	"os"

	"github.com/oshokin/webdeploy/internal/domain/deploy"
	"github.com/oshokin/webdeploy/internal/logger"
)

// Exists reports whether the release is already fully materialized on disk:
// the release directory is present and carries the prepared marker.
//
// A directory without the marker means preparation was interrupted; treating
// it as absent forces re-preparation instead of cutting over to a half-built
// tree. Pure query, no side effects.
func Exists(ctx context.Context, release deploy.Release) bool {
	info, err := os.Stat(release.Path)
	if err != nil || !info.IsDir() {
		return false
	}

	if _, err = os.Stat(release.MarkerPath()); err != nil {
		logger.InfoKV(ctx, "Release directory present but not fully prepared",
			"release", release.Version, "path", release.Path)

		return false
	}

	return true
}
