package preparer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oshokin/webdeploy/internal/config"
	"github.com/oshokin/webdeploy/internal/domain/deploy"
	"github.com/oshokin/webdeploy/internal/logger"
	"github.com/oshokin/webdeploy/internal/service/common"
)

// releaseDirPermissions is applied when the release directory is created.
const releaseDirPermissions = 0o755

// Preparer turns a fetched artifact into a complete release directory:
// extracted tree, correct ownership, rendered configuration, prepared marker.
type Preparer struct {
	extractor Extractor
	owner     config.OwnerConfig
	appConfig config.AppConfig
	database  config.DatabaseConfig
}

// New creates a Preparer.
func New(extractor Extractor, owner config.OwnerConfig, appConfig config.AppConfig, database config.DatabaseConfig) *Preparer {
	return &Preparer{
		extractor: extractor,
		owner:     owner,
		appConfig: appConfig,
		database:  database,
	}
}

// Prepare materializes the release from the artifact. Every step is
// independently idempotent, so re-running over a partially prepared
// directory re-extracts and re-renders. The prepared marker is written
// last; until then the release is not a valid cutover target.
func (p *Preparer) Prepare(ctx context.Context, artifactPath string, release deploy.Release) error {
	// A stale marker from an older tree must not survive re-preparation.
	if err := os.Remove(release.MarkerPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale marker: %w", err)
	}

	if err := os.MkdirAll(release.Path, releaseDirPermissions); err != nil {
		return fmt.Errorf("create release directory: %w", err)
	}

	logger.InfoKV(ctx, "Extracting artifact", "artifact", artifactPath, "release", release.Version)

	if err := p.extractor.Extract(ctx, artifactPath, release.Path); err != nil {
		return err
	}

	if err := p.applyOwnership(ctx, release); err != nil {
		return err
	}

	if err := p.renderConfig(ctx, release); err != nil {
		return err
	}

	if err := os.WriteFile(release.MarkerPath(), []byte(release.Version+"\n"), 0o644); err != nil {
		return fmt.Errorf("write prepared marker: %w", err)
	}

	logger.InfoKV(ctx, "Release prepared", "release", release.Version, "path", release.Path)

	return nil
}

// applyOwnership recursively reowns the release tree to the declared account.
func (p *Preparer) applyOwnership(ctx context.Context, release deploy.Release) error {
	uid, gid, err := common.LookupOwner(p.owner.User, p.owner.Group)
	if err != nil {
		return err
	}

	if uid < 0 && gid < 0 {
		logger.Debug(ctx, "No owner declared, leaving release ownership unchanged")
		return nil
	}

	if err = common.ChownTree(release.Path, uid, gid); err != nil {
		return fmt.Errorf("set release ownership: %w", err)
	}

	return nil
}

// renderConfig renders the release-scoped configuration file, when declared.
func (p *Preparer) renderConfig(ctx context.Context, release deploy.Release) error {
	if p.appConfig.Template == "" {
		logger.Debug(ctx, "No app config template declared, skipping rendering")
		return nil
	}

	outputPath := filepath.Join(release.Path, p.appConfig.Output)

	logger.InfoKV(ctx, "Rendering release configuration",
		"template", p.appConfig.Template, "output", outputPath)

	return renderAppConfig(p.appConfig.Template, outputPath, TemplateContext(p.database))
}
