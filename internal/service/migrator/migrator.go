package migrator

import (
	"context"
	"fmt"

	"github.com/oshokin/webdeploy/internal/config"
	"github.com/oshokin/webdeploy/internal/domain/deploy"
	"github.com/oshokin/webdeploy/internal/logger"
	"github.com/oshokin/webdeploy/internal/service/common"
)

// Migrator runs the post-cutover database work against the now-live release:
// optional first-time setup, ordered schema upgrades, settings enforcement
// and cache invalidation. The external tools are judged by exit code only.
type Migrator struct {
	runner   common.Runner
	enforcer SettingsEnforcer
	cfg      config.MigrationsConfig
	settings []deploy.SettingEntry
}

// New creates a Migrator. enforcer may be nil when no settings are declared.
func New(runner common.Runner, enforcer SettingsEnforcer, cfg config.MigrationsConfig, settings []deploy.SettingEntry) *Migrator {
	return &Migrator{
		runner:   runner,
		enforcer: enforcer,
		cfg:      cfg,
		settings: settings,
	}
}

// Migrate performs, in order: bootstrap setup (only when enabled in the
// manifest), the upgrade sequence, settings enforcement and cache flush.
//
// Setup and upgrade failures are fatal and abort before enforcement and
// flush. Enforcement failure is configuration drift, logged but not fatal.
// Cache-flush failure is fatal: a stale cache against a migrated schema
// would corrupt responses.
func (m *Migrator) Migrate(ctx context.Context) error {
	if m.cfg.Bootstrap {
		if len(m.cfg.SetupCommand) == 0 {
			return fmt.Errorf("%w: bootstrap enabled but no setup command declared", deploy.ErrMigration)
		}

		logger.Warn(ctx, "Bootstrap enabled, running destructive first-time setup")

		if err := m.runner.Run(ctx, m.cfg.SetupCommand); err != nil {
			return fmt.Errorf("%w: first-time setup: %w", deploy.ErrMigration, err)
		}
	}

	for i, command := range m.cfg.UpgradeCommands {
		logger.InfoKV(ctx, "Running upgrade command",
			"index", i+1, "total", len(m.cfg.UpgradeCommands), "command", command)

		if err := m.runner.Run(ctx, command); err != nil {
			return fmt.Errorf("%w: upgrade command %d: %w", deploy.ErrMigration, i+1, err)
		}
	}

	m.enforceSettings(ctx)

	if len(m.cfg.CacheFlushCommand) > 0 {
		logger.Info(ctx, "Flushing application caches")

		if err := m.runner.Run(ctx, m.cfg.CacheFlushCommand); err != nil {
			return fmt.Errorf("%w: cache flush: %w", deploy.ErrMigration, err)
		}
	}

	return nil
}

// enforceSettings applies the declared configuration rows. Failures are
// reported as drift, not as migration failure.
func (m *Migrator) enforceSettings(ctx context.Context) {
	if len(m.settings) == 0 {
		return
	}

	if m.enforcer == nil {
		logger.Warn(ctx, "Settings declared but no database configured, skipping enforcement")
		return
	}

	logger.InfoKV(ctx, "Enforcing configuration rows", "count", len(m.settings))

	if err := m.enforcer.Enforce(ctx, m.settings); err != nil {
		logger.WarnKV(ctx, "Configuration drift: settings enforcement failed", "error", err)
	}
}
