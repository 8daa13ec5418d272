package deployer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/oshokin/webdeploy/internal/config"
	"github.com/oshokin/webdeploy/internal/domain/deploy"
	"github.com/oshokin/webdeploy/internal/logger"
	"github.com/oshokin/webdeploy/internal/repository/journal"
	"github.com/oshokin/webdeploy/internal/service/common"
	"github.com/oshokin/webdeploy/internal/service/cutover"
	"github.com/oshokin/webdeploy/internal/service/fetcher"
	"github.com/oshokin/webdeploy/internal/service/linker"
	"github.com/oshokin/webdeploy/internal/service/maintenance"
	"github.com/oshokin/webdeploy/internal/service/migrator"
	"github.com/oshokin/webdeploy/internal/service/preparer"
	"github.com/oshokin/webdeploy/internal/service/reloader"
)

// Step status values recorded in the journal.
const (
	stepOK      = "ok"
	stepSkipped = "skipped"
	stepFailed  = "failed"
)

// Options are inputs accepted by the deployer entry point.
type Options struct {
	// ConfigPath is the optional path to the deployment manifest.
	ConfigPath string
	// ConfigOnly forces ModeConfigOnly regardless of the manifest.
	ConfigOnly bool
}

// runner holds the wired services and mutable state for a single deployment.
// It is intentionally unexported; call Run(ctx, Options) from callers.
type runner struct {
	cfg     *config.Config
	mode    deploy.Mode
	release deploy.Release

	fetcher     *fetcher.Fetcher
	preparer    *preparer.Preparer
	maintenance *maintenance.Controller
	cutover     *cutover.Manager
	linker      *linker.Linker
	migrator    *migrator.Migrator
	reloader    *reloader.Reloader
	enforcer    *migrator.SQLEnforcer
	journal     journal.Repository

	// changed is the cutover result gating the service restart.
	changed bool
	record  journal.Record
}

// step is one pipeline stage. Its guard is an idempotency check: a step that
// finds its postcondition already satisfied reports skipped instead of
// running again.
type step struct {
	name string
	run  func(ctx context.Context) (skipped bool, err error)
}

// Run executes the full deployment pipeline and is the public entry point
// for the CLI.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "webdeploy")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	if level, ok := logger.ParseLogLevel(cfg.LogLevel); ok {
		logger.SetLevel(level)
	}

	r, err := newRunner(ctx, cfg, opts)
	if err != nil {
		return err
	}

	defer r.close()

	unlock, err := acquireLock(ctx, cfg.Paths.ReleasesRoot)
	if err != nil {
		return err
	}

	defer unlock()

	if err = r.run(ctx); err != nil {
		logger.ErrorKV(ctx, "Deployment failed", "error", err)
		return err
	}

	logger.InfoKV(ctx, "Deployment completed", "release", r.release.Version)

	return nil
}

// newRunner wires the services from the manifest.
func newRunner(ctx context.Context, cfg *config.Config, opts *Options) (*runner, error) {
	if err := os.MkdirAll(cfg.Paths.ReleasesRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create releases root: %w", err)
	}

	mode := cfg.Mode
	if opts.ConfigOnly {
		mode = deploy.ModeConfigOnly
	}

	execRunner := common.NewExecRunner()

	var (
		enforcer *migrator.SQLEnforcer
		err      error
	)

	if len(cfg.Settings) > 0 && cfg.Database.Host != "" {
		enforcer, err = migrator.OpenSQLEnforcer(cfg.Database.DSN(), cfg.Migrations.SettingsTable)
		if err != nil {
			return nil, err
		}
	}

	actor, err := common.DetectActor()
	if err != nil {
		return nil, err
	}

	release := deploy.NewRelease(cfg.Paths.ReleasesRoot, cfg.Release.Version)

	r := &runner{
		cfg:     cfg,
		mode:    mode,
		release: release,

		fetcher: fetcher.New(cfg.Paths.ScratchRoot, cfg.Release.FetchTimeout, cfg.Release.FetchRetries),
		preparer: preparer.New(
			preparer.NewTarExtractor(execRunner),
			cfg.Owner, cfg.AppConfig, cfg.Database,
		),
		maintenance: maintenance.NewController(cfg.Maintenance.FlagFile, cfg.Cron.TabFile, cfg.Cron.Jobs),
		cutover:     cutover.NewManager(cfg.Paths.LiveRoot),
		linker:      linker.New(),
		reloader:    reloader.New(execRunner, cfg.Service),
		enforcer:    enforcer,
		journal:     journal.NewFileRepository(filepath.Join(cfg.Paths.ReleasesRoot, journal.DefaultFilename)),

		record: journal.Record{
			RunID:     uuid.NewString(),
			Release:   cfg.Release.Version,
			Mode:      string(mode),
			Actor:     actor,
			StartedAt: time.Now().UTC(),
		},
	}

	var settingsEnforcer migrator.SettingsEnforcer
	if enforcer != nil {
		settingsEnforcer = enforcer
	}

	r.migrator = migrator.New(execRunner, settingsEnforcer, cfg.Migrations, cfg.Settings)

	logger.InfoKV(ctx, "Starting deployment",
		"run_id", r.record.RunID, "release", release.Version, "mode", mode)

	return r, nil
}

// run drives the pipeline and appends exactly one journal record.
func (r *runner) run(ctx context.Context) error {
	steps := []step{
		{name: "fetch-and-prepare", run: r.fetchAndPrepare},
		{name: "maintenance-enter", run: r.enterMaintenance},
		{name: "cutover", run: r.performCutover},
		{name: "shared-resources", run: r.reconcileSharedResources},
		{name: "service-reload", run: r.reloadService},
		{name: "migrate", run: r.migrate},
		{name: "maintenance-exit", run: r.exitMaintenance},
	}

	var runErr error

	for _, s := range steps {
		stepCtx := logger.WithKV(ctx, "step", s.name)

		skipped, err := s.run(stepCtx)

		switch {
		case err != nil:
			r.record.Steps = append(r.record.Steps, journal.StepResult{
				Name: s.name, Status: stepFailed, Error: err.Error(),
			})
			runErr = deploy.NewStepError(s.name, err)
		case skipped:
			r.record.Steps = append(r.record.Steps, journal.StepResult{Name: s.name, Status: stepSkipped})
		default:
			r.record.Steps = append(r.record.Steps, journal.StepResult{Name: s.name, Status: stepOK})
		}

		if runErr != nil {
			break
		}
	}

	r.record.FinishedAt = time.Now().UTC()
	r.record.Success = runErr == nil

	if err := r.journal.Append(ctx, r.record); err != nil {
		logger.WarnKV(ctx, "Unable to append journal record", "error", err)
	}

	return runErr
}

// close releases resources held for the run.
func (r *runner) close() {
	if r.enforcer != nil {
		_ = r.enforcer.Close()
	}
}

// fetchAndPrepare materializes the release unless it already exists.
// In config-only mode nothing is fetched, but the release must exist:
// cutover and relinking still need a valid live target.
func (r *runner) fetchAndPrepare(ctx context.Context) (bool, error) {
	if preparer.Exists(ctx, r.release) {
		logger.InfoKV(ctx, "Release already materialized, skipping fetch and prepare",
			"release", r.release.Version)

		return true, nil
	}

	if r.mode == deploy.ModeConfigOnly {
		return false, fmt.Errorf("release %s is not materialized; config-only mode cannot create it",
			r.release.Version)
	}

	artifactPath, cleanup, err := r.fetcher.Fetch(ctx, r.cfg.Release.ArtifactURL)
	if err != nil {
		return false, err
	}

	// The scratch workspace goes away whether or not extraction succeeds.
	defer cleanup()

	return false, r.preparer.Prepare(ctx, artifactPath, r.release)
}

// enterMaintenance opens the window before any live-state mutation.
func (r *runner) enterMaintenance(ctx context.Context) (bool, error) {
	return false, r.maintenance.Enter(ctx)
}

// performCutover atomically repoints the live root and records the result.
func (r *runner) performCutover(ctx context.Context) (bool, error) {
	changed, err := r.cutover.Cutover(ctx, r.release)
	if err != nil {
		return false, err
	}

	r.changed = changed

	return !changed, nil
}

// reconcileSharedResources relinks persistent state into the new tree.
func (r *runner) reconcileSharedResources(ctx context.Context) (bool, error) {
	if len(r.cfg.SharedResources) == 0 {
		return true, nil
	}

	return false, r.linker.Reconcile(ctx, r.release, r.cfg.SharedResources)
}

// reloadService restarts the runtime only when cutover changed the target.
func (r *runner) reloadService(ctx context.Context) (bool, error) {
	if !r.changed {
		return true, nil
	}

	return false, r.reloader.ReloadIfChanged(ctx, r.changed)
}

// migrate runs database work against the now-live release.
func (r *runner) migrate(ctx context.Context) (bool, error) {
	return false, r.migrator.Migrate(ctx)
}

// exitMaintenance closes the window. Reached only when migration succeeded;
// on any earlier failure the system deliberately stays in maintenance.
func (r *runner) exitMaintenance(ctx context.Context) (bool, error) {
	return false, r.maintenance.Exit(ctx)
}
