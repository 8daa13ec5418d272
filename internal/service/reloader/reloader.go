package reloader

import (
	"context"
	"fmt"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/webdeploy/internal/config"
	"github.com/oshokin/webdeploy/internal/domain/deploy"
	"github.com/oshokin/webdeploy/internal/logger"
	"github.com/oshokin/webdeploy/internal/service/common"
)

const (
	// defaultVerifyAttempts and defaultVerifyInterval bound the post-restart
	// process check; process managers may take a moment to bring the runtime back.
	defaultVerifyAttempts = 5
	defaultVerifyInterval = 500 * time.Millisecond
)

// Reloader restarts the application runtime, but only when cutover reported
// an actual change. Restart failure is fatal: a running but stale process is
// worse than a failed deployment that can be retried.
type Reloader struct {
	runner common.Runner
	cfg    config.ServiceConfig

	// processes lists running processes; overridable in tests.
	processes func() ([]ps.Process, error)

	verifyAttempts int
	verifyInterval time.Duration
}

// New creates a Reloader.
func New(runner common.Runner, cfg config.ServiceConfig) *Reloader {
	return &Reloader{
		runner:         runner,
		cfg:            cfg,
		processes:      ps.Processes,
		verifyAttempts: defaultVerifyAttempts,
		verifyInterval: defaultVerifyInterval,
	}
}

// ReloadIfChanged restarts the runtime when changed is true. When a process
// name is configured, the restart is verified: the runtime must actually be
// running afterwards, otherwise the restart counts as failed even though the
// command exited zero.
func (r *Reloader) ReloadIfChanged(ctx context.Context, changed bool) error {
	if !changed {
		logger.Info(ctx, "Live root unchanged, skipping service restart")
		return nil
	}

	logger.InfoKV(ctx, "Restarting application runtime", "command", r.cfg.RestartCommand)

	restartCtx := ctx

	if r.cfg.RestartTimeout > 0 {
		var cancel context.CancelFunc

		restartCtx, cancel = context.WithTimeout(ctx, r.cfg.RestartTimeout)
		defer cancel()
	}

	if err := r.runner.Run(restartCtx, r.cfg.RestartCommand); err != nil {
		return fmt.Errorf("%w: %w", deploy.ErrServiceReload, err)
	}

	if err := r.verifyRunning(ctx); err != nil {
		return err
	}

	logger.Info(ctx, "Application runtime restarted")

	return nil
}

// verifyRunning polls the process table for the configured process name.
func (r *Reloader) verifyRunning(ctx context.Context) error {
	if r.cfg.ProcessName == "" {
		return nil
	}

	for attempt := 1; attempt <= r.verifyAttempts; attempt++ {
		running, err := r.isProcessRunning()
		if err != nil {
			return fmt.Errorf("%w: list processes: %w", deploy.ErrServiceReload, err)
		}

		if running {
			return nil
		}

		if attempt < r.verifyAttempts {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %w", deploy.ErrServiceReload, ctx.Err())
			case <-time.After(r.verifyInterval):
			}
		}
	}

	return fmt.Errorf("%w: process %q not running after restart", deploy.ErrServiceReload, r.cfg.ProcessName)
}

// isProcessRunning reports whether any process matches the configured name.
func (r *Reloader) isProcessRunning() (bool, error) {
	processList, err := r.processes()
	if err != nil {
		return false, err
	}

	for _, process := range processList {
		if process.Executable() == r.cfg.ProcessName {
			return true, nil
		}
	}

	return false, nil
}
