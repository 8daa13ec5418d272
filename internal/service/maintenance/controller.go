package maintenance

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oshokin/webdeploy/internal/domain/deploy"
	"github.com/oshokin/webdeploy/internal/logger"
)

// flagFilePermissions lets the application (running as another user) read the flag.
const flagFilePermissions = 0o644

// Status describes the two facets of the maintenance window.
type Status struct {
	// FlagRaised is true when the application-visible flag file exists.
	FlagRaised bool
	// JobsSuspended is true when the managed cron jobs are disabled.
	JobsSuspended bool
}

// Controller toggles the maintenance window: a flag file the application
// consults and the suspended state of the managed cron jobs.
//
// Invariant: whenever the flag is raised, every managed job is suspended.
// Enter suspends jobs before raising the flag; Exit lowers the flag before
// resuming jobs. Both directions are idempotent, so a re-run after a crash
// mid-window proceeds instead of erroring.
type Controller struct {
	flagFile string
	tab      *crontab
}

// NewController creates a Controller. tabFile may be empty when no jobs are declared.
func NewController(flagFile, tabFile string, jobs []deploy.ScheduledJob) *Controller {
	return &Controller{
		flagFile: flagFile,
		tab:      &crontab{path: tabFile, jobs: jobs},
	}
}

// Enter opens the maintenance window. Jobs are suspended first: a job firing
// between the flag check and its own suspension could otherwise mutate
// application state mid-release.
func (c *Controller) Enter(ctx context.Context) error {
	if len(c.tab.jobs) > 0 {
		logger.InfoKV(ctx, "Suspending scheduled jobs", "count", len(c.tab.jobs), "tab", c.tab.path)

		if err := c.tab.write(true); err != nil {
			return err
		}
	}

	return c.raiseFlag(ctx)
}

// Exit closes the maintenance window: flag down first, then jobs back on.
// Only invoked after migrations succeed; on failure the window stays open.
func (c *Controller) Exit(ctx context.Context) error {
	if err := c.lowerFlag(ctx); err != nil {
		return err
	}

	if len(c.tab.jobs) > 0 {
		logger.InfoKV(ctx, "Resuming scheduled jobs", "count", len(c.tab.jobs), "tab", c.tab.path)

		if err := c.tab.write(false); err != nil {
			return err
		}
	}

	return nil
}

// CurrentStatus reports the window state for the operator subcommand and
// for re-run detection.
func (c *Controller) CurrentStatus(_ context.Context) (Status, error) {
	var status Status

	if _, err := os.Stat(c.flagFile); err == nil {
		status.FlagRaised = true
	} else if !os.IsNotExist(err) {
		return status, fmt.Errorf("stat maintenance flag: %w", err)
	}

	suspended, err := c.tab.suspended()
	if err != nil {
		return status, err
	}

	status.JobsSuspended = suspended

	return status, nil
}

// raiseFlag creates the flag file. An already-raised flag is a no-op.
func (c *Controller) raiseFlag(ctx context.Context) error {
	if _, err := os.Stat(c.flagFile); err == nil {
		logger.Info(ctx, "Maintenance flag already raised")
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(c.flagFile), 0o755); err != nil {
		return fmt.Errorf("create flag directory: %w", err)
	}

	stamp := time.Now().UTC().Format(time.RFC3339) + "\n"
	if err := os.WriteFile(c.flagFile, []byte(stamp), flagFilePermissions); err != nil {
		return fmt.Errorf("raise maintenance flag: %w", err)
	}

	logger.InfoKV(ctx, "Maintenance flag raised", "flag", c.flagFile)

	return nil
}

// lowerFlag removes the flag file. An already-lowered flag is a no-op.
func (c *Controller) lowerFlag(ctx context.Context) error {
	err := os.Remove(c.flagFile)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("lower maintenance flag: %w", err)
	}

	if err == nil {
		logger.InfoKV(ctx, "Maintenance flag lowered", "flag", c.flagFile)
	}

	return nil
}
