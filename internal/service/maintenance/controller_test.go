package maintenance

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/webdeploy/internal/domain/deploy"
)

func testJobs() []deploy.ScheduledJob {
	return []deploy.ScheduledJob{
		{Name: "cleanup", Schedule: "*/5 * * * *", User: "www-data", Command: "php cron.php"},
		{Name: "reports", Schedule: "0 3 * * *", Command: "php reports.php"},
	}
}

func newTestController(t *testing.T) *Controller {
	t.Helper()

	dir := t.TempDir()

	return NewController(
		filepath.Join(dir, ".maintenance"),
		filepath.Join(dir, "cron.d-webapp"),
		testJobs(),
	)
}

// TestEnterExit_Roundtrip verifies entry then exit restores normal state.
func TestEnterExit_Roundtrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := newTestController(t)

	require.NoError(t, c.Enter(ctx))

	status, err := c.CurrentStatus(ctx)
	require.NoError(t, err)
	require.True(t, status.FlagRaised)
	require.True(t, status.JobsSuspended)

	require.NoError(t, c.Exit(ctx))

	status, err = c.CurrentStatus(ctx)
	require.NoError(t, err)
	require.False(t, status.FlagRaised)
	require.False(t, status.JobsSuspended)
}

// TestEnter_Idempotent verifies re-entering an open window is a no-op.
func TestEnter_Idempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := newTestController(t)

	require.NoError(t, c.Enter(ctx))
	require.NoError(t, c.Enter(ctx))

	status, err := c.CurrentStatus(ctx)
	require.NoError(t, err)
	require.True(t, status.FlagRaised)
	require.True(t, status.JobsSuspended)
}

// TestExit_Idempotent verifies exiting a closed window is a no-op.
func TestExit_Idempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := newTestController(t)

	require.NoError(t, c.Exit(ctx))
	require.NoError(t, c.Exit(ctx))

	status, err := c.CurrentStatus(ctx)
	require.NoError(t, err)
	require.False(t, status.FlagRaised)
}

// TestCrontab_DisabledJobsAreCommented verifies every job line is commented
// out in the suspended file and restored verbatim on resume.
func TestCrontab_DisabledJobsAreCommented(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	tabFile := filepath.Join(dir, "cron.d-webapp")
	c := NewController(filepath.Join(dir, ".maintenance"), tabFile, testJobs())

	require.NoError(t, c.Enter(ctx))

	contents, err := os.ReadFile(tabFile)
	require.NoError(t, err)
	require.Contains(t, string(contents), "# */5 * * * * www-data php cron.php")
	require.Contains(t, string(contents), "# 0 3 * * * php reports.php")

	require.NoError(t, c.Exit(ctx))

	contents, err = os.ReadFile(tabFile)
	require.NoError(t, err)

	for _, line := range strings.Split(string(contents), "\n") {
		if strings.Contains(line, "php cron.php") {
			require.Equal(t, "*/5 * * * * www-data php cron.php", line)
		}
	}

	require.Contains(t, string(contents), "0 3 * * * php reports.php")
}

// TestController_NoJobs verifies a manifest without cron jobs only toggles the flag.
func TestController_NoJobs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	tabFile := filepath.Join(dir, "cron.d-webapp")
	c := NewController(filepath.Join(dir, ".maintenance"), tabFile, nil)

	require.NoError(t, c.Enter(ctx))
	require.NoFileExists(t, tabFile)

	status, err := c.CurrentStatus(ctx)
	require.NoError(t, err)
	require.True(t, status.FlagRaised)
	require.False(t, status.JobsSuspended)

	require.NoError(t, c.Exit(ctx))
}
