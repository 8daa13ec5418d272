package maintenance

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oshokin/webdeploy/internal/domain/deploy"
)

// tabHeader marks the file as machine-managed.
const tabHeader = "# Managed by webdeploy. Do not edit by hand."

// tabFilePermissions matches what cron expects for cron.d entries.
const tabFilePermissions = 0o644

// disabledSuffix marks a suspended job's comment header.
const disabledSuffix = " (disabled)"

// crontab owns one cron.d-style file holding every managed job. Suspension
// and resumption rewrite the whole file from declared state, which makes both
// operations idempotent by construction: cron itself only ever sees a complete
// file in one of the two states.
type crontab struct {
	// path is the managed cron.d file.
	path string
	// jobs are the declared entries.
	jobs []deploy.ScheduledJob
}

// write renders the managed file with every job enabled or disabled.
// Disabled jobs stay in the file, commented out, so operators can see what
// is suspended and the next enable restores the exact same entries.
func (c *crontab) write(disabled bool) error {
	var b strings.Builder

	b.WriteString(tabHeader)
	b.WriteString("\n")

	for _, job := range c.jobs {
		b.WriteString("# job:")
		b.WriteString(job.Name)

		if disabled {
			b.WriteString(disabledSuffix)
		}

		b.WriteString("\n")

		line := fmt.Sprintf("%s %s %s", job.Schedule, job.User, job.Command)
		if job.User == "" {
			line = fmt.Sprintf("%s %s", job.Schedule, job.Command)
		}

		if disabled {
			b.WriteString("# ")
		}

		b.WriteString(line)
		b.WriteString("\n")
	}

	if err := os.WriteFile(filepath.Clean(c.path), []byte(b.String()), tabFilePermissions); err != nil {
		return fmt.Errorf("write crontab %s: %w", c.path, err)
	}

	return nil
}

// suspended reports whether the managed file currently holds disabled jobs.
// A missing file means nothing has been suspended yet.
func (c *crontab) suspended() (bool, error) {
	contents, err := os.ReadFile(filepath.Clean(c.path))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}

		return false, fmt.Errorf("read crontab %s: %w", c.path, err)
	}

	return strings.Contains(string(contents), disabledSuffix), nil
}
