package cutover

import (
	"context"
	"fmt"
	"os"

	"github.com/oshokin/webdeploy/internal/domain/deploy"
	"github.com/oshokin/webdeploy/internal/logger"
)

// tmpLinkSuffix names the staging symlink created next to the live root.
const tmpLinkSuffix = ".webdeploy-next"

// Manager owns the live indirection: the single symlink the web server and
// cron jobs resolve. All mutation goes through the atomic repoint here;
// nothing else in the pipeline touches the live root.
type Manager struct {
	// liveRoot is the symlink path readers follow.
	liveRoot string
}

// NewManager creates a Manager for the given live root.
func NewManager(liveRoot string) *Manager {
	return &Manager{liveRoot: liveRoot}
}

// Cutover atomically repoints the live root at the release and reports
// whether the target actually changed. A reader racing the swap observes
// either the old release or the new one, never a missing or partial link:
// the new symlink is staged under a temporary name and renamed over the
// live root in one step.
//
// The returned change flag gates the service restart: a no-op cutover must
// not bounce the runtime.
func (m *Manager) Cutover(ctx context.Context, release deploy.Release) (bool, error) {
	current, err := m.currentTarget()
	if err != nil {
		return false, err
	}

	if current == release.Path {
		logger.InfoKV(ctx, "Live root already points at release",
			"release", release.Version, "live", m.liveRoot)

		return false, nil
	}

	staging := m.liveRoot + tmpLinkSuffix
	if err = os.Remove(staging); err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("%w: remove stale staging link: %w", deploy.ErrCutover, err)
	}

	if err = os.Symlink(release.Path, staging); err != nil {
		return false, fmt.Errorf("%w: stage new link: %w", deploy.ErrCutover, err)
	}

	if err = os.Rename(staging, m.liveRoot); err != nil {
		_ = os.Remove(staging)

		return false, fmt.Errorf("%w: repoint live root: %w", deploy.ErrCutover, err)
	}

	logger.InfoKV(ctx, "Live root repointed",
		"live", m.liveRoot, "from", current, "to", release.Path)

	return true, nil
}

// Current returns the release path the live root resolves to, or "" when
// the live root does not exist yet.
func (m *Manager) Current() (string, error) {
	return m.currentTarget()
}

// currentTarget reads the live symlink. A live root that exists but is not a
// symlink is unmanageable: repointing it would require deleting real content,
// which this manager refuses to do.
func (m *Manager) currentTarget() (string, error) {
	info, err := os.Lstat(m.liveRoot)
	if err != nil {
		if os.IsNotExist(err) {
			// First provisioning: the link is created by the swap itself.
			return "", nil
		}

		return "", fmt.Errorf("%w: inspect live root: %w", deploy.ErrCutover, err)
	}

	if info.Mode()&os.ModeSymlink == 0 {
		return "", fmt.Errorf("%w: live root %s exists but is not a symlink", deploy.ErrCutover, m.liveRoot)
	}

	target, err := os.Readlink(m.liveRoot)
	if err != nil {
		return "", fmt.Errorf("%w: read live root: %w", deploy.ErrCutover, err)
	}

	return target, nil
}
