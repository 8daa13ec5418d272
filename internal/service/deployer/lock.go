package deployer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/webdeploy/internal/logger"
)

// LockFilename guards a releases root against concurrent deployments.
const LockFilename = "deploy.lock"

// lockFilePermissions restricts the lock to the deploying user.
const lockFilePermissions = 0o600

// errDeploymentRunning is returned when another live deployment holds the lock.
var errDeploymentRunning = errors.New("another deployment is already running")

// acquireLock takes the advisory lock under the releases root for the whole
// run, so two deployments can never interleave cutover and maintenance state.
//
// A lock left behind by a crashed run is detected by probing its recorded
// PID: when no such process exists the lock is stale and is replaced.
func acquireLock(ctx context.Context, releasesRoot string) (func(), error) {
	path := filepath.Join(releasesRoot, LockFilename)

	for attempt := 0; attempt < 2; attempt++ {
		file, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_EXCL|os.O_WRONLY, lockFilePermissions)
		if err == nil {
			if _, err = fmt.Fprintf(file, "%d\n", os.Getpid()); err != nil {
				_ = file.Close()
				_ = os.Remove(path)

				return nil, fmt.Errorf("write lock file: %w", err)
			}

			if err = file.Close(); err != nil {
				_ = os.Remove(path)

				return nil, fmt.Errorf("close lock file: %w", err)
			}

			release := func() {
				if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
					logger.WarnKV(ctx, "Unable to remove lock file", "path", path, "error", removeErr)
				}
			}

			return release, nil
		}

		if !os.IsExist(err) {
			return nil, fmt.Errorf("create lock file: %w", err)
		}

		stale, staleErr := isLockStale(path)
		if staleErr != nil {
			return nil, staleErr
		}

		if !stale {
			return nil, fmt.Errorf("%w: lock file %s", errDeploymentRunning, path)
		}

		logger.WarnKV(ctx, "Removing stale deployment lock", "path", path)

		if err = os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("remove stale lock: %w", err)
		}
	}

	return nil, fmt.Errorf("%w: lock file %s", errDeploymentRunning, path)
}

// isLockStale reports whether the process recorded in the lock file is gone.
func isLockStale(path string) (bool, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) {
			// Holder finished between our create attempt and this read.
			return true, nil
		}

		return false, fmt.Errorf("read lock file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(contents)))
	if err != nil {
		// Unparseable lock content counts as stale: nothing can own it.
		return true, nil //nolint:nilerr // Intentional, see comment above.
	}

	process, err := ps.FindProcess(pid)
	if err != nil {
		return false, fmt.Errorf("probe lock holder %d: %w", pid, err)
	}

	return process == nil, nil
}
