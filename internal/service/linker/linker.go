package linker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/oshokin/webdeploy/internal/domain/deploy"
	"github.com/oshokin/webdeploy/internal/logger"
	"github.com/oshokin/webdeploy/internal/service/common"
)

// sourceDirPermissions is the fallback mode for created source directories.
const sourceDirPermissions = 0o755

// Linker reconciles shared-resource declarations into a release tree.
type Linker struct{}

// New creates a Linker.
func New() *Linker {
	return &Linker{}
}

// Reconcile processes each declaration sequentially: ensure the source
// exists, remove whatever occupies the destination, link destination to
// source. Resources are independent, so per-resource ordering is all the
// invariant needs.
//
// Source creation failure is tolerated (some sources are pre-existing
// external mounts the deploying user cannot create); delete and link
// failures are fatal. The destination always ends up a fresh link, never
// merged with prior content, so stale real files cannot accumulate inside
// a new release tree.
func (l *Linker) Reconcile(ctx context.Context, release deploy.Release, declarations []deploy.SharedResource) error {
	for _, declaration := range declarations {
		if err := l.reconcileOne(ctx, release, declaration); err != nil {
			return err
		}
	}

	return nil
}

// reconcileOne applies the ensure → delete → link sequence for one declaration.
func (l *Linker) reconcileOne(ctx context.Context, release deploy.Release, res deploy.SharedResource) error {
	if err := l.ensureSource(ctx, res); err != nil {
		// Non-fatal: the source may be an external mount that already
		// exists with ownership this process cannot reproduce.
		logger.WarnKV(ctx, "Unable to ensure shared resource source",
			"src", res.Src, "error", err)
	}

	dest := filepath.Join(release.Path, res.Dest)

	if err := os.RemoveAll(dest); err != nil {
		return fmt.Errorf("%w: clear destination %s: %w", deploy.ErrLinkReconcile, dest, err)
	}

	if err := os.MkdirAll(filepath.Dir(dest), sourceDirPermissions); err != nil {
		return fmt.Errorf("%w: create destination parent for %s: %w", deploy.ErrLinkReconcile, dest, err)
	}

	if err := os.Symlink(res.Src, dest); err != nil {
		return fmt.Errorf("%w: link %s -> %s: %w", deploy.ErrLinkReconcile, dest, res.Src, err)
	}

	logger.DebugKV(ctx, "Shared resource linked", "dest", dest, "src", res.Src)

	return nil
}

// ensureSource creates the source with the declared type, owner and mode
// when it does not exist yet, and enforces the mode when it does.
func (l *Linker) ensureSource(_ context.Context, res deploy.SharedResource) error {
	mode := os.FileMode(sourceDirPermissions)

	if res.Mode != "" {
		parsed, err := strconv.ParseUint(res.Mode, 8, 32)
		if err != nil {
			return fmt.Errorf("parse mode %q: %w", res.Mode, err)
		}

		mode = os.FileMode(parsed)
	}

	if _, err := os.Stat(res.Src); os.IsNotExist(err) {
		switch res.Type {
		case deploy.ResourceDirectory:
			if err = os.MkdirAll(res.Src, mode); err != nil {
				return fmt.Errorf("create source directory: %w", err)
			}
		case deploy.ResourceFile:
			if err = os.MkdirAll(filepath.Dir(res.Src), sourceDirPermissions); err != nil {
				return fmt.Errorf("create source parent: %w", err)
			}

			if err = os.WriteFile(res.Src, nil, mode); err != nil {
				return fmt.Errorf("create source file: %w", err)
			}
		}
	} else if err != nil {
		return fmt.Errorf("inspect source: %w", err)
	}

	// MkdirAll and WriteFile both honor umask; chmod enforces the exact mode.
	if err := os.Chmod(res.Src, mode); err != nil {
		return fmt.Errorf("set source mode: %w", err)
	}

	uid, gid, err := common.LookupOwner(res.Owner, res.Group)
	if err != nil {
		return err
	}

	if uid >= 0 || gid >= 0 {
		if err = os.Chown(res.Src, uid, gid); err != nil {
			return fmt.Errorf("set source ownership: %w", err)
		}
	}

	return nil
}
