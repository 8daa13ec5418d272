package common

import (
	"fmt"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
)

// LookupOwner resolves a user and group name to numeric IDs.
// Empty names resolve to -1, which os.Chown treats as "leave unchanged".
func LookupOwner(userName, groupName string) (uid, gid int, err error) {
	uid, gid = -1, -1

	if userName != "" {
		u, lookupErr := user.Lookup(userName)
		if lookupErr != nil {
			return 0, 0, fmt.Errorf("lookup user %s: %w", userName, lookupErr)
		}

		if uid, err = strconv.Atoi(u.Uid); err != nil {
			return 0, 0, fmt.Errorf("parse uid for %s: %w", userName, err)
		}
	}

	if groupName != "" {
		g, lookupErr := user.LookupGroup(groupName)
		if lookupErr != nil {
			return 0, 0, fmt.Errorf("lookup group %s: %w", groupName, lookupErr)
		}

		if gid, err = strconv.Atoi(g.Gid); err != nil {
			return 0, 0, fmt.Errorf("parse gid for %s: %w", groupName, err)
		}
	}

	return uid, gid, nil
}

// ChownTree recursively changes ownership of root and everything under it.
// Symlinks themselves are reowned, not their targets.
func ChownTree(root string, uid, gid int) error {
	if uid < 0 && gid < 0 {
		return nil
	}

	return filepath.WalkDir(root, func(path string, _ fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if err = os.Lchown(path, uid, gid); err != nil {
			return fmt.Errorf("chown %s: %w", path, err)
		}

		return nil
	})
}
