// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package pathsafe

import (
	"os"
	"path/filepath"
	"strings"
)

// NormaliseFilePath maps backslashes to forward slashes and strips a
// trailing slash, per spec §4.9.
func NormaliseFilePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	for len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

// IsDangerousPathForDeletion rejects removal of the filesystem root, an
// empty path, or a bare drive letter such as "C:" or "f:".
func IsDangerousPathForDeletion(p string) bool {
	n := NormaliseFilePath(p)
	if n == "" || n == "/" {
		return true
	}
	if len(n) == 2 && n[1] == ':' {
		c := n[0]
		if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') {
			return true
		}
	}
	return false
}

// CleanupEmptyParentDirs ascends the parents of deleted, removing each
// directory that is empty, halting when it reaches (or would ascend past)
// stopAt. stopAt itself is never removed.
func CleanupEmptyParentDirs(deleted, stopAt string) error {
	stopAt = filepath.Clean(stopAt)
	dir := filepath.Dir(filepath.Clean(deleted))

	for {
		if dir == stopAt || dir == "." || dir == string(filepath.Separator) {
			return nil
		}
		rel, err := filepath.Rel(stopAt, dir)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return nil
		}

		removed, err := CleanupEmptyDirIfEmpty(dir)
		if err != nil {
			return err
		}
		if !removed {
			return nil
		}
		dir = filepath.Dir(dir)
	}
}

// CleanupEmptyDirIfEmpty deletes dir only if it contains no entries. It
// reports whether the directory was removed.
func CleanupEmptyDirIfEmpty(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if len(entries) > 0 {
		return false, nil
	}
	if err := os.Remove(dir); err != nil {
		return false, err
	}
	return true, nil
}
