// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package template

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vidsync/vidsync/internal/pathsafe"
)

// sidecarSuffixes are renamed by prefix match under the new stem when a
// video or page is relocated, per spec §4.7 step 5.
var sidecarSuffixes = []string{
	"-thumb.jpg", "-fanart.jpg", ".nfo", ".zh-CN.default.ass", ".srt", ".xml",
}

// LastSegment returns only the final '/'-delimited segment of a rendered
// path, used when the model template contains a separator but only the leaf
// folder name is needed so renaming an existing folder does not stack a
// duplicate parent directory (spec §4.7 step 2).
func LastSegment(rendered string) string {
	parts := strings.Split(rendered, "/")
	return parts[len(parts)-1]
}

// UniqueName appends increasing numeric suffixes to base until a name not
// present in existing is found, deterministically.
func UniqueName(base string, existing func(candidate string) bool) string {
	if !existing(base) {
		return base
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s (%d)", base, i)
		if !existing(candidate) {
			return candidate
		}
	}
}

func direxists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// AtomicRename performs the four-step move described in spec §4.7 step 3:
// old -> temp-in-source -> temp-in-target -> final, so a reader can never
// observe a half-moved tree and cross-subtree moves never collide with an
// in-flight write to either the source or destination directory.
//
// renameio's PendingFile model is built for durably writing new content
// (write-then-fsync-then-rename); it does not apply to relocating an
// already-written file or directory, so every hop here is a same-filesystem
// os.Rename, which POSIX already guarantees is atomic. The final hop's
// parent directory is explicitly fsynced for the same crash-durability
// guarantee renameio.PendingFile.CloseAtomicallyReplace gives new-content
// writers elsewhere in this tree.
func AtomicRename(oldPath, newPath string) error {
	if oldPath == newPath {
		return nil
	}

	srcDir := filepath.Dir(oldPath)
	dstDir := filepath.Dir(newPath)

	tempInSource := filepath.Join(srcDir, ".rename-tmp-"+filepath.Base(newPath))
	if err := os.Rename(oldPath, tempInSource); err != nil {
		return fmt.Errorf("rename to source-side temp: %w", err)
	}

	tempInTarget := tempInSource
	if srcDir != dstDir {
		if err := os.MkdirAll(dstDir, 0o755); err != nil {
			return fmt.Errorf("create destination dir: %w", err)
		}
		tempInTarget = filepath.Join(dstDir, ".rename-tmp-"+filepath.Base(newPath))
		if err := os.Rename(tempInSource, tempInTarget); err != nil {
			return fmt.Errorf("rename to target-side temp: %w", err)
		}
	}

	if err := os.Rename(tempInTarget, newPath); err != nil {
		return fmt.Errorf("rename to final path: %w", err)
	}
	return fsyncDir(dstDir)
}

// fsyncDir fsyncs a directory's entry table after a rename into it, the
// same durability step renameio.PendingFile performs before returning from
// CloseAtomicallyReplace.
func fsyncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}

// RenameSidecars renames every present side-car file sharing oldStem's
// prefix to newStem, resolving name conflicts by suffixing with
// conflictSuffix (the platform part id) and, if that still collides, a
// short timestamp.
func RenameSidecars(dir, oldStem, newStem, conflictSuffix string) error {
	for _, suffix := range sidecarSuffixes {
		oldPath := filepath.Join(dir, oldStem+suffix)
		if _, err := os.Stat(oldPath); err != nil {
			continue
		}

		newPath := filepath.Join(dir, newStem+suffix)
		if direxists(newPath) {
			newPath = filepath.Join(dir, fmt.Sprintf("%s-%s%s", newStem, conflictSuffix, suffix))
			if direxists(newPath) {
				newPath = filepath.Join(dir, fmt.Sprintf("%s-%s-%d%s", newStem, conflictSuffix, time.Now().Unix(), suffix))
			}
		}

		if err := os.Rename(oldPath, newPath); err != nil {
			return fmt.Errorf("rename sidecar %s: %w", oldPath, err)
		}
	}
	return nil
}

// ResolveTarget confines a rendered relative path under root and returns
// the absolute, symlink-resolved target, refusing traversal.
func ResolveTarget(root, rendered string) (string, error) {
	return pathsafe.ConfineRelPath(root, rendered)
}
