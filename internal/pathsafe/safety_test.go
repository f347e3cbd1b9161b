// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package pathsafe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsDangerousPathForDeletion(t *testing.T) {
	dangerous := []string{"", "/", "\\", "C:", "f:"}
	for _, p := range dangerous {
		require.True(t, IsDangerousPathForDeletion(p), "expected dangerous: %q", p)
	}

	safe := []string{"/var/x", "/a/b/"}
	for _, p := range safe {
		require.False(t, IsDangerousPathForDeletion(p), "expected safe: %q", p)
	}
}

func TestCleanupEmptyParentDirsStopsAtBarrier(t *testing.T) {
	base := t.TempDir()
	sub1 := filepath.Join(base, "sub1")
	sub2 := filepath.Join(base, "sub1", "sub2")
	require.NoError(t, os.MkdirAll(sub2, 0o755))

	deleted := filepath.Join(sub2, "video.mp4")
	require.NoError(t, CleanupEmptyParentDirs(deleted, base))

	_, err := os.Stat(sub2)
	require.True(t, os.IsNotExist(err), "sub2 should have been removed")

	_, err = os.Stat(sub1)
	require.True(t, os.IsNotExist(err), "sub1 should have been removed")

	_, err = os.Stat(base)
	require.NoError(t, err, "base must be preserved")
}

func TestCleanupEmptyDirIfEmpty(t *testing.T) {
	base := t.TempDir()
	empty := filepath.Join(base, "empty")
	require.NoError(t, os.Mkdir(empty, 0o755))

	removed, err := CleanupEmptyDirIfEmpty(empty)
	require.NoError(t, err)
	require.True(t, removed)

	nonEmpty := filepath.Join(base, "nonempty")
	require.NoError(t, os.Mkdir(nonEmpty, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(nonEmpty, "f.txt"), []byte("x"), 0o644))

	removed, err = CleanupEmptyDirIfEmpty(nonEmpty)
	require.NoError(t, err)
	require.False(t, removed)
}

func TestConfineRelPathRejectsTraversal(t *testing.T) {
	root := t.TempDir()
	_, err := ConfineRelPath(root, "../escape")
	require.Error(t, err)

	_, err = ConfineRelPath(root, "sub\\dir")
	require.Error(t, err)

	resolved, err := ConfineRelPath(root, "videos/show")
	require.NoError(t, err)
	require.Contains(t, resolved, "videos")
}
