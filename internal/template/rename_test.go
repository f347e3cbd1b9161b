// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package template

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLastSegment(t *testing.T) {
	require.Equal(t, "World", LastSegment("Hello/World"))
	require.Equal(t, "Solo", LastSegment("Solo"))
}

func TestUniqueNameNoCollision(t *testing.T) {
	require.Equal(t, "base", UniqueName("base", func(string) bool { return false }))
}

func TestUniqueNameWithCollisions(t *testing.T) {
	taken := map[string]bool{"base": true, "base (1)": true}
	got := UniqueName("base", func(c string) bool { return taken[c] })
	require.Equal(t, "base (2)", got)
}

func TestAtomicRenameSameDirectory(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "old.mp4")
	newPath := filepath.Join(dir, "new.mp4")
	require.NoError(t, os.WriteFile(oldPath, []byte("data"), 0o644))

	require.NoError(t, AtomicRename(oldPath, newPath))

	_, err := os.Stat(oldPath)
	require.True(t, os.IsNotExist(err))
	content, err := os.ReadFile(newPath)
	require.NoError(t, err)
	require.Equal(t, "data", string(content))
}

func TestAtomicRenameCrossDirectory(t *testing.T) {
	srcDir := t.TempDir()
	dstDir := t.TempDir()
	oldPath := filepath.Join(srcDir, "old.mp4")
	newPath := filepath.Join(dstDir, "sub", "new.mp4")
	require.NoError(t, os.WriteFile(oldPath, []byte("data"), 0o644))

	require.NoError(t, AtomicRename(oldPath, newPath))

	content, err := os.ReadFile(newPath)
	require.NoError(t, err)
	require.Equal(t, "data", string(content))
}

func TestRenameSidecarsConflictSuffix(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "old.nfo"), []byte("nfo"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.nfo"), []byte("existing"), 0o644))

	require.NoError(t, RenameSidecars(dir, "old", "new", "99"))

	content, err := os.ReadFile(filepath.Join(dir, "new-99.nfo"))
	require.NoError(t, err)
	require.Equal(t, "nfo", string(content))
}

func TestWriteSidecarContentDurable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "video.nfo")
	require.NoError(t, WriteSidecarContent(path, []byte("<nfo/>")))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "<nfo/>", string(content))
}

func TestNoopTitleRewriter(t *testing.T) {
	rewritten, renamed, err := NoopTitleRewriter{}.Rewrite(context.Background(), "video_name", "Original")
	require.NoError(t, err)
	require.False(t, renamed)
	require.Equal(t, "Original", rewritten)
}
