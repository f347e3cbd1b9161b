// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package template

import (
	"fmt"

	"github.com/google/renameio/v2"
)

// WriteSidecarContent durably writes a side-car file's content (an .nfo,
// subtitle, or danmaku export) next to a video's final path, following the
// same write-then-fsync-then-rename pattern used elsewhere in this tree for
// durable output files: content only ever becomes visible at its final name
// once it is fully flushed to disk.
func WriteSidecarContent(path string, data []byte) error {
	pendingFile, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("create pending sidecar file %s: %w", path, err)
	}
	defer pendingFile.Cleanup()

	if _, err := pendingFile.Write(data); err != nil {
		return fmt.Errorf("write sidecar content %s: %w", path, err)
	}

	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace sidecar file %s: %w", path, err)
	}
	return nil
}
