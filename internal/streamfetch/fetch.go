// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package streamfetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/vidsync/vidsync/internal/errkind"
)

// RangeFetch downloads url to targetPath using a single HTTP connection,
// resuming from targetPath's current size via a Range header if a partial
// file is already present. This is the step-2 fallback in spec §4.5's
// four-step download path, used when the parallel pool (C4) has no healthy
// instance (downloadpool.ErrNoHealthyInstance).
func RangeFetch(ctx context.Context, client *http.Client, url, targetPath string) error {
	if client == nil {
		client = http.DefaultClient
	}

	var resumeFrom int64
	if info, err := os.Stat(targetPath); err == nil {
		resumeFrom = info.Size()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errkind.New(errkind.RemoteTransient, "streamfetch.range_fetch", err)
	}
	if resumeFrom > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", resumeFrom))
	}

	resp, err := client.Do(req)
	if err != nil {
		return errkind.New(errkind.RemoteTransient, "streamfetch.range_fetch", err)
	}
	defer resp.Body.Close()

	flags := os.O_CREATE | os.O_WRONLY
	switch resp.StatusCode {
	case http.StatusPartialContent:
		flags |= os.O_APPEND
	case http.StatusOK:
		// Server ignored the Range request (or there was nothing to resume);
		// start over rather than appending onto a mismatched offset.
		flags |= os.O_TRUNC
	case http.StatusRequestedRangeNotSatisfiable:
		// targetPath is already complete.
		return nil
	default:
		return errkind.New(errkind.RemoteTransient, "streamfetch.range_fetch",
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	f, err := os.OpenFile(targetPath, flags, 0o644)
	if err != nil {
		return errkind.New(errkind.FilesystemRecoverable, "streamfetch.range_fetch", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return errkind.New(errkind.RemoteTransient, "streamfetch.range_fetch", err)
	}
	return nil
}
