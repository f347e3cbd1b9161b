// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"

	"github.com/vidsync/vidsync/internal/errkind"
)

// coverThumbWidth/coverFanartWidth pick the two cover variants spec §4.3
// names: a poster-ratio thumb and a wide fanart background, grounded on
// djryanj-media-viewer's imaging.Resize(img, w, h, imaging.Lanczos) thumbnail
// pipeline.
const (
	coverThumbWidth   = 400
	coverFanartWidth  = 1920
	coverHTTPTimeout  = 15 * time.Second
)

// fetchCoverBytes downloads the source cover image. Grounded on
// djryanj-media-viewer's imaging.Decode(bytes.NewReader(...)) pattern for
// decoding an in-memory buffer rather than a file on disk.
func fetchCoverBytes(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if client == nil {
		client = &http.Client{Timeout: coverHTTPTimeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cover fetch: unexpected status %d", resp.StatusCode)
	}
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeCoverVariants decodes raw cover image bytes and writes the
// thumb/fanart variants named per spec §4.3 ("<series>-thumb.jpg" /
// "<series>-fanart.jpg", or poster.jpg/folder.jpg at a season-layout tree
// root). thumbName and fanartName are the file names written inside dir.
func writeCoverVariants(raw []byte, dir string, thumbName, fanartName string) error {
	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return errkind.New(errkind.MediaManifestUnparseable, "pipeline.cover", fmt.Errorf("decode cover image: %w", err))
	}

	bounds := img.Bounds()
	thumbHeight := 0
	if bounds.Dx() > 0 {
		thumbHeight = bounds.Dy() * coverThumbWidth / bounds.Dx()
	}
	thumb := imaging.Resize(img, coverThumbWidth, thumbHeight, imaging.Lanczos)
	if err := imaging.Save(thumb, filepath.Join(dir, thumbName)); err != nil {
		return errkind.New(errkind.FilesystemRecoverable, "pipeline.cover", fmt.Errorf("save thumb: %w", err))
	}

	fanartHeight := 0
	if bounds.Dx() > 0 {
		fanartHeight = bounds.Dy() * coverFanartWidth / bounds.Dx()
	}
	fanart := imaging.Fit(img, coverFanartWidth, fanartHeight, imaging.Lanczos)
	if err := imaging.Save(fanart, filepath.Join(dir, fanartName)); err != nil {
		return errkind.New(errkind.FilesystemRecoverable, "pipeline.cover", fmt.Errorf("save fanart: %w", err))
	}
	return nil
}

func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}
