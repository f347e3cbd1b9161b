// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/vidsync/vidsync/internal/model"
	"github.com/vidsync/vidsync/internal/template"
)

// runCover executes stage 0: fetch and resize the video's cover image into
// the two on-disk variants spec §4.3 names, choosing the season-layout
// naming (poster.jpg/folder.jpg) when opts.SeasonLayout is set.
func (p *Pipeline) runCover(ctx context.Context, video model.Video, dir string, opts Options) error {
	if video.CoverURL == "" {
		return nil // nothing to do is a valid idempotent success
	}
	if err := ensureDir(dir); err != nil {
		return err
	}

	raw, err := fetchCoverBytes(ctx, nil, video.CoverURL)
	if err != nil {
		return fmt.Errorf("fetch cover: %w", err)
	}

	thumbName, fanartName := video.Bvid+"-thumb.jpg", video.Bvid+"-fanart.jpg"
	if opts.SeasonLayout {
		thumbName, fanartName = "poster.jpg", "folder.jpg"
	}
	return writeCoverVariants(raw, dir, thumbName, fanartName)
}

// runInfoNFO executes stage 1: render a Kodi-style NFO describing the video
// and write it durably via template.WriteSidecarContent.
func (p *Pipeline) runInfoNFO(ctx context.Context, video model.Video, dir string) error {
	if err := ensureDir(dir); err != nil {
		return err
	}
	content := renderVideoNFO(video)
	path := filepath.Join(dir, video.Bvid+".nfo")
	return template.WriteSidecarContent(path, []byte(content))
}

// renderVideoNFO builds a minimal Kodi-compatible NFO document whose root
// element is always episodedetails. No NFO schema file survived into original_source, so the field
// set here is drawn directly from spec §4.3's Video/Page model rather than
// translated from the original implementation.
func renderVideoNFO(video model.Video) string {
	root := "episodedetails"
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<%s>
  <title>%s</title>
  <uniqueid type="bvid">%s</uniqueid>
  <studio>%s</studio>
  <premiered>%s</premiered>
  <dateadded>%s</dateadded>
</%s>
`,
		root,
		xmlEscape(video.Title),
		xmlEscape(video.Bvid),
		xmlEscape(video.UploaderName),
		video.PublishedAt.Format("2006-01-02"),
		video.CreatedAt.Format("2006-01-02 15:04:05"),
		root,
	)
}

// runUploaderAsset executes stage 2: fetch the uploader's avatar into
// upper_path, when the manifest provider has one. Absence of a provider or
// of platform avatar data is a valid idempotent success ("nothing to
// fetch"), since Video carries no avatar URL field of its own (spec's model
// table has none) and a concrete platform binding is an external
// collaborator.
func (p *Pipeline) runUploaderAsset(ctx context.Context, video model.Video, dir string) error {
	url, ok, err := p.Manifest.UploaderAvatarURL(ctx, video)
	if err != nil {
		return fmt.Errorf("resolve uploader avatar: %w", err)
	}
	if !ok || url == "" {
		return nil
	}
	if err := ensureDir(filepath.Join(dir, "upper_path")); err != nil {
		return err
	}

	raw, err := fetchCoverBytes(ctx, nil, url)
	if err != nil {
		return fmt.Errorf("fetch uploader avatar: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, "upper_path", strconv.FormatInt(video.UploaderID, 10)+".jpg"), raw, 0o644)
}

// runSeriesMetadata executes stage 3: write tvshow.nfo at the tree root when
// the source uses season layout. Not using season layout is a valid
// idempotent success.
func (p *Pipeline) runSeriesMetadata(ctx context.Context, video model.Video, dir string, opts Options) error {
	if !opts.SeasonLayout {
		return nil
	}
	if err := ensureDir(dir); err != nil {
		return err
	}
	content := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<tvshow>
  <title>%s</title>
  <studio>%s</studio>
</tvshow>
`, xmlEscape(video.Title), xmlEscape(video.UploaderName))
	return template.WriteSidecarContent(filepath.Join(dir, "tvshow.nfo"), []byte(content))
}

var xmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")

func xmlEscape(s string) string {
	return xmlEscaper.Replace(s)
}
