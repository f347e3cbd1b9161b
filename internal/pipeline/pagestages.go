// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vidsync/vidsync/internal/model"
	"github.com/vidsync/vidsync/internal/streamfetch"
	"github.com/vidsync/vidsync/internal/template"
)

// runPageMedia executes page sub-stage 0: resolve the page's stream
// manifest and fetch/mux the actual media file via streamfetch.Fetcher
// (spec §4.5). This is the one page sub-stage with no "nothing to do"
// escape hatch. A manifest error keeps its error kind, so a
// MediaManifestUnparseable result is fatal and terminal at once; a missing
// Fetcher or other unclassified failure is retried like any other
// stage-local failure.
func (p *Pipeline) runPageMedia(ctx context.Context, video model.Video, page *model.Page, dir string, opts Options) error {
	if p.Fetcher == nil {
		return fmt.Errorf("pipeline: no stream fetcher configured")
	}
	target := pageDir(dir, *page)
	if err := ensureDir(target); err != nil {
		return err
	}

	manifest, err := p.Manifest.PageManifest(ctx, video, *page)
	if err != nil {
		return fmt.Errorf("resolve stream manifest: %w", err)
	}

	stem := stemFor(video, *page)
	result, err := p.Fetcher.FetchPage(ctx, manifest, opts.StreamFilter, target, stem)
	if err != nil {
		return fmt.Errorf("fetch page media: %w", err)
	}

	page.FinalPath = result.FinalPath
	return nil
}

func stemFor(video model.Video, page model.Page) string {
	if page.Pid <= 1 {
		return video.Bvid
	}
	return fmt.Sprintf("%s-p%d", video.Bvid, page.Pid)
}

// runPageNFO executes page sub-stage 1: write the per-page NFO.
func (p *Pipeline) runPageNFO(ctx context.Context, video model.Video, page model.Page, dir string) error {
	target := pageDir(dir, page)
	if err := ensureDir(target); err != nil {
		return err
	}
	content := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<episodedetails>
  <title>%s</title>
  <season>1</season>
  <episode>%d</episode>
  <runtime>%d</runtime>
</episodedetails>
`, xmlEscape(page.Name), page.Pid, page.DurationSecs/60)
	return template.WriteSidecarContent(filepath.Join(target, stemFor(video, page)+".nfo"), []byte(content))
}

// runPageDanmaku executes page sub-stage 2: convert and write the danmaku
// sidecar, when the owning source enables it and the manifest has one.
func (p *Pipeline) runPageDanmaku(ctx context.Context, video model.Video, page model.Page, dir string, opts Options) error {
	if !opts.Flavour.IncludeDanmaku {
		return nil
	}
	raw, ok, err := p.Manifest.DanmakuXML(ctx, video, page)
	if err != nil {
		return fmt.Errorf("resolve danmaku: %w", err)
	}
	if !ok {
		return nil
	}
	ass, err := streamfetch.ConvertDanmakuToASS(raw)
	if err != nil {
		return err
	}
	target := pageDir(dir, page)
	return template.WriteSidecarContent(filepath.Join(target, stemFor(video, page)+".zh-CN.default.ass"), []byte(ass))
}

// runPageSubtitle executes page sub-stage 3: convert and write the subtitle
// sidecar, when the owning source enables it and the manifest has one.
func (p *Pipeline) runPageSubtitle(ctx context.Context, video model.Video, page model.Page, dir string, opts Options) error {
	if !opts.Flavour.IncludeSubtitles {
		return nil
	}
	raw, ok, err := p.Manifest.SubtitleJSON(ctx, video, page)
	if err != nil {
		return fmt.Errorf("resolve subtitle: %w", err)
	}
	if !ok {
		return nil
	}
	srt, err := streamfetch.ConvertSubtitleToSRT(raw)
	if err != nil {
		return err
	}
	target := pageDir(dir, page)
	return template.WriteSidecarContent(filepath.Join(target, stemFor(video, page)+".srt"), []byte(srt))
}

// runPageThumbnail executes page sub-stage 4: fetch the page's thumbnail
// image, when the manifest has one.
func (p *Pipeline) runPageThumbnail(ctx context.Context, video model.Video, page model.Page, dir string) error {
	url := page.ThumbnailURL
	ok := url != ""
	if !ok {
		var err error
		url, ok, err = p.Manifest.ThumbnailURL(ctx, video, page)
		if err != nil {
			return fmt.Errorf("resolve thumbnail: %w", err)
		}
	}
	if !ok || url == "" {
		return nil
	}

	raw, err := fetchCoverBytes(ctx, nil, url)
	if err != nil {
		return fmt.Errorf("fetch thumbnail: %w", err)
	}
	target := pageDir(dir, page)
	return os.WriteFile(filepath.Join(target, stemFor(video, page)+"-thumb.jpg"), raw, 0o644)
}
