// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vidsync/vidsync/internal/model"
)

// runPagesStage executes stage 4: fan out across every page of video,
// running each page's own five-stage status word concurrently (bounded by
// concurrent_page), then aggregates the result back into the video's own
// stage-4 field per spec §4.3's regression rule.
func (p *Pipeline) runPagesStage(ctx context.Context, logger *zerolog.Logger, video model.Video, dir string, opts Options) error {
	pages, err := p.Store.PagesForVideo(ctx, video.ID)
	if err != nil {
		return fmt.Errorf("list pages: %w", err)
	}

	var mu sync.Mutex
	anyRegressed := false

	g, gctx := errgroup.WithContext(ctx)
	for i := range pages {
		page := pages[i]
		g.Go(func() error {
			regressed, err := p.processPage(gctx, logger, video, page, dir, opts)
			if err != nil {
				return err
			}
			if regressed {
				mu.Lock()
				anyRegressed = true
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	return p.aggregatePagesStage(ctx, video, anyRegressed)
}

// aggregatePagesStage implements spec §4.3's "Stage 4 aggregates" rule: the
// video's own stage-4 field is set to 0 whenever any owned page regressed or
// any page is not fully done, and to terminal success only once every page's
// media sub-stage is done and no page still reports a failure.
func (p *Pipeline) aggregatePagesStage(ctx context.Context, video model.Video, anyRegressed bool) error {
	refreshed, err := p.Store.PagesForVideo(ctx, video.ID)
	if err != nil {
		return err
	}

	allDone := len(refreshed) > 0
	for _, pg := range refreshed {
		if pg.DownloadStatus.HasFailure() || pg.DownloadStatus.Get(PageStageMedia) != model.StatusDone {
			allDone = false
		}
	}

	newStagePages := uint8(model.StatusDone)
	if anyRegressed || !allDone {
		newStagePages = 0
	}

	current := video.DownloadStatus
	if current.Get(StagePages) == newStagePages {
		return nil
	}
	return p.Store.UpdateVideoStatus(ctx, video.ID, current.Set(StagePages, newStagePages))
}

// processPage advances one page through its own five-stage status word,
// acquiring the concurrent_page gate for the duration. It reports whether
// the page's status regressed (a field that had reached terminal success
// fell back to in-progress or failed), the signal the stage-4 aggregation
// rule needs.
func (p *Pipeline) processPage(ctx context.Context, logger *zerolog.Logger, video model.Video, page model.Page, dir string, opts Options) (regressed bool, err error) {
	if err := p.concurrentPage.Acquire(ctx); err != nil {
		return false, err
	}
	defer p.concurrentPage.Release()

	before := page.DownloadStatus
	status := before

	stages := []struct {
		idx int
		run func() error
	}{
		{PageStageMedia, func() error { return p.runPageMedia(ctx, video, &page, dir, opts) }},
		{PageStageNFO, func() error { return p.runPageNFO(ctx, video, page, dir) }},
		{PageStageDanmaku, func() error { return p.runPageDanmaku(ctx, video, page, dir, opts) }},
		{PageStageSubtitle, func() error { return p.runPageSubtitle(ctx, video, page, dir, opts) }},
		{PageStageThumbnail, func() error { return p.runPageThumbnail(ctx, video, page, dir) }},
	}

	for _, st := range stages {
		next, attempted := p.executeStage(status, st.idx, st.run, logger)
		if attempted {
			status = next
		}
	}

	if status != before || page.FinalPath != "" {
		page.DownloadStatus = status
		if err := p.Store.UpdatePageStatus(ctx, page.ID, status, page.FinalPath); err != nil {
			return false, err
		}
	}

	return statusWorseOff(before, status), nil
}

// statusWorseOff reports whether next is, on balance, further behind than
// before: any field that was terminal success regressing to anything else.
func statusWorseOff(before, next model.Status) bool {
	for i := 0; i < 5; i++ {
		if before.Get(i) == model.StatusDone && next.Get(i) != model.StatusDone {
			return true
		}
	}
	return false
}

// pageDir returns the directory a page's sidecars/media live in: the video's
// own directory for a single (or first) page, a "page_N" subdirectory for
// subsequent pages of a multi-page video.
func pageDir(videoDir string, p model.Page) string {
	if p.Pid <= 1 {
		return videoDir
	}
	return filepath.Join(videoDir, fmt.Sprintf("page_%d", p.Pid))
}
