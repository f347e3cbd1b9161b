// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package pipeline implements the video processing pipeline (C3, spec §4.3):
// the five-stage per-video status machine, stage-4's per-page fan-out,
// single-page to multi-page promotion, and the concurrency gates that bound
// how many videos/pages are in flight at once.
//
// The status machine is deliberately not modelled as a fixed transition
// table (internal/pipeline/fsm.Machine): five independent 3-bit fields with
// per-field retry counters have a transition fanout a fixed table isn't a
// good fit for, so stage dispatch here is plain Go control flow gated by
// model.Status.Get/Set.
package pipeline

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/vidsync/vidsync/internal/errkind"
	"github.com/vidsync/vidsync/internal/log"
	"github.com/vidsync/vidsync/internal/model"
	"github.com/vidsync/vidsync/internal/notify"
	"github.com/vidsync/vidsync/internal/store"
	"github.com/vidsync/vidsync/internal/streamfetch"
	"github.com/vidsync/vidsync/internal/template"
)

// Stage indices for a video's status word, per spec §4.3's table.
const (
	StageCover    = 0
	StageInfo     = 1
	StageUploader = 2
	StageSeries   = 3
	StagePages    = 4
)

// Page sub-stage indices, scoped to a single page's own status word.
const (
	PageStageMedia     = 0
	PageStageNFO       = 1
	PageStageDanmaku   = 2
	PageStageSubtitle  = 3
	PageStageThumbnail = 4
)

// terminalFailure is the per-stage code the execution policy never
// re-attempts without an explicit reset (spec §4.3: "fatal blocks ... are
// recorded as 6 ... the pipeline does not re-attempt unless reset").
const terminalFailure = 6

// ManifestProvider resolves the platform-specific inputs a stage needs:
// stream candidates, sidecar source bytes, and asset URLs. The concrete HTTP
// client carrying platform authentication is an external collaborator (spec
// §1 excludes "bindings to the video-platform's specific authentication
// cookies"); NoopManifestProvider is the safe default when none is wired.
type ManifestProvider interface {
	PageManifest(ctx context.Context, video model.Video, page model.Page) (streamfetch.Manifest, error)
	DanmakuXML(ctx context.Context, video model.Video, page model.Page) ([]byte, bool, error)
	SubtitleJSON(ctx context.Context, video model.Video, page model.Page) ([]byte, bool, error)
	ThumbnailURL(ctx context.Context, video model.Video, page model.Page) (string, bool, error)
	UploaderAvatarURL(ctx context.Context, video model.Video) (string, bool, error)
}

// NoopManifestProvider reports every asset as unavailable, so the pipeline
// still runs end to end (stages 2/3 succeed as "nothing to do", stage 4's
// media sub-stage fails with MediaManifestUnparseable, which is fatal, so
// that sub-stage goes straight to terminal failure without retries) without
// a concrete platform binding configured.
type NoopManifestProvider struct{}

func (NoopManifestProvider) PageManifest(context.Context, model.Video, model.Page) (streamfetch.Manifest, error) {
	return streamfetch.Manifest{}, errkind.New(errkind.MediaManifestUnparseable, "pipeline.manifest", nil)
}
func (NoopManifestProvider) DanmakuXML(context.Context, model.Video, model.Page) ([]byte, bool, error) {
	return nil, false, nil
}
func (NoopManifestProvider) SubtitleJSON(context.Context, model.Video, model.Page) ([]byte, bool, error) {
	return nil, false, nil
}
func (NoopManifestProvider) ThumbnailURL(context.Context, model.Video, model.Page) (string, bool, error) {
	return "", false, nil
}
func (NoopManifestProvider) UploaderAvatarURL(context.Context, model.Video) (string, bool, error) {
	return "", false, nil
}

// Options carries per-source knobs the pipeline needs that aren't part of
// the persisted Video/Page rows: the flavour toggles and stream filter.
type Options struct {
	Flavour      model.DownloadFlavour
	StreamFilter streamfetch.FilterOptions
	SeasonLayout bool // when true, cover/series assets land at the tree root as poster.jpg/folder.jpg
}

// Pipeline executes the five-stage video processing machine.
type Pipeline struct {
	Store    *store.Store
	Manifest ManifestProvider
	Fetcher  *streamfetch.Fetcher
	Notifier *notify.Dispatcher
	Rewriter template.TitleRewriter

	concurrentVideo Semaphore
	concurrentPage  Semaphore
}

// New constructs a Pipeline. maxVideos/maxPages <= 0 means unlimited
// concurrency for that gate (spec §4.3's concurrent_video/concurrent_page).
func New(st *store.Store, manifest ManifestProvider, fetcher *streamfetch.Fetcher, notifier *notify.Dispatcher, maxVideos, maxPages int) *Pipeline {
	if manifest == nil {
		manifest = NoopManifestProvider{}
	}
	if notifier == nil {
		notifier = notify.NewDispatcher()
	}
	return &Pipeline{
		Store:           st,
		Manifest:        manifest,
		Fetcher:         fetcher,
		Notifier:        notifier,
		Rewriter:        template.NoopTitleRewriter{},
		concurrentVideo: NewSemaphore(maxVideos),
		concurrentPage:  NewSemaphore(maxPages),
	}
}

// shouldAttempt reports whether a stage field's current value permits one
// more attempt this pass: 0 (never tried) or 1..5 (retryable failure).
// 6 (terminal failure) and 7 (success) are both left untouched.
func shouldAttempt(v uint8) bool {
	return v <= 5
}

// nextFailureCode increments a retryable failure counter, capping at the
// terminal value.
func nextFailureCode(v uint8) uint8 {
	if v+1 >= terminalFailure {
		return terminalFailure
	}
	return v + 1
}

// ProcessVideo advances one video through every stage its status word
// permits, acquiring the concurrent_video gate for the duration. dir is the
// video's on-disk directory (already resolved/confined by the caller).
func (p *Pipeline) ProcessVideo(ctx context.Context, video model.Video, dir string, opts Options) error {
	if err := p.concurrentVideo.Acquire(ctx); err != nil {
		return err
	}
	defer p.concurrentVideo.Release()

	logger := log.WithComponent("pipeline").With().Int64(log.FieldVideoID, video.ID).Str(log.FieldBvid, video.Bvid).Logger()

	stages := []struct {
		idx int
		run func() error
	}{
		{StageCover, func() error { return p.runCover(ctx, video, dir, opts) }},
		{StageInfo, func() error { return p.runInfoNFO(ctx, video, dir) }},
		{StageUploader, func() error { return p.runUploaderAsset(ctx, video, dir) }},
		{StageSeries, func() error { return p.runSeriesMetadata(ctx, video, dir, opts) }},
	}

	status := video.DownloadStatus
	for _, st := range stages {
		next, attempted := p.executeStage(status, st.idx, st.run, &logger)
		if attempted && next != status {
			status = next
			if err := p.Store.UpdateVideoStatus(ctx, video.ID, status); err != nil {
				return err
			}
		}
	}
	video.DownloadStatus = status

	return p.runPagesStage(ctx, &logger, video, dir, opts)
}

// executeStage applies spec §4.3's execution policy to a single stage field:
// attempt iff permitted by its current code, map the outcome to the next
// code, and log the transition. attempted is false when the stage's current
// code already blocks a retry (6) or is already done (7), in which case
// status is returned unchanged and run is never called.
func (p *Pipeline) executeStage(status model.Status, stage int, run func() error, logger *zerolog.Logger) (next model.Status, attempted bool) {
	v := status.Get(stage)
	if !shouldAttempt(v) {
		return status, false
	}

	err := run()
	if err == nil {
		logger.Info().Int(log.FieldStage, stage).Msg("stage succeeded")
		return status.Set(stage, model.StatusDone), true
	}

	newVal := nextFailureCode(v)
	if kind, ok := errkind.KindOf(err); ok && isFatalKind(kind) {
		newVal = terminalFailure
	}
	logger.Warn().Int(log.FieldStage, stage).Err(err).Uint8("next_code", newVal).Msg("stage failed")
	return status.Set(stage, newVal), true
}

// isFatalKind reports whether an error kind should jump straight to the
// terminal failure code rather than accumulate retries, per spec §4.3's
// "fatal blocks (e.g. missing stream manifest)" example.
func isFatalKind(k errkind.Kind) bool {
	switch k {
	case errkind.MediaManifestUnparseable, errkind.FilesystemFatal, errkind.ConfigValidation:
		return true
	default:
		return false
	}
}
