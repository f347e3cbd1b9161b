// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package orchestrator implements scheduler.SourceScanner: for one enabled
// VideoSource, page through its remote listing via internal/source, upsert
// the resulting Video/Page rows, detect single-page→multi-page promotion,
// resolve each video's on-disk directory through the template engine, and
// hand it to internal/pipeline for stage execution (spec §4.2/§4.3).
package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"

	"golang.org/x/time/rate"

	"github.com/vidsync/vidsync/internal/log"
	"github.com/vidsync/vidsync/internal/model"
	"github.com/vidsync/vidsync/internal/notify"
	"github.com/vidsync/vidsync/internal/pipeline"
	"github.com/vidsync/vidsync/internal/source"
	"github.com/vidsync/vidsync/internal/store"
	"github.com/vidsync/vidsync/internal/template"
)

// ListerFactory builds the RemoteLister a VideoSource's adapter pages
// through. The concrete platform client (cookies, signing, HTTP transport)
// is an external collaborator spec §1 places out of scope; a nil factory,
// or one that returns a nil lister, degrades a scan of that source to a
// no-op rather than failing the whole tick.
type ListerFactory func(ctx context.Context, src model.VideoSource) (source.RemoteLister, error)

// Templates holds the rendered-path templates used to place a video's
// directory on disk, the subset of spec §4.7's six named templates the
// orchestrator itself needs (per-file naming inside that directory is the
// pipeline's job).
type Templates struct {
	FolderStructure string
	BangumiFolder   string
}

// DefaultTemplates returns the teacher-idiomatic default layout: uploader
// name, then title-bvid.
func DefaultTemplates() Templates {
	return Templates{
		FolderStructure: "{{upper_name}}/{{title}}-{{bvid}}",
		BangumiFolder:   "{{series_title}}/Season {{season_pad}}",
	}
}

// Orchestrator wires one Store, one Pipeline, and a pluggable lister
// factory into a scheduler.SourceScanner.
type Orchestrator struct {
	Store     *store.Store
	Pipeline  *pipeline.Pipeline
	Listers   ListerFactory
	Templates Templates

	// RateLimit bounds how many remote listing pages per second any single
	// adapter issues; a conservative default applies if zero.
	RateLimit rate.Limit
}

// New constructs an Orchestrator. listers may be nil, in which case every
// source scan is a graceful no-op.
func New(st *store.Store, pl *pipeline.Pipeline, listers ListerFactory) *Orchestrator {
	return &Orchestrator{
		Store:     st,
		Pipeline:  pl,
		Listers:   listers,
		Templates: DefaultTemplates(),
		RateLimit: 1,
	}
}

// ScanSource implements scheduler.SourceScanner.
func (o *Orchestrator) ScanSource(ctx context.Context, src model.VideoSource) error {
	logger := log.WithComponent("orchestrator")

	lister, err := o.resolveLister(ctx, src)
	if err != nil {
		return fmt.Errorf("resolve remote lister: %w", err)
	}
	if lister == nil {
		logger.Debug().
			Int64(log.FieldSourceID, src.ID).
			Msg("no remote lister configured for source kind; scan is a no-op")
		return nil
	}

	adapter, err := source.New(src.Kind, lister, rate.NewLimiter(o.effectiveRateLimit(), 1), src.Keywords, source.Pacing{})
	if err != nil {
		return fmt.Errorf("build adapter: %w", err)
	}

	pull := adapter.ListNewItems(ctx, src.HighWaterMark)
	highWater := src.HighWaterMark
	var processed []model.Video

	for {
		item, ok, err := pull(ctx)
		if err != nil {
			return fmt.Errorf("list remote items: %w", err)
		}
		if !ok {
			break
		}

		video, err := o.processItem(ctx, adapter, src, item)
		if err != nil {
			logger.Warn().
				Int64(log.FieldSourceID, src.ID).
				Str(log.FieldBvid, item.Bvid).
				Err(err).
				Msg("processing remote item failed; continuing scan")
			continue
		}
		processed = append(processed, video)

		ts := item.PublishedAt
		if item.FavouritedAt > ts {
			ts = item.FavouritedAt
		}
		if ts > highWater {
			highWater = ts
		}
	}

	if highWater != src.HighWaterMark {
		src.HighWaterMark = highWater
		if _, err := o.Store.UpsertSource(ctx, src); err != nil {
			return fmt.Errorf("advance high-water mark: %w", err)
		}
	}

	o.notifyScanComplete(ctx, src, processed)

	logger.Info().
		Int64(log.FieldSourceID, src.ID).
		Int("items", len(processed)).
		Msg("source scan complete")
	return nil
}

// notifyScanComplete dispatches a best-effort scan-completion notification
// (spec §4.10) summarising the videos this tick newly processed from src.
// A dispatch failure is logged, not propagated: notification delivery never
// aborts a scan.
func (o *Orchestrator) notifyScanComplete(ctx context.Context, src model.VideoSource, videos []model.Video) {
	if len(videos) == 0 || o.Pipeline.Notifier == nil {
		return
	}
	summary := notify.ScanSummary{
		Sources: []notify.SourceSummary{{
			SourceID:    src.ID,
			DisplayName: src.DisplayName,
			Videos:      make([]notify.VideoSummary, 0, len(videos)),
		}},
	}
	for _, v := range videos {
		summary.Sources[0].Videos = append(summary.Sources[0].Videos, notify.VideoSummary{
			Title:       v.Title,
			Bvid:        v.Bvid,
			PublishedAt: v.PublishedAt,
			Category:    v.Category,
		})
	}
	if err := o.Pipeline.Notifier.Dispatch(ctx, summary); err != nil {
		log.WithComponent("orchestrator").Warn().
			Int64(log.FieldSourceID, src.ID).
			Err(err).
			Msg("scan-complete notification dispatch failed")
	}
}

func (o *Orchestrator) effectiveRateLimit() rate.Limit {
	if o.RateLimit <= 0 {
		return rate.Limit(1)
	}
	return o.RateLimit
}

func (o *Orchestrator) resolveLister(ctx context.Context, src model.VideoSource) (source.RemoteLister, error) {
	if o.Listers == nil {
		return nil, nil
	}
	return o.Listers(ctx, src)
}

// processItem materialises one remote listing entry, upserts its Video/Page
// rows (applying the appropriate SourceRefs back-reference and detecting
// single-page→multi-page promotion against the previously stored shape),
// resolves its on-disk directory, and runs it through the pipeline.
func (o *Orchestrator) processItem(ctx context.Context, adapter source.Adapter, src model.VideoSource, item source.RemoteItem) (model.Video, error) {
	video, pages, err := adapter.Materialise(item)
	if err != nil {
		return model.Video{}, fmt.Errorf("materialise: %w", err)
	}
	applySourceRef(&video, src)
	video.AutoDownload = true

	existing, err := o.Store.GetVideoByBvid(ctx, video.Bvid)
	if err != nil {
		return model.Video{}, fmt.Errorf("load existing video: %w", err)
	}

	promote := existing != nil && pipeline.CheckPromotion(*existing, len(pages))
	if existing != nil {
		video.ID = existing.ID
		video.DownloadStatus = existing.DownloadStatus
		video.SinglePage = existing.SinglePage
		video.Path = existing.Path
	} else {
		video.SinglePage = len(pages) <= 1
	}

	dir, err := o.resolveDir(src, video)
	if err != nil {
		return model.Video{}, fmt.Errorf("resolve directory: %w", err)
	}
	video.Path = dir

	videoID, err := o.Store.UpsertVideo(ctx, video)
	if err != nil {
		return model.Video{}, fmt.Errorf("upsert video: %w", err)
	}
	video.ID = videoID

	for i := range pages {
		pages[i].VideoID = videoID
		if _, err := o.Store.InsertPage(ctx, pages[i]); err != nil {
			return model.Video{}, fmt.Errorf("insert page %d: %w", pages[i].Pid, err)
		}
	}

	if promote {
		if err := o.Pipeline.ApplyPromotion(ctx, &video); err != nil {
			return model.Video{}, fmt.Errorf("apply promotion: %w", err)
		}
	}

	opts := pipeline.Options{
		Flavour:      src.Flavour,
		SeasonLayout: src.Kind == model.SourceBangumi,
	}
	if err := o.Pipeline.ProcessVideo(ctx, video, dir, opts); err != nil {
		return model.Video{}, fmt.Errorf("process video: %w", err)
	}
	return video, nil
}

// applySourceRef sets the one SourceRefs field matching src's kind, per
// spec's model table (a video may be linked from more than one source kind
// simultaneously; only the field matching the currently-scanning source is
// touched here, each other kind's own scan sets its own field).
func applySourceRef(v *model.Video, src model.VideoSource) {
	switch src.Kind {
	case model.SourceFavourite:
		v.Refs.FavouriteID = src.ID
	case model.SourceCollection:
		v.Refs.CollectionID = src.ID
		if src.Collection != nil {
			v.CollectionID = src.Collection.MediaID
		}
	case model.SourceSubmission:
		v.Refs.SubmissionID = src.ID
	case model.SourceWatchLater:
		v.Refs.WatchLaterID = src.ID
	case model.SourceBangumi:
		v.Refs.BangumiID = src.ID
	}
}

// resolveDir renders the source's folder-structure template against the
// video's variables and confines the result beneath the source's base
// directory, refusing traversal per internal/pathsafe.
func (o *Orchestrator) resolveDir(src model.VideoSource, video model.Video) (string, error) {
	tmpl := o.Templates.FolderStructure
	if src.Kind == model.SourceBangumi {
		tmpl = o.Templates.BangumiFolder
	}

	vars := template.Vars{
		Title:     video.Title,
		Bvid:      video.Bvid,
		UpperName: video.UploaderName,
		UpperMid:  fmt.Sprintf("%d", video.UploaderID),
	}
	rendered, err := template.Render(tmpl, vars)
	if err != nil {
		return "", fmt.Errorf("render folder template: %w", err)
	}

	base := src.BaseDirectory
	if base == "" {
		base = "."
	}
	resolved, err := template.ResolveTarget(base, filepath.Clean("./"+rendered))
	if err != nil {
		return "", fmt.Errorf("confine target directory: %w", err)
	}
	return resolved, nil
}
