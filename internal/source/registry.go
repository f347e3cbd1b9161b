// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package source

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/vidsync/vidsync/internal/model"
)

// RemoteLister is the minimal remote-platform operation every adapter needs:
// fetch one page of a listing. The concrete HTTP client and the platform's
// authentication cookie binding are external collaborators (spec §1); the
// registry depends only on this interface so adapters stay testable against
// a fake.
type RemoteLister interface {
	FetchPage(ctx context.Context, cursor int64, pageIndex int) (items []RemoteItem, nextCursor int64, hasMore bool, err error)
}

// baseAdapter implements the incremental-cutoff and keyword-filter logic
// shared by every source kind; per-kind adapters embed it and supply Kind
// and Materialise.
type baseAdapter struct {
	kind     model.SourceKind
	remote   RemoteLister
	limiter  *rate.Limiter
	filter   *compiledFilter
	pacing   Pacing
	isSubmit bool
}

// ListNewItems returns a pull sequence over the remote listing, stopping at
// the first item whose publish/favourite timestamp is at or before
// highWater (the incremental cutoff), applying the keyword filter inline so
// excluded items never reach the caller.
func (a *baseAdapter) ListNewItems(ctx context.Context, highWater int64) PullFunc {
	var (
		cursor    int64
		pageIndex int
		buf       []RemoteItem
		done      bool
	)

	return func(ctx context.Context) (RemoteItem, bool, error) {
		for {
			if len(buf) > 0 {
				item := buf[0]
				buf = buf[1:]

				ts := item.PublishedAt
				if item.FavouritedAt > ts {
					ts = item.FavouritedAt
				}
				if ts <= highWater {
					done = true
					continue
				}

				if a.filter != nil && a.filter.ShouldFilter(item.Title) {
					continue
				}
				return item, true, nil
			}

			if done {
				return RemoteItem{}, false, nil
			}

			if err := a.limiter.Wait(ctx); err != nil {
				return RemoteItem{}, false, err
			}

			items, next, hasMore, err := a.remote.FetchPage(ctx, cursor, pageIndex)
			if err != nil {
				return RemoteItem{}, false, err
			}
			buf = items
			cursor = next
			pageIndex++
			if !hasMore {
				done = len(buf) == 0
				if len(buf) == 0 {
					return RemoteItem{}, false, nil
				}
			}
		}
	}
}

// CollectionAdapter lists items belonging to a curated collection.
type CollectionAdapter struct{ baseAdapter }

func (a *CollectionAdapter) Kind() model.SourceKind { return model.SourceCollection }
func (a *CollectionAdapter) Materialise(item RemoteItem) (model.Video, []model.Page, error) {
	return materialiseSingle(item)
}

// FavouriteAdapter lists items in a favourites folder.
type FavouriteAdapter struct{ baseAdapter }

func (a *FavouriteAdapter) Kind() model.SourceKind { return model.SourceFavourite }
func (a *FavouriteAdapter) Materialise(item RemoteItem) (model.Video, []model.Page, error) {
	return materialiseSingle(item)
}

// SubmissionAdapter lists an uploader's own submissions.
type SubmissionAdapter struct{ baseAdapter }

func (a *SubmissionAdapter) Kind() model.SourceKind { return model.SourceSubmission }
func (a *SubmissionAdapter) Materialise(item RemoteItem) (model.Video, []model.Page, error) {
	return materialiseSingle(item)
}

// WatchLaterAdapter lists the single watch-later queue (invariant (b): at
// most one such source may exist).
type WatchLaterAdapter struct{ baseAdapter }

func (a *WatchLaterAdapter) Kind() model.SourceKind { return model.SourceWatchLater }
func (a *WatchLaterAdapter) Materialise(item RemoteItem) (model.Video, []model.Page, error) {
	return materialiseSingle(item)
}

// BangumiAdapter lists episodes of a seasonal series.
type BangumiAdapter struct{ baseAdapter }

func (a *BangumiAdapter) Kind() model.SourceKind { return model.SourceBangumi }
func (a *BangumiAdapter) Materialise(item RemoteItem) (model.Video, []model.Page, error) {
	v, pages, err := materialiseSingle(item)
	v.Category = model.CategoryBangumi
	return v, pages, err
}

func materialiseSingle(item RemoteItem) (model.Video, []model.Page, error) {
	if item.Bvid == "" {
		return model.Video{}, nil, fmt.Errorf("materialise: remote item missing bvid")
	}
	v := model.Video{
		Bvid:       item.Bvid,
		Title:      item.Title,
		Category:   model.CategoryRegular,
		SinglePage: true,
	}
	pages := []model.Page{{Pid: 1, Name: item.Title}}
	return v, pages, nil
}

// New constructs the concrete Adapter for kind, wiring the shared pacing,
// rate limiter, and compiled keyword filter.
func New(kind model.SourceKind, remote RemoteLister, limiter *rate.Limiter, filter model.KeywordFilter, pacing Pacing) (Adapter, error) {
	base := baseAdapter{
		kind:     kind,
		remote:   remote,
		limiter:  limiter,
		filter:   CompileKeywordFilter(filter),
		pacing:   pacing,
		isSubmit: kind == model.SourceSubmission,
	}

	switch kind {
	case model.SourceCollection:
		return &CollectionAdapter{base}, nil
	case model.SourceFavourite:
		return &FavouriteAdapter{base}, nil
	case model.SourceSubmission:
		return &SubmissionAdapter{base}, nil
	case model.SourceWatchLater:
		return &WatchLaterAdapter{base}, nil
	case model.SourceBangumi:
		return &BangumiAdapter{base}, nil
	default:
		return nil, fmt.Errorf("source: unknown kind %q", kind)
	}
}
