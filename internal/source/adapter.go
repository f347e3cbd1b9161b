// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package source

import (
	"context"

	"github.com/vidsync/vidsync/internal/model"
)

// RemoteItem is the raw, unmaterialised listing entry an adapter yields
// while paging through a source.
type RemoteItem struct {
	Bvid         string
	Title        string
	PublishedAt  int64 // unix seconds
	FavouritedAt int64
	Raw          map[string]any
}

// PullFunc is a pull-based iterator over RemoteItem: each call returns the
// next item and true, or a zero item and false once the sequence is
// exhausted. This models DESIGN NOTES §9's "lazy pull sequence" without
// committing to Go 1.23 range-over-func syntax at the interface boundary.
type PullFunc func(ctx context.Context) (RemoteItem, bool, error)

// Adapter is the uniform per-source-kind contract: list new items since a
// high-water mark, and map a raw item into the persisted data model.
type Adapter interface {
	Kind() model.SourceKind

	// ListNewItems returns a pull sequence yielding items strictly newer
	// than highWater, terminating at end-of-remote-listing or at the first
	// item whose timestamp is at or before highWater (incremental cutoff).
	ListNewItems(ctx context.Context, highWater int64) PullFunc

	// Materialise maps a RemoteItem into the Video/Page rows to upsert.
	Materialise(item RemoteItem) (model.Video, []model.Page, error)
}

// Pacing bundles the per-source delay knobs from spec §4.2's large-uploader
// and auto-backoff rules.
type Pacing struct {
	SourceDelaySeconds             float64
	SubmissionSourceDelaySeconds   float64
	LargeSubmissionThreshold       int
	LargeSubmissionDelayMultiplier float64
	EnableProgressiveDelay         bool
	MaxDelayMultiplier             float64
	EnableAutoBackoff              bool
	AutoBackoffBaseSeconds         float64
	AutoBackoffMaxMultiplier       float64
}

// EffectiveDelay computes the base per-page delay for an adapter given its
// historical item count and current page index, applying the large-uploader
// multiplier and, if enabled, progressive per-page compounding.
func (p Pacing) EffectiveDelay(historicalCount int, pageIndex int, isSubmission bool) float64 {
	base := p.SourceDelaySeconds
	if isSubmission {
		base = p.SubmissionSourceDelaySeconds
	}

	multiplier := 1.0
	if p.LargeSubmissionThreshold > 0 && historicalCount > p.LargeSubmissionThreshold {
		multiplier = p.LargeSubmissionDelayMultiplier
		if p.EnableProgressiveDelay && pageIndex > 0 {
			for i := 0; i < pageIndex; i++ {
				multiplier *= p.LargeSubmissionDelayMultiplier
				if p.MaxDelayMultiplier > 0 && multiplier >= p.MaxDelayMultiplier {
					multiplier = p.MaxDelayMultiplier
					break
				}
			}
		}
	}

	return base * multiplier
}

// BackoffDelay computes the sleep duration for the attempt'th anti-abuse
// backoff (attempt starting at 1), capped at AutoBackoffMaxMultiplier.
func (p Pacing) BackoffDelay(attempt int) float64 {
	multiplier := 1.0
	for i := 1; i < attempt; i++ {
		multiplier *= 2
		if p.AutoBackoffMaxMultiplier > 0 && multiplier >= p.AutoBackoffMaxMultiplier {
			multiplier = p.AutoBackoffMaxMultiplier
			break
		}
	}
	return p.AutoBackoffBaseSeconds * multiplier
}
