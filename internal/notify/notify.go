// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package notify implements the notifier dispatch contract from spec §4.10:
// a single active-channel transport abstraction, message batching with a
// size ceiling, and sanitisation of titles before they reach a channel.
package notify

import (
	"context"
	"sort"
	"time"

	"github.com/vidsync/vidsync/internal/model"
)

// Sender delivers one already-sanitised, size-bounded message to whatever
// channel is currently active. Concrete transports (webhook, IM bot, email)
// are external collaborators out of scope per spec §1; callers supply their
// own Sender.
type Sender interface {
	Send(ctx context.Context, message string) error
}

// SourceSummary groups one source's newly-downloaded videos for a scan
// completion notification.
type SourceSummary struct {
	SourceID    int64
	DisplayName string
	Videos      []VideoSummary
}

// VideoSummary is the minimal per-video projection a notification message
// needs.
type VideoSummary struct {
	Title       string
	Bvid        string
	PublishedAt time.Time
	Category    model.VideoCategory
	Episode     int // 0 for non-series videos
}

// ScanSummary is passed to the notifier on scan completion.
type ScanSummary struct {
	Sources []SourceSummary
}

// SortForDisplay orders each source's videos by publication date descending
// for regular videos, and by episode number descending for series, per
// spec §4.10.
func (s *ScanSummary) SortForDisplay() {
	for i := range s.Sources {
		videos := s.Sources[i].Videos
		sort.SliceStable(videos, func(a, b int) bool {
			if videos[a].Category == model.CategoryBangumi && videos[b].Category == model.CategoryBangumi {
				return videos[a].Episode > videos[b].Episode
			}
			return videos[a].PublishedAt.After(videos[b].PublishedAt)
		})
	}
}
