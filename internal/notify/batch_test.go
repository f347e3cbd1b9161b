// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package notify

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vidsync/vidsync/internal/model"
)

func TestBuildMessagesSingleSourceFitsOneMessage(t *testing.T) {
	summary := ScanSummary{
		Sources: []SourceSummary{
			{
				DisplayName: "Some Channel",
				Videos: []VideoSummary{
					{Title: "Video One", Bvid: "BV1", PublishedAt: time.Now()},
					{Title: "Video Two", Bvid: "BV2", PublishedAt: time.Now()},
				},
			},
		},
	}

	messages := BuildMessages(summary, LongForm)
	require.Len(t, messages, 1)
	require.Contains(t, messages[0], "Some Channel")
	require.Contains(t, messages[0], "Video One")
	require.Contains(t, messages[0], "Video Two")
}

func TestBuildMessagesSplitsOnShortFormCeiling(t *testing.T) {
	videos := make([]VideoSummary, 0, 500)
	for i := 0; i < 500; i++ {
		videos = append(videos, VideoSummary{
			Title:   strings.Repeat("x", 40),
			Bvid:    "BVxxxxxxxxxxxxxxxx",
			Episode: i + 1,
			Category: model.CategoryBangumi,
		})
	}
	summary := ScanSummary{Sources: []SourceSummary{{DisplayName: "Series", Videos: videos}}}

	messages := BuildMessages(summary, ShortForm)
	require.Greater(t, len(messages), 1)
	for _, m := range messages {
		require.LessOrEqual(t, len(m), ShortFormSizeCeiling)
	}
}

func TestBuildMessagesBangumiLineIncludesEpisode(t *testing.T) {
	summary := ScanSummary{
		Sources: []SourceSummary{
			{
				DisplayName: "My Show",
				Videos: []VideoSummary{
					{Title: "Episode Title", Bvid: "BV1", Category: model.CategoryBangumi, Episode: 5},
				},
			},
		},
	}
	messages := BuildMessages(summary, LongForm)
	require.Len(t, messages, 1)
	require.Contains(t, messages[0], "E5 Episode Title")
}

func TestScanSummarySortForDisplayBangumiByEpisodeDescending(t *testing.T) {
	summary := ScanSummary{
		Sources: []SourceSummary{
			{
				Videos: []VideoSummary{
					{Episode: 1, Category: model.CategoryBangumi},
					{Episode: 3, Category: model.CategoryBangumi},
					{Episode: 2, Category: model.CategoryBangumi},
				},
			},
		},
	}
	summary.SortForDisplay()
	got := summary.Sources[0].Videos
	require.Equal(t, 3, got[0].Episode)
	require.Equal(t, 2, got[1].Episode)
	require.Equal(t, 1, got[2].Episode)
}

func TestScanSummarySortForDisplayRegularByPublishedDescending(t *testing.T) {
	now := time.Now()
	summary := ScanSummary{
		Sources: []SourceSummary{
			{
				Videos: []VideoSummary{
					{Title: "old", PublishedAt: now.Add(-time.Hour)},
					{Title: "new", PublishedAt: now},
				},
			},
		},
	}
	summary.SortForDisplay()
	got := summary.Sources[0].Videos
	require.Equal(t, "new", got[0].Title)
	require.Equal(t, "old", got[1].Title)
}
