// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import "time"

// SourceKind identifies one of the five VideoSource variants.
type SourceKind string

const (
	SourceCollection   SourceKind = "collection"
	SourceFavourite    SourceKind = "favourite"
	SourceSubmission   SourceKind = "submission"
	SourceWatchLater   SourceKind = "watch_later"
	SourceBangumi      SourceKind = "bangumi_season"
)

// KeywordFilter holds the independent blacklist/whitelist regex lists applied
// to candidate titles, grounded on keyword_filter.rs's should_filter_video_dual_list.
type KeywordFilter struct {
	Blacklist     []string
	Whitelist     []string
	CaseSensitive bool
}

// DownloadFlavour captures per-source download preference toggles.
type DownloadFlavour struct {
	AudioOnly        bool
	FlatFolder       bool
	IncludeDanmaku   bool
	IncludeSubtitles bool
	AIRenameEnabled  bool
	AIRenameScopes   []string
}

// Base holds the attributes common to every VideoSource variant.
type Base struct {
	ID                int64
	DisplayName       string
	BaseDirectory     string
	Enabled           bool
	ScanDeleted       bool
	TemplateOverrides map[string]string
	Flavour           DownloadFlavour
	Keywords          KeywordFilter
	HighWaterMark     int64
}

// VideoSource is a tagged sum over the five source variants: the Kind field
// selects which of the variant-specific pointer fields is populated.
type VideoSource struct {
	Kind SourceKind
	Base

	Collection *CollectionAttrs
	Favourite  *FavouriteAttrs
	Submission *SubmissionAttrs
	WatchLater *WatchLaterAttrs
	Bangumi    *BangumiAttrs
}

// CollectionAttrs holds remote identifiers for a curated-collection source.
type CollectionAttrs struct {
	MediaID    int64
	FollowerID int64
}

// FavouriteAttrs holds remote identifiers for a favourites-folder source.
type FavouriteAttrs struct {
	FavoriteFolderID int64
}

// SubmissionAttrs holds remote identifiers for a per-uploader submission source.
type SubmissionAttrs struct {
	UploaderID     int64
	SelectedVideos []string // empty means "all"
}

// WatchLaterAttrs has no variant-specific identifiers; at most one instance
// of this source may exist (invariant (b)).
type WatchLaterAttrs struct{}

// BangumiAttrs holds remote identifiers for a bangumi (seasonal series) source.
type BangumiAttrs struct {
	SeasonID          int64
	MediaID           int64
	EpID              int64
	SelectedSeasons   []int64
	DownloadAllSeasons bool
}

// VideoCategory tags a Video as a regular upload or a bangumi episode.
type VideoCategory string

const (
	CategoryRegular VideoCategory = "regular"
	CategoryBangumi VideoCategory = "bangumi"
)

// SourceRefs records which sources a Video is linked from; per invariant (f)
// a Video with every field zero is orphaned and eligible for hard deletion.
type SourceRefs struct {
	FavouriteID  int64
	CollectionID int64
	SubmissionID int64
	WatchLaterID int64
	BangumiID    int64
}

// IsOrphaned reports whether every back-reference is unset.
func (r SourceRefs) IsOrphaned() bool {
	return r.FavouriteID == 0 && r.CollectionID == 0 && r.SubmissionID == 0 &&
		r.WatchLaterID == 0 && r.BangumiID == 0
}

// Video is a single remote item mirrored into the local library.
type Video struct {
	ID              int64
	Bvid            string
	Title           string
	UploaderName    string
	UploaderID      int64
	PublishedAt     time.Time
	FavouritedAt    time.Time
	CreatedAt       time.Time
	Category        VideoCategory
	CoverURL        string
	Path            string
	SinglePage      bool
	CollectionID    int64 // nullable; 0 = none
	Refs            SourceRefs
	DownloadStatus  Status
	Deleted         bool
	AutoDownload    bool
}

// Page is one segment (episode or multi-part) of a Video.
type Page struct {
	ID             int64
	VideoID        int64
	Pid            int64 // 1-based ordinal
	Cid            int64 // platform part id
	Name           string
	Width          int
	Height         int
	DurationSecs   int
	DownloadStatus Status
	FinalPath      string // empty until finished
	ThumbnailURL   string
	AIRenamed      bool
}

// ConfigItem is a string key to JSON-value mapping.
type ConfigItem struct {
	Key       string
	ValueJSON string
	UpdatedAt time.Time
}

// ConfigChange is an append-only audit row for a ConfigItem write.
type ConfigChange struct {
	ID        int64
	Key       string
	OldValue  string
	NewValue  string
	ChangedAt time.Time
}

// QueuedTaskKind enumerates the admin mutation variants that must be
// persisted and drained between scans.
type QueuedTaskKind string

const (
	TaskAddSource    QueuedTaskKind = "add_source"
	TaskDeleteSource QueuedTaskKind = "delete_source"
	TaskDeleteVideo  QueuedTaskKind = "delete_video"
	TaskUpdateConfig QueuedTaskKind = "update_config"
	TaskReloadConfig QueuedTaskKind = "reload_config"
)

// QueuedTask is a persisted record of a mutating admin action enqueued while
// a scan holds the scan token.
type QueuedTask struct {
	ID         int64
	Kind       QueuedTaskKind
	PayloadJSON string
	Attempts   int
	CreatedAt  time.Time
	DeadLetter bool
}
