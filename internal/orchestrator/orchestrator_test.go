// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package orchestrator

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/stretchr/testify/require"

	"github.com/vidsync/vidsync/internal/model"
	"github.com/vidsync/vidsync/internal/notify"
	"github.com/vidsync/vidsync/internal/pipeline"
	"github.com/vidsync/vidsync/internal/source"
	"github.com/vidsync/vidsync/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	st, err := store.Open(context.Background(), db)
	require.NoError(t, err)
	return st
}

func testPipeline(t *testing.T, st *store.Store) *pipeline.Pipeline {
	t.Helper()
	return pipeline.New(st, nil, nil, notify.NewDispatcher(), 1, 1)
}

// fakeLister yields a fixed page of items, then reports no more.
type fakeLister struct {
	items []source.RemoteItem
	calls int
}

func (f *fakeLister) FetchPage(ctx context.Context, cursor int64, pageIndex int) ([]source.RemoteItem, int64, bool, error) {
	f.calls++
	if pageIndex > 0 {
		return nil, 0, false, nil
	}
	return f.items, 0, false, nil
}

func baseSource(t *testing.T, kind model.SourceKind) model.VideoSource {
	t.Helper()
	return model.VideoSource{
		Kind: kind,
		Base: model.Base{
			DisplayName:   "test source",
			BaseDirectory: t.TempDir(),
			Enabled:       true,
		},
	}
}

func TestScanSourceIsNoopWithoutListerFactory(t *testing.T) {
	st := openTestStore(t)
	o := New(st, testPipeline(t, st), nil)

	src := baseSource(t, model.SourceFavourite)
	require.NoError(t, o.ScanSource(context.Background(), src))

	existing, err := st.GetVideoByBvid(context.Background(), "BV1xx")
	require.NoError(t, err)
	require.Nil(t, existing)
}

func TestScanSourceIsNoopWhenFactoryReturnsNilLister(t *testing.T) {
	st := openTestStore(t)
	o := New(st, testPipeline(t, st), func(ctx context.Context, src model.VideoSource) (source.RemoteLister, error) {
		return nil, nil
	})

	require.NoError(t, o.ScanSource(context.Background(), baseSource(t, model.SourceFavourite)))
}

func TestScanSourceUpsertsNewItemsAndAdvancesHighWater(t *testing.T) {
	st := openTestStore(t)
	o := New(st, testPipeline(t, st), func(ctx context.Context, src model.VideoSource) (source.RemoteLister, error) {
		return &fakeLister{items: []source.RemoteItem{
			{Bvid: "BV1aa", Title: "first video", PublishedAt: 100},
			{Bvid: "BV1bb", Title: "second video", PublishedAt: 200},
		}}, nil
	})

	src := baseSource(t, model.SourceFavourite)
	srcID, err := st.UpsertSource(context.Background(), src)
	require.NoError(t, err)
	src.ID = srcID

	require.NoError(t, o.ScanSource(context.Background(), src))

	v, err := st.GetVideoByBvid(context.Background(), "BV1aa")
	require.NoError(t, err)
	require.NotNil(t, v)
	require.Equal(t, "first video", v.Title)
	require.True(t, v.AutoDownload)
	require.Equal(t, srcID, v.Refs.FavouriteID)

	v2, err := st.GetVideoByBvid(context.Background(), "BV1bb")
	require.NoError(t, err)
	require.NotNil(t, v2)

	sources, err := st.ListSources(context.Background())
	require.NoError(t, err)
	require.Len(t, sources, 1)
	require.Equal(t, int64(200), sources[0].HighWaterMark)
}

func TestScanSourceSkipsItemsAtOrBelowHighWater(t *testing.T) {
	st := openTestStore(t)
	o := New(st, testPipeline(t, st), func(ctx context.Context, src model.VideoSource) (source.RemoteLister, error) {
		return &fakeLister{items: []source.RemoteItem{
			{Bvid: "BV1old", Title: "already seen", PublishedAt: 50},
		}}, nil
	})

	src := baseSource(t, model.SourceFavourite)
	src.HighWaterMark = 100
	require.NoError(t, o.ScanSource(context.Background(), src))

	v, err := st.GetVideoByBvid(context.Background(), "BV1old")
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestApplySourceRefSetsOnlyTheMatchingField(t *testing.T) {
	cases := []struct {
		kind model.SourceKind
		get  func(model.SourceRefs) int64
	}{
		{model.SourceFavourite, func(r model.SourceRefs) int64 { return r.FavouriteID }},
		{model.SourceCollection, func(r model.SourceRefs) int64 { return r.CollectionID }},
		{model.SourceSubmission, func(r model.SourceRefs) int64 { return r.SubmissionID }},
		{model.SourceWatchLater, func(r model.SourceRefs) int64 { return r.WatchLaterID }},
		{model.SourceBangumi, func(r model.SourceRefs) int64 { return r.BangumiID }},
	}

	for _, tc := range cases {
		var v model.Video
		src := model.VideoSource{Kind: tc.kind, Base: model.Base{ID: 42}}
		applySourceRef(&v, src)
		require.Equal(t, int64(42), tc.get(v.Refs), "kind %s", tc.kind)
	}
}

func TestApplySourceRefSetsCollectionIDFromAttrs(t *testing.T) {
	var v model.Video
	src := model.VideoSource{
		Kind: model.SourceCollection,
		Base: model.Base{ID: 7},
		Collection: &model.CollectionAttrs{MediaID: 99},
	}
	applySourceRef(&v, src)
	require.Equal(t, int64(99), v.CollectionID)
}

func TestResolveDirRendersAndConfinesUnderBaseDirectory(t *testing.T) {
	st := openTestStore(t)
	o := New(st, testPipeline(t, st), nil)

	src := baseSource(t, model.SourceFavourite)
	video := model.Video{Bvid: "BV1aa", Title: "My Video", UploaderName: "Someone", UploaderID: 7}

	dir, err := o.resolveDir(src, video)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(src.BaseDirectory, "Someone", "My Video-BV1aa"), dir)
}

func TestResolveDirUsesBangumiFolderTemplateForBangumiSources(t *testing.T) {
	st := openTestStore(t)
	o := New(st, testPipeline(t, st), nil)

	src := baseSource(t, model.SourceBangumi)
	video := model.Video{Bvid: "BV1aa", Title: "Episode 1"}

	dir, err := o.resolveDir(src, video)
	require.NoError(t, err)
	require.Contains(t, dir, src.BaseDirectory)
}

// fakeAdapter lets a test control Materialise's page count directly, since
// the concrete source.Adapter kinds always materialise exactly one page.
type fakeAdapter struct {
	video model.Video
	pages []model.Page
}

func (a *fakeAdapter) Kind() model.SourceKind { return model.SourceFavourite }
func (a *fakeAdapter) ListNewItems(ctx context.Context, highWater int64) source.PullFunc {
	return func(ctx context.Context) (source.RemoteItem, bool, error) {
		return source.RemoteItem{}, false, nil
	}
}
func (a *fakeAdapter) Materialise(item source.RemoteItem) (model.Video, []model.Page, error) {
	return a.video, a.pages, nil
}

func TestProcessItemPromotesExistingSinglePageVideoToMultiPage(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	pl := testPipeline(t, st)
	o := New(st, pl, nil)

	src := baseSource(t, model.SourceFavourite)
	existing := model.Video{
		Bvid:           "BV1aa",
		Title:          "old title",
		SinglePage:     true,
		DownloadStatus: model.Status(0).Set(pipeline.StageCover, model.StatusDone),
	}
	videoID, err := st.UpsertVideo(ctx, existing)
	require.NoError(t, err)
	_, err = st.InsertPage(ctx, model.Page{VideoID: videoID, Pid: 1, Name: "old title"})
	require.NoError(t, err)

	adapter := &fakeAdapter{
		video: model.Video{Bvid: "BV1aa", Title: "new title", SinglePage: false},
		pages: []model.Page{{Pid: 1, Name: "part 1"}, {Pid: 2, Name: "part 2"}},
	}

	video, err := o.processItem(ctx, adapter, src, source.RemoteItem{Bvid: "BV1aa"})
	require.NoError(t, err)
	require.False(t, video.SinglePage)
	require.Equal(t, model.Status(0), video.DownloadStatus)

	stored, err := st.GetVideoByBvid(ctx, "BV1aa")
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.False(t, stored.SinglePage)
	// Promotion resets the word to zero, then the same pass re-runs stages
	// 0-3; stage 4 stays 0 because no page's media sub-stage completes.
	require.Equal(t, model.Status(0).
		Set(pipeline.StageCover, model.StatusDone).
		Set(pipeline.StageInfo, model.StatusDone).
		Set(pipeline.StageUploader, model.StatusDone).
		Set(pipeline.StageSeries, model.StatusDone), stored.DownloadStatus)

	pages, err := st.PagesForVideo(ctx, videoID)
	require.NoError(t, err)
	require.Len(t, pages, 2)
}

func TestProcessItemLeavesNewSinglePageVideoUnpromoted(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	o := New(st, testPipeline(t, st), nil)
	src := baseSource(t, model.SourceFavourite)

	adapter := &fakeAdapter{
		video: model.Video{Bvid: "BV1new", Title: "brand new"},
		pages: []model.Page{{Pid: 1, Name: "brand new"}},
	}

	video, err := o.processItem(ctx, adapter, src, source.RemoteItem{Bvid: "BV1new"})
	require.NoError(t, err)
	require.True(t, video.SinglePage)
}
