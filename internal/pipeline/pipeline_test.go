// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/stretchr/testify/require"

	"github.com/vidsync/vidsync/internal/errkind"
	"github.com/vidsync/vidsync/internal/model"
	"github.com/vidsync/vidsync/internal/notify"
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

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func TestCheckPromotionOnlyTriggersForStoredSinglePageWithMultipleRemotePages(t *testing.T) {
	require.True(t, CheckPromotion(model.Video{SinglePage: true}, 3))
	require.False(t, CheckPromotion(model.Video{SinglePage: true}, 1))
	require.False(t, CheckPromotion(model.Video{SinglePage: false}, 3))
}

func TestApplyPromotionResetsStatusAndPersists(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	p := New(st, nil, nil, notify.NewDispatcher(), 1, 1)

	video := model.Video{
		Bvid:           "BV1aa",
		SinglePage:     true,
		Path:           "/old/path",
		DownloadStatus: model.Status(0).Set(StageCover, model.StatusDone),
	}
	videoID, err := st.UpsertVideo(ctx, video)
	require.NoError(t, err)
	video.ID = videoID

	require.NoError(t, p.ApplyPromotion(ctx, &video))
	require.False(t, video.SinglePage)
	require.Equal(t, model.Status(0), video.DownloadStatus)

	stored, err := st.GetVideoByBvid(ctx, "BV1aa")
	require.NoError(t, err)
	require.False(t, stored.SinglePage)
	require.Equal(t, model.Status(0), stored.DownloadStatus)
}

func TestExecuteStageSkipsTerminalAndDoneCodes(t *testing.T) {
	p := &Pipeline{}
	calls := 0
	run := func() error { calls++; return nil }

	for _, code := range []uint8{terminalFailure, model.StatusDone} {
		status := model.Status(0).Set(StageCover, code)
		next, attempted := p.executeStage(status, StageCover, run, nopLogger())
		require.False(t, attempted)
		require.Equal(t, status, next)
	}
	require.Equal(t, 0, calls)
}

func TestExecuteStageMarksSuccessDone(t *testing.T) {
	p := &Pipeline{}
	next, attempted := p.executeStage(model.Status(0), StageCover, func() error { return nil }, nopLogger())
	require.True(t, attempted)
	require.Equal(t, uint8(model.StatusDone), next.Get(StageCover))
}

func TestExecuteStageAccumulatesRetryableFailureCodes(t *testing.T) {
	p := &Pipeline{}
	failing := func() error { return errors.New("transient failure") }

	status := model.Status(0)
	next, attempted := p.executeStage(status, StageCover, failing, nopLogger())
	require.True(t, attempted)
	require.Equal(t, uint8(1), next.Get(StageCover))

	next, attempted = p.executeStage(next, StageCover, failing, nopLogger())
	require.True(t, attempted)
	require.Equal(t, uint8(2), next.Get(StageCover))
}

func TestExecuteStageJumpsToTerminalOnFatalKind(t *testing.T) {
	p := &Pipeline{}
	fatal := func() error { return errkind.New(errkind.MediaManifestUnparseable, "test", nil) }

	next, attempted := p.executeStage(model.Status(0), StageCover, fatal, nopLogger())
	require.True(t, attempted)
	require.Equal(t, uint8(terminalFailure), next.Get(StageCover))
}

func TestExecuteStageNeverRetriesPastTerminalFailure(t *testing.T) {
	p := &Pipeline{}
	status := model.Status(0).Set(StageCover, terminalFailure)

	calls := 0
	next, attempted := p.executeStage(status, StageCover, func() error { calls++; return nil }, nopLogger())
	require.False(t, attempted)
	require.Equal(t, 0, calls)
	require.Equal(t, uint8(terminalFailure), next.Get(StageCover))
}

func TestProcessVideoSkipsCoverWhenNoCoverURLAndWritesInfoNFO(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	p := New(st, NoopManifestProvider{}, nil, notify.NewDispatcher(), 1, 1)

	video := model.Video{Bvid: "BV1aa", Title: "t"}
	videoID, err := st.UpsertVideo(ctx, video)
	require.NoError(t, err)
	video.ID = videoID
	_, err = st.InsertPage(ctx, model.Page{VideoID: videoID, Pid: 1, Name: "t"})
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, p.ProcessVideo(ctx, video, dir, Options{}))

	_, err = os.Stat(filepath.Join(dir, video.Bvid+".nfo"))
	require.NoError(t, err, "info NFO stage should have written a file")
}

func TestProcessVideoDoesNotRetryAlreadyTerminalStages(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	p := New(st, NoopManifestProvider{}, nil, notify.NewDispatcher(), 1, 1)

	status := model.Status(0).
		Set(StageCover, model.StatusDone).
		Set(StageInfo, terminalFailure).
		Set(StageUploader, model.StatusDone).
		Set(StageSeries, model.StatusDone)

	video := model.Video{Bvid: "BV1bb", Title: "t", DownloadStatus: status}
	videoID, err := st.UpsertVideo(ctx, video)
	require.NoError(t, err)
	video.ID = videoID

	dir := t.TempDir()
	require.NoError(t, p.ProcessVideo(ctx, video, dir, Options{}))

	_, err = os.Stat(filepath.Join(dir, video.Bvid+".nfo"))
	require.True(t, os.IsNotExist(err), "a terminally failed stage must never be retried")
}

func TestSemaphoreNilIsUnlimited(t *testing.T) {
	var s Semaphore
	require.NoError(t, s.Acquire(context.Background()))
	s.Release()
}

func TestSemaphoreBlocksPastLimit(t *testing.T) {
	s := NewSemaphore(1)
	require.NoError(t, s.Acquire(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, s.Acquire(ctx))

	s.Release()
	require.NoError(t, s.Acquire(context.Background()))
}
