// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package scheduler

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vidsync/vidsync/internal/config"
	"github.com/vidsync/vidsync/internal/model"
)

func TestTaskApplierAddSource(t *testing.T) {
	st := openTestStore(t)
	applier := NewTaskApplier(st, nil, nil, nil)

	payload, err := json.Marshal(AddSourcePayload{Source: model.VideoSource{
		Kind: model.SourceCollection,
		Base: model.Base{DisplayName: "My Collection", Enabled: true},
	}})
	require.NoError(t, err)

	task := model.QueuedTask{Kind: model.TaskAddSource, PayloadJSON: string(payload)}
	require.NoError(t, applier.Apply(context.Background(), task))

	sources, err := st.ListSources(context.Background())
	require.NoError(t, err)
	require.Len(t, sources, 1)
	require.Equal(t, "My Collection", sources[0].DisplayName)
}

func TestTaskApplierDeleteSourceDisablesWithoutLosingFields(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	id, err := st.UpsertSource(ctx, model.VideoSource{
		Kind: model.SourceFavourite,
		Base: model.Base{DisplayName: "Keep Me", BaseDirectory: "/media/keep", Enabled: true},
	})
	require.NoError(t, err)

	applier := NewTaskApplier(st, nil, nil, nil)
	payload, err := json.Marshal(DeleteSourcePayload{SourceID: id})
	require.NoError(t, err)
	task := model.QueuedTask{Kind: model.TaskDeleteSource, PayloadJSON: string(payload)}
	require.NoError(t, applier.Apply(ctx, task))

	got, err := st.GetSource(ctx, id)
	require.NoError(t, err)
	require.False(t, got.Enabled)
	require.Equal(t, "Keep Me", got.DisplayName)
	require.Equal(t, "/media/keep", got.BaseDirectory)
}

func TestTaskApplierDeleteVideoMarksDeletedWithoutErasing(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	videoID, err := st.UpsertVideo(ctx, model.Video{Bvid: "BV1xx"})
	require.NoError(t, err)

	applier := NewTaskApplier(st, nil, nil, nil)
	payload, err := json.Marshal(DeleteVideoPayload{VideoID: videoID})
	require.NoError(t, err)
	task := model.QueuedTask{Kind: model.TaskDeleteVideo, PayloadJSON: string(payload)}
	require.NoError(t, applier.Apply(ctx, task))

	got, err := st.GetVideoByBvid(ctx, "BV1xx")
	require.NoError(t, err)
	require.True(t, got.Deleted)
}

func TestTaskApplierUpdateConfigWritesItem(t *testing.T) {
	ctx := context.Background()
	st, db := openTestStoreAndDB(t)
	cfgStore := config.NewStore(db)

	applier := NewTaskApplier(st, cfgStore, nil, nil)
	payload, err := json.Marshal(UpdateConfigPayload{Key: "app.scan_interval", Value: json.RawMessage(`30`)})
	require.NoError(t, err)
	task := model.QueuedTask{Kind: model.TaskUpdateConfig, PayloadJSON: string(payload)}
	require.NoError(t, applier.Apply(ctx, task))
}

func TestTaskApplierUpdateConfigSkipsRenameWithoutFunc(t *testing.T) {
	ctx := context.Background()
	st, db := openTestStoreAndDB(t)
	cfgStore := config.NewStore(db)

	applier := NewTaskApplier(st, cfgStore, nil, nil)
	payload, err := json.Marshal(UpdateConfigPayload{Key: "app.name", Value: json.RawMessage(`"x"`), TriggerRename: true})
	require.NoError(t, err)
	task := model.QueuedTask{Kind: model.TaskUpdateConfig, PayloadJSON: string(payload)}
	require.NoError(t, applier.Apply(ctx, task))
}

func TestTaskApplierUnknownKind(t *testing.T) {
	st := openTestStore(t)
	applier := NewTaskApplier(st, nil, nil, nil)
	task := model.QueuedTask{Kind: model.QueuedTaskKind("bogus")}
	require.Error(t, applier.Apply(context.Background(), task))
}
