// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package source

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/vidsync/vidsync/internal/model"
)

type fakeLister struct {
	pages [][]RemoteItem
}

func (f *fakeLister) FetchPage(ctx context.Context, cursor int64, pageIndex int) ([]RemoteItem, int64, bool, error) {
	if pageIndex >= len(f.pages) {
		return nil, cursor, false, nil
	}
	return f.pages[pageIndex], cursor + 1, pageIndex+1 < len(f.pages), nil
}

func TestListNewItemsStopsAtHighWater(t *testing.T) {
	lister := &fakeLister{pages: [][]RemoteItem{
		{{Bvid: "BV3", Title: "three", PublishedAt: 30}, {Bvid: "BV2", Title: "two", PublishedAt: 20}},
		{{Bvid: "BV1", Title: "one", PublishedAt: 10}},
	}}
	limiter := rate.NewLimiter(rate.Inf, 1)
	a, err := New(model.SourceFavourite, lister, limiter, model.KeywordFilter{}, Pacing{})
	require.NoError(t, err)

	pull := a.ListNewItems(context.Background(), 20)
	var got []string
	for {
		item, ok, err := pull(context.Background())
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, item.Bvid)
	}
	require.Equal(t, []string{"BV3"}, got)
}

func TestListNewItemsAppliesKeywordFilter(t *testing.T) {
	lister := &fakeLister{pages: [][]RemoteItem{
		{{Bvid: "BV1", Title: "official PV", PublishedAt: 10}, {Bvid: "BV2", Title: "trailer", PublishedAt: 5}},
	}}
	limiter := rate.NewLimiter(rate.Inf, 1)
	filter := model.KeywordFilter{Blacklist: []string{"trailer"}, CaseSensitive: true}
	a, err := New(model.SourceCollection, lister, limiter, filter, Pacing{})
	require.NoError(t, err)

	pull := a.ListNewItems(context.Background(), 0)
	var got []string
	for {
		item, ok, err := pull(context.Background())
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, item.Bvid)
	}
	require.Equal(t, []string{"BV1"}, got)
}

func TestNewUnknownKind(t *testing.T) {
	_, err := New("bogus", &fakeLister{}, rate.NewLimiter(rate.Inf, 1), model.KeywordFilter{}, Pacing{})
	require.Error(t, err)
}
