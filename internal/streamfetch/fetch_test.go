// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package streamfetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRangeFetchDownloadsFullFileOnFirstAttempt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Empty(t, r.Header.Get("Range"))
		w.Write([]byte("hello world"))
	}))
	defer srv.Close()

	target := filepath.Join(t.TempDir(), "out.bin")
	require.NoError(t, RangeFetch(context.Background(), srv.Client(), srv.URL, target))

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(data))
}

func TestRangeFetchResumesFromExistingPartialFile(t *testing.T) {
	const full = "hello world"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rng := r.Header.Get("Range")
		require.Equal(t, "bytes=6-", rng)
		w.Header().Set("Content-Range", "bytes 6-10/11")
		w.WriteHeader(http.StatusPartialContent)
		w.Write([]byte(full[6:]))
	}))
	defer srv.Close()

	target := filepath.Join(t.TempDir(), "out.bin")
	require.NoError(t, os.WriteFile(target, []byte(full[:6]), 0o644))

	require.NoError(t, RangeFetch(context.Background(), srv.Client(), srv.URL, target))

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, full, string(data))
}

func TestRangeFetchTreatsRangeNotSatisfiableAsAlreadyComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
	}))
	defer srv.Close()

	target := filepath.Join(t.TempDir(), "out.bin")
	require.NoError(t, os.WriteFile(target, []byte("already done"), 0o644))

	require.NoError(t, RangeFetch(context.Background(), srv.Client(), srv.URL, target))

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, "already done", string(data))
}

func TestRangeFetchFailsOnUnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	target := filepath.Join(t.TempDir(), "out.bin")
	require.Error(t, RangeFetch(context.Background(), srv.Client(), srv.URL, target))
}
