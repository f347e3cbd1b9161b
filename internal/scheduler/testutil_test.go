// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package scheduler

import (
	"context"
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/stretchr/testify/require"

	"github.com/vidsync/vidsync/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	st, _ := openTestStoreAndDB(t)
	return st
}

// openTestStoreAndDB also returns the underlying *sql.DB so a test can build
// a config.Store against the same config_items/config_changes tables
// store.Open migrated.
func openTestStoreAndDB(t *testing.T) (*store.Store, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	st, err := store.Open(context.Background(), db)
	require.NoError(t, err)
	return st, db
}
