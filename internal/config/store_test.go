// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE config_items (key TEXT PRIMARY KEY, value_json TEXT NOT NULL, updated_at INTEGER NOT NULL);
		CREATE TABLE config_changes (id INTEGER PRIMARY KEY AUTOINCREMENT, key TEXT NOT NULL, old_value TEXT NOT NULL DEFAULT '', new_value TEXT NOT NULL DEFAULT '', changed_at INTEGER NOT NULL);
	`)
	require.NoError(t, err)
	return db
}

func TestUpdateConfigItemRejectsDottedNotificationWrite(t *testing.T) {
	store := NewStore(openTestDB(t))
	err := store.UpdateConfigItem(context.Background(), "notification.enable_scan", json.RawMessage(`true`))
	require.ErrorIs(t, err, ErrNotificationDottedWrite)
}

func TestUpdateConfigItemRecordsChangeHistory(t *testing.T) {
	ctx := context.Background()
	store := NewStore(openTestDB(t))

	require.NoError(t, store.UpdateConfigItem(ctx, "interval", json.RawMessage(`60`)))
	require.NoError(t, store.UpdateConfigItem(ctx, "interval", json.RawMessage(`90`)))

	var count int
	require.NoError(t, store.db.QueryRow(`SELECT COUNT(*) FROM config_changes WHERE key = 'interval'`).Scan(&count))
	require.Equal(t, 2, count)

	var oldValue, newValue string
	require.NoError(t, store.db.QueryRow(`SELECT old_value, new_value FROM config_changes WHERE key = 'interval' ORDER BY id DESC LIMIT 1`).Scan(&oldValue, &newValue))
	require.Equal(t, "60", oldValue)
	require.Equal(t, "90", newValue)
}

func TestLoadConfigBundleResolvesNotificationWholeObjectWins(t *testing.T) {
	ctx := context.Background()
	store := NewStore(openTestDB(t))

	_, err := store.db.Exec(`INSERT INTO config_items (key, value_json, updated_at) VALUES
		('notification', '{"enabled":true}', 0),
		('notification.enabled', 'false', 0)`)
	require.NoError(t, err)

	bundle, err := store.LoadConfigBundle(ctx)
	require.NoError(t, err)
	require.Contains(t, bundle.items, "notification")
	require.NotContains(t, bundle.items, "notification.enabled")
}

func TestLoadConfigBundleResolvesOtherPrefixNestedWins(t *testing.T) {
	ctx := context.Background()
	store := NewStore(openTestDB(t))

	_, err := store.db.Exec(`INSERT INTO config_items (key, value_json, updated_at) VALUES
		('concurrent_limit', '{"parallel_download":{"threads":1}}', 0),
		('concurrent_limit.parallel_download', '{"threads":8}', 0)`)
	require.NoError(t, err)

	bundle, err := store.LoadConfigBundle(ctx)
	require.NoError(t, err)
	require.NotContains(t, bundle.items, "concurrent_limit")
	require.Contains(t, bundle.items, "concurrent_limit.parallel_download")
}

func TestBundleToNestedJSONFoldsDottedKeys(t *testing.T) {
	b := &Bundle{items: map[string]json.RawMessage{
		"concurrent_limit.parallel_download": json.RawMessage(`{"threads":8}`),
		"interval":                           json.RawMessage(`60`),
	}}

	doc, err := b.ToNestedJSON()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(doc, &decoded))
	require.Equal(t, float64(60), decoded["interval"])

	limit, ok := decoded["concurrent_limit"].(map[string]any)
	require.True(t, ok)
	parallel, ok := limit["parallel_download"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, float64(8), parallel["threads"])
}
