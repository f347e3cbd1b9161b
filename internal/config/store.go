// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config implements the key-scoped configuration store with change
// journal and hot reload (spec §4.6): config_items/config_changes persistence,
// dotted-path/whole-object conflict resolution, and an atomic-pointer-backed
// in-memory bundle that readers snapshot cheaply.
package config

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotificationDottedWrite is returned when a caller attempts a dotted-path
// write under the notification.* namespace, which must go through the
// whole-object write for historical reasons.
var ErrNotificationDottedWrite = errors.New("config: dotted writes to notification.* are rejected")

// Store persists ConfigItem/ConfigChange rows.
type Store struct {
	db *sql.DB
}

// NewStore wraps an already-migrated *sql.DB (see store.Store.migrate, which
// creates config_items/config_changes alongside the rest of the schema).
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// UpdateConfigItem reads the current value (if any), appends a config_changes
// audit row, and upserts the new value — all in one transaction.
func (s *Store) UpdateConfigItem(ctx context.Context, key string, value json.RawMessage) error {
	if isDottedNotificationKey(key) {
		return fmt.Errorf("%w: %s", ErrNotificationDottedWrite, key)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var oldValue string
	err = tx.QueryRowContext(ctx, `SELECT value_json FROM config_items WHERE key = ?`, key).Scan(&oldValue)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	now := time.Now().Unix()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO config_changes (key, old_value, new_value, changed_at) VALUES (?, ?, ?, ?)
	`, key, oldValue, string(value), now); err != nil {
		return fmt.Errorf("record config change: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO config_items (key, value_json, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value_json = excluded.value_json, updated_at = excluded.updated_at
	`, key, string(value), now); err != nil {
		return fmt.Errorf("upsert config item: %w", err)
	}

	return tx.Commit()
}

func isDottedNotificationKey(key string) bool {
	return strings.HasPrefix(key, "notification.")
}

// Bundle is the flattened key-value view of every config_items row after
// conflict resolution.
type Bundle struct {
	items map[string]json.RawMessage
}

// conflictRule selects, for a whole-object key prefix, whether the whole
// object or the nested dotted keys win when both exist.
type conflictRule int

const (
	keepWholeObject conflictRule = iota
	keepNestedKeys
)

func ruleFor(prefix string) conflictRule {
	if prefix == "notification" {
		return keepWholeObject
	}
	return keepNestedKeys
}

// LoadConfigBundle fetches every config_items row, detects conflicts between
// a whole-object key X and any nested X.child key, resolves them per
// spec §4.6's table, and returns the resulting flattened bundle.
func (s *Store) LoadConfigBundle(ctx context.Context) (*Bundle, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value_json FROM config_items`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	raw := map[string]json.RawMessage{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		raw[key] = json.RawMessage(value)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	resolved := resolveConflicts(raw)
	return &Bundle{items: resolved}, nil
}

// resolveConflicts applies the whole-object-vs-nested-dotted-keys rule per
// top-level prefix.
func resolveConflicts(raw map[string]json.RawMessage) map[string]json.RawMessage {
	prefixes := map[string]bool{}
	for key := range raw {
		prefix := key
		if i := strings.IndexByte(key, '.'); i >= 0 {
			prefix = key[:i]
		}
		prefixes[prefix] = true
	}

	out := map[string]json.RawMessage{}
	for prefix := range prefixes {
		_, hasWhole := raw[prefix]
		var nestedKeys []string
		for key := range raw {
			if strings.HasPrefix(key, prefix+".") {
				nestedKeys = append(nestedKeys, key)
			}
		}
		hasNested := len(nestedKeys) > 0

		switch {
		case hasWhole && hasNested:
			if ruleFor(prefix) == keepWholeObject {
				out[prefix] = raw[prefix]
			} else {
				for _, k := range nestedKeys {
					out[k] = raw[k]
				}
			}
		case hasWhole:
			out[prefix] = raw[prefix]
		case hasNested:
			for _, k := range nestedKeys {
				out[k] = raw[k]
			}
		}
	}
	return out
}

// ToNestedJSON folds every dotted key in the bundle into nested JSON objects
// by splitting on ".", producing the document the typed configuration is
// deserialised from.
func (b *Bundle) ToNestedJSON() (json.RawMessage, error) {
	root := map[string]any{}

	for key, value := range b.items {
		var decoded any
		if err := json.Unmarshal(value, &decoded); err != nil {
			return nil, fmt.Errorf("decode config_items[%s]: %w", key, err)
		}

		parts := strings.Split(key, ".")
		cursor := root
		for i, part := range parts {
			if i == len(parts)-1 {
				cursor[part] = decoded
				break
			}
			next, ok := cursor[part].(map[string]any)
			if !ok {
				next = map[string]any{}
				cursor[part] = next
			}
			cursor = next
		}
	}

	return json.Marshal(root)
}
