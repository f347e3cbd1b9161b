// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// LegacyMigrationMeta records the global skip-option flags a legacy config
// carried, so the caller can propagate them onto existing video sources
// after migration (per-source download flags did not exist in the legacy
// shape).
type LegacyMigrationMeta struct {
	NoDanmaku  bool
	NoSubtitle bool
}

// MigrateLegacyConfig checks for a pre-config_items single-row `config(data
// TEXT)` table and, if present and non-empty, renames the recognised legacy
// keys into their current shape, writes each top-level key as its own
// config_items row (preserving the untouched original under
// "legacy_config_raw" for zero-loss rollback), and returns the flags that
// must be applied to existing video sources. Returns (false, zero, nil) when
// there is nothing to migrate.
func (s *Store) MigrateLegacyConfig(ctx context.Context) (migrated bool, meta LegacyMigrationMeta, err error) {
	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='config'`).Scan(&exists)
	if err != nil {
		return false, meta, err
	}
	if exists == 0 {
		return false, meta, nil
	}

	var data string
	err = s.db.QueryRowContext(ctx, `SELECT data FROM config LIMIT 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return false, meta, nil
	}
	if err != nil {
		return false, meta, err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return false, meta, fmt.Errorf("parse legacy config.data: %w", err)
	}

	normalized, meta, unmapped := normalizeLegacyConfig(raw)

	for key, value := range normalized {
		if err := s.UpdateConfigItem(ctx, key, value); err != nil {
			return false, meta, fmt.Errorf("write migrated key %s: %w", key, err)
		}
	}

	if rawJSON, err := json.Marshal(raw); err == nil {
		_ = s.UpdateConfigItem(ctx, "legacy_config_raw", rawJSON)
	}
	if len(unmapped) > 0 {
		if unmappedJSON, err := json.Marshal(unmapped); err == nil {
			_ = s.UpdateConfigItem(ctx, "legacy_config_unmapped", unmappedJSON)
		}
	}

	return true, meta, nil
}

// legacyUnmappedKeys lists top-level keys that the current schema has no
// direct equivalent for; their values are preserved verbatim under
// "legacy_config_unmapped" rather than silently dropped.
var legacyUnmappedKeys = []string{
	"favorite_default_path",
	"collection_default_path",
	"submission_default_path",
	"notifiers",
	"version",
}

func normalizeLegacyConfig(raw map[string]json.RawMessage) (normalized map[string]json.RawMessage, meta LegacyMigrationMeta, unmapped map[string]json.RawMessage) {
	normalized = map[string]json.RawMessage{}
	unmapped = map[string]json.RawMessage{}
	for k, v := range raw {
		normalized[k] = v
	}

	for _, key := range legacyUnmappedKeys {
		if v, ok := raw[key]; ok {
			unmapped[key] = v
			delete(normalized, key)
		}
	}

	// notifiers -> notification, only if notification isn't already set.
	if _, hasNotification := normalized["notification"]; !hasNotification {
		if notifiers, ok := raw["notifiers"]; ok {
			normalized["notification"] = notifiers
		}
	}

	// skip_option -> nfo_config fields + per-process flags.
	if skipRaw, ok := raw["skip_option"]; ok {
		var skip struct {
			NoVideoNfo bool `json:"no_video_nfo"`
			NoUpper    bool `json:"no_upper"`
			NoDanmaku  bool `json:"no_danmaku"`
			NoSubtitle bool `json:"no_subtitle"`
		}
		if err := json.Unmarshal(skipRaw, &skip); err == nil {
			meta.NoDanmaku = skip.NoDanmaku
			meta.NoSubtitle = skip.NoSubtitle

			nfoConfig := map[string]any{}
			if existing, ok := normalized["nfo_config"]; ok {
				_ = json.Unmarshal(existing, &nfoConfig)
			}
			if skip.NoVideoNfo {
				nfoConfig["enabled"] = false
			}
			if skip.NoUpper {
				nfoConfig["include_actor_info"] = false
			}
			if len(nfoConfig) > 0 {
				if encoded, err := json.Marshal(nfoConfig); err == nil {
					normalized["nfo_config"] = encoded
				}
			}
		}
		delete(normalized, "skip_option")
	}

	// nfo_time_type -> nfo_config.time_type
	if timeType, ok := raw["nfo_time_type"]; ok {
		nfoConfig := map[string]any{}
		if existing, ok := normalized["nfo_config"]; ok {
			_ = json.Unmarshal(existing, &nfoConfig)
		}
		var decoded any
		if err := json.Unmarshal(timeType, &decoded); err == nil {
			nfoConfig["time_type"] = decoded
			if encoded, err := json.Marshal(nfoConfig); err == nil {
				normalized["nfo_config"] = encoded
			}
		}
		delete(normalized, "nfo_time_type")
	}

	// concurrent_limit.download -> concurrent_limit.parallel_download
	if limitRaw, ok := raw["concurrent_limit"]; ok {
		var limit map[string]json.RawMessage
		if err := json.Unmarshal(limitRaw, &limit); err == nil {
			if downloadRaw, ok := limit["download"]; ok {
				unmapped["concurrent_limit.download"] = downloadRaw
				if _, already := limit["parallel_download"]; !already {
					var download struct {
						Enable      *bool `json:"enable"`
						Concurrency *int  `json:"concurrency"`
						UseAria2    *bool `json:"use_aria2"`
					}
					if err := json.Unmarshal(downloadRaw, &download); err == nil {
						enabled := true
						if download.Enable != nil {
							enabled = *download.Enable
						}
						threads := 4
						if download.Concurrency != nil {
							threads = *download.Concurrency
						}
						parallel := map[string]any{
							"enabled": enabled,
							"threads": threads,
						}
						if download.UseAria2 != nil {
							parallel["use_aria2"] = *download.UseAria2
						}
						if encoded, err := json.Marshal(parallel); err == nil {
							delete(limit, "download")
							limit["parallel_download"] = encoded
							if encodedLimit, err := json.Marshal(limit); err == nil {
								normalized["concurrent_limit"] = encodedLimit
							}
						}
					}
				}
			}
		}
	}

	return normalized, meta, unmapped
}
