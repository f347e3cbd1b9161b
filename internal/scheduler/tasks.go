// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package scheduler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vidsync/vidsync/internal/config"
	"github.com/vidsync/vidsync/internal/log"
	"github.com/vidsync/vidsync/internal/model"
	"github.com/vidsync/vidsync/internal/store"
)

// maxTaskAttempts bounds how many times a failing queued task is retried
// before it is moved to the dead-letter state. A failed task is retried at
// the next drain; there is no backoff delay between attempts.
const maxTaskAttempts = 5

// AddSourcePayload is the persisted body of a TaskAddSource queued task.
type AddSourcePayload struct {
	Source model.VideoSource `json:"source"`
}

// DeleteSourcePayload is the persisted body of a TaskDeleteSource task.
type DeleteSourcePayload struct {
	SourceID int64 `json:"source_id"`
}

// DeleteVideoPayload is the persisted body of a TaskDeleteVideo task.
type DeleteVideoPayload struct {
	VideoID int64 `json:"video_id"`
}

// UpdateConfigPayload is the persisted body of a TaskUpdateConfig task.
type UpdateConfigPayload struct {
	Key             string          `json:"key"`
	Value           json.RawMessage `json:"value"`
	TriggerRename   bool            `json:"trigger_rename"`
}

// RenamePassFunc runs the template-driven rename pass (C7); it is supplied
// by the daemon's wiring code since it depends on the full template/store
// collaborators scheduler does not otherwise need.
type RenamePassFunc func(ctx context.Context) error

// TaskApplier applies one queued admin mutation to the store. Each method
// runs inside the DrainQueues state, in insertion order, per spec §4.1.
type TaskApplier struct {
	store       *store.Store
	cfgStore    *config.Store
	cfgHolder   *config.Holder
	renamePass  RenamePassFunc
}

// NewTaskApplier wires a TaskApplier against the store and config
// collaborators it dispatches queued tasks to. renamePass may be nil if the
// daemon has no template engine wired (it is then skipped with a warning).
func NewTaskApplier(st *store.Store, cfgStore *config.Store, cfgHolder *config.Holder, renamePass RenamePassFunc) *TaskApplier {
	return &TaskApplier{store: st, cfgStore: cfgStore, cfgHolder: cfgHolder, renamePass: renamePass}
}

// Apply dispatches a single QueuedTask by kind.
func (a *TaskApplier) Apply(ctx context.Context, task model.QueuedTask) error {
	switch task.Kind {
	case model.TaskAddSource:
		var p AddSourcePayload
		if err := json.Unmarshal([]byte(task.PayloadJSON), &p); err != nil {
			return fmt.Errorf("unmarshal add_source payload: %w", err)
		}
		_, err := a.store.UpsertSource(ctx, p.Source)
		return err

	case model.TaskDeleteSource:
		var p DeleteSourcePayload
		if err := json.Unmarshal([]byte(task.PayloadJSON), &p); err != nil {
			return fmt.Errorf("unmarshal delete_source payload: %w", err)
		}
		src, err := a.store.GetSource(ctx, p.SourceID)
		if err != nil {
			return fmt.Errorf("load source %d: %w", p.SourceID, err)
		}
		if src == nil {
			return nil
		}
		src.Enabled = false
		_, err = a.store.UpsertSource(ctx, *src)
		return err

	case model.TaskDeleteVideo:
		var p DeleteVideoPayload
		if err := json.Unmarshal([]byte(task.PayloadJSON), &p); err != nil {
			return fmt.Errorf("unmarshal delete_video payload: %w", err)
		}
		return a.store.SetVideoDeleted(ctx, p.VideoID, true)

	case model.TaskUpdateConfig:
		var p UpdateConfigPayload
		if err := json.Unmarshal([]byte(task.PayloadJSON), &p); err != nil {
			return fmt.Errorf("unmarshal update_config payload: %w", err)
		}
		if a.cfgStore != nil {
			if err := a.cfgStore.UpdateConfigItem(ctx, p.Key, p.Value); err != nil {
				return err
			}
		}
		if a.cfgHolder != nil {
			if err := a.cfgHolder.Reload(ctx); err != nil {
				return fmt.Errorf("reload config after update: %w", err)
			}
		}
		if p.TriggerRename {
			if a.renamePass == nil {
				log.WithComponent("scheduler").Warn().Msg("update_config requested a rename pass but none is wired")
				return nil
			}
			return a.renamePass(ctx)
		}
		return nil

	case model.TaskReloadConfig:
		if a.cfgHolder == nil {
			return nil
		}
		return a.cfgHolder.Reload(ctx)

	default:
		return fmt.Errorf("unknown queued task kind %q", task.Kind)
	}
}
