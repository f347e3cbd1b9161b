// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vidsync/vidsync/internal/log"
)

// The application's deserialised configuration document is produced by
// Bundle.ToNestedJSON followed by json.Unmarshal into the caller's concrete
// type. The holder is deliberately untyped (json.RawMessage snapshots) so
// this package has no dependency on the concrete schema.

// Snapshot is one immutable, fully-resolved configuration bundle together
// with the epoch it was published under.
type Snapshot struct {
	Epoch uint64
	Doc   json.RawMessage
}

// Listener receives every published snapshot. Implementations must not block;
// Holder sends are best-effort (dropped if the listener's channel is full).
type Listener chan *Snapshot

// Holder is the hot-reloadable configuration handle: readers call Current()
// for a cheap atomic load, writers call Reload() after a database mutation
// or after a debounced filesystem change fires.
//
// An atomic.Pointer snapshot, an epoch counter so stale reloads can be
// detected, a directory-level fsnotify watch with a debounce timer, and
// non-blocking listener fan-out.
type Holder struct {
	store *Store

	current atomic.Pointer[Snapshot]
	epoch   atomic.Uint64

	mu        sync.Mutex
	listeners []Listener

	watcher *fsnotify.Watcher
}

const reloadDebounce = 500 * time.Millisecond

// NewHolder loads the initial bundle from store and returns a ready Holder.
func NewHolder(ctx context.Context, store *Store) (*Holder, error) {
	h := &Holder{store: store}
	if err := h.reloadFromStore(ctx); err != nil {
		return nil, err
	}
	return h, nil
}

// Current returns the most recently published snapshot. Never nil after
// NewHolder succeeds.
func (h *Holder) Current() *Snapshot {
	return h.current.Load()
}

// RegisterListener subscribes ch to future snapshots. The current snapshot
// is NOT replayed; callers should read Current() first.
func (h *Holder) RegisterListener(ch Listener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, ch)
}

// Reload re-reads the bundle from the store and publishes a new snapshot if
// the resulting document differs from the current one.
func (h *Holder) Reload(ctx context.Context) error {
	return h.reloadFromStore(ctx)
}

func (h *Holder) reloadFromStore(ctx context.Context) error {
	bundle, err := h.store.LoadConfigBundle(ctx)
	if err != nil {
		return err
	}
	doc, err := bundle.ToNestedJSON()
	if err != nil {
		return err
	}

	prev := h.current.Load()
	if prev != nil && string(prev.Doc) == string(doc) {
		return nil
	}

	next := &Snapshot{Epoch: h.epoch.Add(1), Doc: doc}
	h.current.Store(next)
	h.publish(next)
	return nil
}

func (h *Holder) publish(snap *Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, l := range h.listeners {
		select {
		case l <- snap:
		default:
			log.WithComponent("config").Warn().Msg("listener channel full, dropping snapshot")
		}
	}
}

// WatchLegacyFile starts a debounced fsnotify watch on the directory
// containing path (watching the directory, not the file, survives editors
// that replace the file via rename-swap) and triggers Reload after each
// debounce window following a write/create/rename event for path's basename.
//
// The file change is only a trigger: Reload re-reads config_items from the
// store, and the watched file's content is not parsed here, so an edit to
// the file changes the published snapshot only if something else has
// written it into config_items.
func (h *Holder) WatchLegacyFile(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	h.watcher = watcher

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}

	go h.watchLoop(ctx, base)
	return nil
}

func (h *Holder) watchLoop(ctx context.Context, base string) {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
		h.watcher.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.AfterFunc(reloadDebounce, func() {
					if err := h.Reload(ctx); err != nil {
						log.WithComponent("config").Error().Err(err).Msg("reload after file change failed")
					}
				})
			} else {
				timer.Reset(reloadDebounce)
			}
		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			log.WithComponent("config").Error().Err(err).Msg("fsnotify watch error")
		}
	}
}

// Close stops the legacy-file watch, if any.
func (h *Holder) Close() error {
	if h.watcher != nil {
		return h.watcher.Close()
	}
	return nil
}
