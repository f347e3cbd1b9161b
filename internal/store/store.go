// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package store persists the core data model (video sources, videos, pages,
// config items/changes, queued tasks) in a single SQLite database, applying
// idempotent migrations gated by PRAGMA user_version at startup.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vidsync/vidsync/internal/model"
)

const schemaVersion = 1

// Store wraps a *sql.DB with the domain's CRUD operations. All multi-row
// mutations that form one logical operation run inside an explicit
// transaction, per spec §5's "Shared resources" guarantee.
type Store struct {
	db *sql.DB
}

// Open wraps an already-configured *sql.DB (see persistence/sqlite.Open for
// pragma/DSN setup) and applies migrations.
func Open(ctx context.Context, db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var current int
	if err := tx.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return err
	}
	if current >= schemaVersion {
		return tx.Commit()
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS video_sources (
			id INTEGER PRIMARY KEY,
			kind TEXT NOT NULL,
			display_name TEXT NOT NULL,
			base_directory TEXT NOT NULL,
			enabled INTEGER NOT NULL DEFAULT 1,
			scan_deleted INTEGER NOT NULL DEFAULT 0,
			high_water_mark INTEGER NOT NULL DEFAULT 0,
			attrs_json TEXT NOT NULL DEFAULT '{}'
		)`,
		`CREATE TABLE IF NOT EXISTS videos (
			id INTEGER PRIMARY KEY,
			bvid TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			uploader_name TEXT NOT NULL DEFAULT '',
			uploader_id INTEGER NOT NULL DEFAULT 0,
			published_at INTEGER NOT NULL DEFAULT 0,
			favourited_at INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL DEFAULT 0,
			category TEXT NOT NULL DEFAULT 'regular',
			cover_url TEXT NOT NULL DEFAULT '',
			path TEXT NOT NULL DEFAULT '',
			single_page INTEGER NOT NULL DEFAULT 1,
			collection_id INTEGER NOT NULL DEFAULT 0,
			ref_favourite_id INTEGER NOT NULL DEFAULT 0,
			ref_collection_id INTEGER NOT NULL DEFAULT 0,
			ref_submission_id INTEGER NOT NULL DEFAULT 0,
			ref_watch_later_id INTEGER NOT NULL DEFAULT 0,
			ref_bangumi_id INTEGER NOT NULL DEFAULT 0,
			download_status INTEGER NOT NULL DEFAULT 0,
			deleted INTEGER NOT NULL DEFAULT 0,
			auto_download INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE INDEX IF NOT EXISTS idx_videos_deleted ON videos(deleted)`,
		`CREATE INDEX IF NOT EXISTS idx_videos_status ON videos(download_status)`,
		`CREATE TABLE IF NOT EXISTS pages (
			id INTEGER PRIMARY KEY,
			video_id INTEGER NOT NULL REFERENCES videos(id),
			pid INTEGER NOT NULL,
			cid INTEGER NOT NULL DEFAULT 0,
			name TEXT NOT NULL DEFAULT '',
			width INTEGER NOT NULL DEFAULT 0,
			height INTEGER NOT NULL DEFAULT 0,
			duration_secs INTEGER NOT NULL DEFAULT 0,
			download_status INTEGER NOT NULL DEFAULT 0,
			final_path TEXT NOT NULL DEFAULT '',
			thumbnail_url TEXT NOT NULL DEFAULT '',
			ai_renamed INTEGER NOT NULL DEFAULT 0,
			UNIQUE(video_id, pid)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pages_video ON pages(video_id)`,
		`CREATE TABLE IF NOT EXISTS config_items (
			key TEXT PRIMARY KEY,
			value_json TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS config_changes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			key TEXT NOT NULL,
			old_value TEXT NOT NULL DEFAULT '',
			new_value TEXT NOT NULL DEFAULT '',
			changed_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS queued_tasks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			kind TEXT NOT NULL,
			payload_json TEXT NOT NULL,
			attempts INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			dead_letter INTEGER NOT NULL DEFAULT 0
		)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec migration statement: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return err
	}

	return tx.Commit()
}

// UpsertVideo inserts or updates a video row keyed by bvid.
func (s *Store) UpsertVideo(ctx context.Context, v model.Video) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO videos (
			bvid, title, uploader_name, uploader_id, published_at, favourited_at,
			created_at, category, cover_url, path, single_page, collection_id,
			ref_favourite_id, ref_collection_id, ref_submission_id, ref_watch_later_id, ref_bangumi_id,
			download_status, deleted, auto_download
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(bvid) DO UPDATE SET
			title=excluded.title,
			uploader_name=excluded.uploader_name,
			uploader_id=excluded.uploader_id,
			published_at=excluded.published_at,
			favourited_at=excluded.favourited_at,
			cover_url=excluded.cover_url,
			deleted=excluded.deleted
	`,
		v.Bvid, v.Title, v.UploaderName, v.UploaderID, v.PublishedAt.Unix(), v.FavouritedAt.Unix(),
		v.CreatedAt.Unix(), string(v.Category), v.CoverURL, v.Path, v.SinglePage, v.CollectionID,
		v.Refs.FavouriteID, v.Refs.CollectionID, v.Refs.SubmissionID, v.Refs.WatchLaterID, v.Refs.BangumiID,
		int64(v.DownloadStatus), v.Deleted, v.AutoDownload,
	)
	if err != nil {
		return 0, fmt.Errorf("upsert video: %w", err)
	}
	return res.LastInsertId()
}

// GetVideoByBvid fetches a video by its platform id, returning (nil, nil) if absent.
func (s *Store) GetVideoByBvid(ctx context.Context, bvid string) (*model.Video, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, bvid, title, uploader_name, uploader_id, published_at, favourited_at,
			created_at, category, cover_url, path, single_page, collection_id,
			ref_favourite_id, ref_collection_id, ref_submission_id, ref_watch_later_id, ref_bangumi_id,
			download_status, deleted, auto_download
		FROM videos WHERE bvid = ?`, bvid)

	v, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVideo(row rowScanner) (*model.Video, error) {
	var v model.Video
	var category string
	var publishedAt, favouritedAt, createdAt int64
	err := row.Scan(
		&v.ID, &v.Bvid, &v.Title, &v.UploaderName, &v.UploaderID, &publishedAt, &favouritedAt,
		&createdAt, &category, &v.CoverURL, &v.Path, &v.SinglePage, &v.CollectionID,
		&v.Refs.FavouriteID, &v.Refs.CollectionID, &v.Refs.SubmissionID, &v.Refs.WatchLaterID, &v.Refs.BangumiID,
		&v.DownloadStatus, &v.Deleted, &v.AutoDownload,
	)
	if err != nil {
		return nil, err
	}
	v.Category = model.VideoCategory(category)
	v.PublishedAt = time.Unix(publishedAt, 0).UTC()
	v.FavouritedAt = time.Unix(favouritedAt, 0).UTC()
	v.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &v, nil
}

// UpdateVideoStatus persists a new packed download status for a video.
func (s *Store) UpdateVideoStatus(ctx context.Context, videoID int64, status model.Status) error {
	_, err := s.db.ExecContext(ctx, `UPDATE videos SET download_status = ? WHERE id = ?`, int64(status), videoID)
	return err
}

// ListFailedVideos returns videos with at least one stage in the failure
// range 1..6 (retry counters and the terminal failure code 6), implementing
// the SQL disjunction from spec §4.8.
func (s *Store) ListFailedVideos(ctx context.Context) ([]model.Video, error) {
	const failureFilterSQL = `
		((download_status >> 0) & 7) BETWEEN 1 AND 6 OR
		((download_status >> 3) & 7) BETWEEN 1 AND 6 OR
		((download_status >> 6) & 7) BETWEEN 1 AND 6 OR
		((download_status >> 9) & 7) BETWEEN 1 AND 6 OR
		((download_status >> 12) & 7) BETWEEN 1 AND 6`

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, bvid, title, uploader_name, uploader_id, published_at, favourited_at,
			created_at, category, cover_url, path, single_page, collection_id,
			ref_favourite_id, ref_collection_id, ref_submission_id, ref_watch_later_id, ref_bangumi_id,
			download_status, deleted, auto_download
		FROM videos WHERE `+failureFilterSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

// InsertPage inserts a page row for a video.
func (s *Store) InsertPage(ctx context.Context, p model.Page) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO pages (video_id, pid, cid, name, width, height, duration_secs, download_status, final_path, thumbnail_url, ai_renamed)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(video_id, pid) DO UPDATE SET
			cid=excluded.cid, name=excluded.name, width=excluded.width, height=excluded.height, duration_secs=excluded.duration_secs
	`, p.VideoID, p.Pid, p.Cid, p.Name, p.Width, p.Height, p.DurationSecs, int64(p.DownloadStatus), p.FinalPath, p.ThumbnailURL, p.AIRenamed)
	if err != nil {
		return 0, fmt.Errorf("insert page: %w", err)
	}
	return res.LastInsertId()
}

// UpdatePageStatus persists a new packed download status and final path for
// a page directly, bypassing InsertPage's ON CONFLICT clause (which
// deliberately never overwrites download_status/final_path, so a rescan's
// re-upsert stays idempotent with respect to pipeline progress).
func (s *Store) UpdatePageStatus(ctx context.Context, pageID int64, status model.Status, finalPath string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE pages SET download_status = ?, final_path = ? WHERE id = ?`, int64(status), finalPath, pageID)
	return err
}

// PagesForVideo returns all pages belonging to videoID ordered by pid.
func (s *Store) PagesForVideo(ctx context.Context, videoID int64) ([]model.Page, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, video_id, pid, cid, name, width, height, duration_secs, download_status, final_path, thumbnail_url, ai_renamed
		FROM pages WHERE video_id = ? ORDER BY pid ASC`, videoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Page
	for rows.Next() {
		var p model.Page
		if err := rows.Scan(&p.ID, &p.VideoID, &p.Pid, &p.Cid, &p.Name, &p.Width, &p.Height,
			&p.DurationSecs, &p.DownloadStatus, &p.FinalPath, &p.ThumbnailURL, &p.AIRenamed); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// EnqueueTask persists a QueuedTask before the caller acknowledges the
// admin request, so an abrupt restart replays it (spec §4.1).
func (s *Store) EnqueueTask(ctx context.Context, kind model.QueuedTaskKind, payload any) (int64, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal task payload: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO queued_tasks (kind, payload_json, attempts, created_at, dead_letter)
		VALUES (?, ?, 0, ?, 0)`, string(kind), string(buf), time.Now().Unix())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// DrainQueuedTasks returns all non-dead-letter tasks in insertion order,
// the order spec §4.1 requires admin mutations to be applied in.
func (s *Store) DrainQueuedTasks(ctx context.Context) ([]model.QueuedTask, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, payload_json, attempts, created_at, dead_letter
		FROM queued_tasks WHERE dead_letter = 0 ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.QueuedTask
	for rows.Next() {
		var t model.QueuedTask
		var kind string
		var createdAt int64
		if err := rows.Scan(&t.ID, &kind, &t.PayloadJSON, &t.Attempts, &createdAt, &t.DeadLetter); err != nil {
			return nil, err
		}
		t.Kind = model.QueuedTaskKind(kind)
		t.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}

// CompleteTask removes a successfully applied task.
func (s *Store) CompleteTask(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM queued_tasks WHERE id = ?`, id)
	return err
}

// RetryOrDeadLetterTask bumps the attempt counter; once it reaches maxAttempts
// the task is marked dead-letter instead of deleted.
func (s *Store) RetryOrDeadLetterTask(ctx context.Context, id int64, maxAttempts int) error {
	var attempts int
	if err := s.db.QueryRowContext(ctx, `SELECT attempts FROM queued_tasks WHERE id = ?`, id).Scan(&attempts); err != nil {
		return err
	}
	attempts++
	deadLetter := attempts >= maxAttempts
	_, err := s.db.ExecContext(ctx, `UPDATE queued_tasks SET attempts = ?, dead_letter = ? WHERE id = ?`, attempts, deadLetter, id)
	return err
}

// UpsertSource inserts or updates a video source row, keyed by id when
// positive (0 means insert and assign a new id).
func (s *Store) UpsertSource(ctx context.Context, src model.VideoSource) (int64, error) {
	attrs, err := json.Marshal(src)
	if err != nil {
		return 0, fmt.Errorf("marshal source attrs: %w", err)
	}
	if src.ID == 0 {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO video_sources (kind, display_name, base_directory, enabled, scan_deleted, high_water_mark, attrs_json)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, src.Kind, src.DisplayName, src.BaseDirectory, src.Enabled, src.ScanDeleted, src.HighWaterMark, string(attrs))
		if err != nil {
			return 0, err
		}
		return res.LastInsertId()
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE video_sources SET kind = ?, display_name = ?, base_directory = ?, enabled = ?, scan_deleted = ?, high_water_mark = ?, attrs_json = ?
		WHERE id = ?
	`, src.Kind, src.DisplayName, src.BaseDirectory, src.Enabled, src.ScanDeleted, src.HighWaterMark, string(attrs), src.ID)
	return src.ID, err
}

// ListSources returns every configured video source.
func (s *Store) ListSources(ctx context.Context) ([]model.VideoSource, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, attrs_json FROM video_sources`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.VideoSource
	for rows.Next() {
		var id int64
		var attrs string
		if err := rows.Scan(&id, &attrs); err != nil {
			return nil, err
		}
		var src model.VideoSource
		if err := json.Unmarshal([]byte(attrs), &src); err != nil {
			return nil, fmt.Errorf("unmarshal source %d attrs: %w", id, err)
		}
		src.ID = id
		out = append(out, src)
	}
	return out, rows.Err()
}

// GetSource fetches a single source by id, returning (nil, nil) if absent.
func (s *Store) GetSource(ctx context.Context, id int64) (*model.VideoSource, error) {
	row := s.db.QueryRowContext(ctx, `SELECT attrs_json FROM video_sources WHERE id = ?`, id)
	var attrs string
	if err := row.Scan(&attrs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	var src model.VideoSource
	if err := json.Unmarshal([]byte(attrs), &src); err != nil {
		return nil, fmt.Errorf("unmarshal source %d attrs: %w", id, err)
	}
	src.ID = id
	return &src, nil
}

// PromoteToMultiPage implements spec §4.3's single-page → multi-page
// promotion persistence: flips single_page off and resets the status word
// to zero in one statement, since neither column is touched by
// UpsertVideo's ON CONFLICT clause.
func (s *Store) PromoteToMultiPage(ctx context.Context, videoID int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE videos SET single_page = 0, download_status = 0 WHERE id = ?`, videoID)
	return err
}

// SetVideoDeleted marks a video as admin-deleted (spec §4.3's
// deleted-upstream handling, applied here to an explicit admin mutation
// rather than a scan observation): the row and on-disk tree are retained.
// No query in this package filters on the flag; listings such as
// ListFailedVideos return deleted videos regardless of the owning source's
// ScanDeleted flag.
func (s *Store) SetVideoDeleted(ctx context.Context, videoID int64, deleted bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE videos SET deleted = ? WHERE id = ?`, deleted, videoID)
	return err
}

// ApplySkipOptionToSources flips the download-danmaku/download-subtitle
// flags off across every configured source. It exists solely to carry
// forward a legacy global skip-option setting discovered during config
// migration (per-source flags did not exist under the legacy schema).
func (s *Store) ApplySkipOptionToSources(ctx context.Context, noDanmaku, noSubtitle bool) error {
	if !noDanmaku && !noSubtitle {
		return nil
	}
	sources, err := s.ListSources(ctx)
	if err != nil {
		return err
	}
	for _, src := range sources {
		if noDanmaku {
			src.Flavour.IncludeDanmaku = false
		}
		if noSubtitle {
			src.Flavour.IncludeSubtitles = false
		}
		if _, err := s.UpsertSource(ctx, src); err != nil {
			return fmt.Errorf("apply skip option to source %d: %w", src.ID, err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
