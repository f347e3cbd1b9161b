// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package streamfetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/vidsync/vidsync/internal/downloadpool"
	"github.com/vidsync/vidsync/internal/errkind"
	"github.com/vidsync/vidsync/internal/log"
)

// Manifest is the already-decoded set of selectable streams for one page,
// as handed to this package by the external platform-manifest collaborator
// (see package doc).
type Manifest struct {
	Video []Candidate
	Audio []Candidate
}

// Result describes what FetchPage produced.
type Result struct {
	FinalPath string
	AudioOnly bool
}

// Fetcher composes the C4 parallel pool, the Range-resume HTTP fallback, and
// the ffmpeg mux into the four-step download path from spec §4.5. Pool may
// be nil (every fetch then goes straight to the HTTP fallback path).
type Fetcher struct {
	Pool       *downloadpool.Pool
	HTTPClient *http.Client
	FFmpegPath string
}

// FetchPage selects the best video/audio candidates per opts, downloads each
// (pool first, HTTP Range-resume fallback second), and writes the result to
// workDir/stem plus an extension: .mp4 whenever a video stream is present
// (muxed with the audio stream if there is one), .m4a for audio only.
func (f *Fetcher) FetchPage(ctx context.Context, manifest Manifest, opts FilterOptions, workDir, stem string) (Result, error) {
	video, hasVideo := SelectVideo(manifest.Video, opts)
	audio, hasAudio := SelectAudio(manifest.Audio, opts)
	if !hasVideo && !hasAudio {
		return Result{}, errkind.New(errkind.MediaManifestUnparseable, "streamfetch.fetch_page",
			errors.New("no candidate survived quality/codec filtering"))
	}

	var videoPath, audioPath string
	if hasVideo {
		videoPath = filepath.Join(workDir, stem+".video.part")
		if err := f.downloadCandidate(ctx, video, opts.CDNSorting, videoPath); err != nil {
			return Result{}, fmt.Errorf("download video stream: %w", err)
		}
	}
	if hasAudio {
		audioPath = filepath.Join(workDir, stem+".audio.part")
		if err := f.downloadCandidate(ctx, audio, opts.CDNSorting, audioPath); err != nil {
			return Result{}, fmt.Errorf("download audio stream: %w", err)
		}
	}

	switch {
	case hasVideo && hasAudio:
		out := filepath.Join(workDir, stem+".mp4")
		if err := Mux(ctx, f.FFmpegPath, videoPath, audioPath, out); err != nil {
			return Result{}, err
		}
		_ = os.Remove(videoPath)
		_ = os.Remove(audioPath)
		return Result{FinalPath: out}, nil
	case hasVideo:
		out := filepath.Join(workDir, stem+".mp4")
		if err := os.Rename(videoPath, out); err != nil {
			return Result{}, fmt.Errorf("finalize video-only part: %w", err)
		}
		return Result{FinalPath: out}, nil
	default:
		out := filepath.Join(workDir, stem+".m4a")
		if err := os.Rename(audioPath, out); err != nil {
			return Result{}, fmt.Errorf("finalize audio-only part: %w", err)
		}
		return Result{FinalPath: out, AudioOnly: true}, nil
	}
}

func (f *Fetcher) downloadCandidate(ctx context.Context, c Candidate, cdnSorting bool, targetPath string) error {
	urls := c.URLs
	if cdnSorting {
		urls = SortURLsByLatency(ctx, f.HTTPClient, urls)
	}

	if f.Pool != nil {
		err := f.Pool.FetchWithFallback(ctx, urls, targetPath)
		if err == nil {
			return nil
		}
		if !errors.Is(err, downloadpool.ErrNoHealthyInstance) {
			return err
		}
		log.WithComponent("streamfetch").Warn().
			Err(err).
			Msg("parallel pool unavailable, falling back to single-connection HTTP")
	}

	if len(urls) == 0 {
		return errors.New("streamfetch: candidate has no URLs")
	}
	return RangeFetch(ctx, f.HTTPClient, urls[0], targetPath)
}
