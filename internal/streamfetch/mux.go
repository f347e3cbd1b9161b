// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package streamfetch

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/alessio/shellescape"

	"github.com/vidsync/vidsync/internal/errkind"
	"github.com/vidsync/vidsync/internal/log"
)

// MuxArgs builds the ffmpeg argv for a stream-copy remux of an already
// downloaded video and/or audio part into outputPath, grounded on
// Kethsar-ytarchive's GetFFmpegArgs: no re-encode, just container muxing, so
// both -i inputs are stream-copied straight through.
func MuxArgs(videoPath, audioPath, outputPath string) []string {
	args := []string{"-hide_banner", "-nostdin", "-loglevel", "fatal", "-stats", "-y"}
	if videoPath != "" {
		args = append(args, "-i", videoPath)
	}
	if audioPath != "" {
		args = append(args, "-i", audioPath)
	}
	args = append(args, "-c", "copy", outputPath)
	return args
}

// Mux invokes ffmpeg to stream-copy-mux videoPath and audioPath into
// outputPath. On failure both input parts are left on disk (spec §4.5: "mux
// failure retains both parts") so a later retry or manual recovery can reuse
// the already-downloaded bytes instead of re-fetching them.
func Mux(ctx context.Context, ffmpegPath, videoPath, audioPath, outputPath string) error {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	resolved, err := exec.LookPath(ffmpegPath)
	if err != nil {
		return errkind.New(errkind.MediaManifestUnparseable, "streamfetch.mux", fmt.Errorf("ffmpeg binary not found: %w", err))
	}

	args := MuxArgs(videoPath, audioPath, outputPath)
	cmd := exec.CommandContext(ctx, resolved, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	log.WithComponent("streamfetch").Debug().
		Str("cmd", shellescape.QuoteCommand(cmd.Args)).
		Msg("invoking ffmpeg mux")

	if err := cmd.Run(); err != nil {
		return errkind.New(errkind.MediaManifestUnparseable, "streamfetch.mux",
			fmt.Errorf("ffmpeg mux failed: %w: %s", err, stderr.String()))
	}
	return nil
}
