// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package pipeline

import (
	"context"

	"github.com/vidsync/vidsync/internal/log"
	"github.com/vidsync/vidsync/internal/model"
)

// CheckPromotion implements spec §4.3's single-page → multi-page promotion
// test: a stored single_page=true video whose remote listing now reports
// more than one page must restart from stage 0 under its new shape.
func CheckPromotion(video model.Video, remotePageCount int) bool {
	return video.SinglePage && remotePageCount > 1
}

// ApplyPromotion performs the promotion steps from spec §4.3: reset the
// status word to zero, flip single_page off, persist both, and log the old
// path. No message is sent through the Notifier about the stale old path;
// it appears only in that log line. The caller re-enters
// the video at stage 0 on its next pipeline pass, since DownloadStatus is
// now zero.
func (p *Pipeline) ApplyPromotion(ctx context.Context, video *model.Video) error {
	oldPath := video.Path
	video.DownloadStatus = model.Status(0)
	video.SinglePage = false

	if err := p.Store.PromoteToMultiPage(ctx, video.ID); err != nil {
		return err
	}

	log.WithComponent("pipeline").Info().
		Int64(log.FieldVideoID, video.ID).
		Str(log.FieldBvid, video.Bvid).
		Str(log.FieldPath, oldPath).
		Msg("single-page video promoted to multi-page; restarting at stage 0")

	return nil
}
