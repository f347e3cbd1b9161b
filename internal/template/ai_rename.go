// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package template

import "context"

// TitleRewriter rewrites a video or page display title before template
// rendering, gated per-source by DownloadFlavour.AIRenameEnabled and
// AIRenameScopes (spec §10's AI-assisted rename supplement, grounded on
// original_source/.../ai_rename.rs and deepseek_pow.rs).
//
// The concrete LLM client and its proof-of-work handshake need live network
// credentials this exercise cannot carry, so only the interface and a
// no-op default are implemented; callers needing the real behaviour supply
// their own TitleRewriter.
type TitleRewriter interface {
	Rewrite(ctx context.Context, scope, originalTitle string) (rewritten string, renamed bool, err error)
}

// NoopTitleRewriter always returns the original title unchanged.
type NoopTitleRewriter struct{}

func (NoopTitleRewriter) Rewrite(_ context.Context, _, originalTitle string) (string, bool, error) {
	return originalTitle, false, nil
}
