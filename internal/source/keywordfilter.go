// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package source

import (
	"regexp"

	"github.com/vidsync/vidsync/internal/log"
	"github.com/vidsync/vidsync/internal/model"
)

// compiledFilter caches the compiled blacklist/whitelist regex lists for a
// KeywordFilter so a scan iteration does not recompile per title.
type compiledFilter struct {
	blacklist []*regexp.Regexp
	whitelist []*regexp.Regexp
}

func compileKeywords(patterns []string, caseSensitive bool) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		pattern := p
		if !caseSensitive {
			pattern = "(?i)" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			log.WithComponent("source").Warn().
				Str(log.FieldEvent, "keyword_filter.invalid_pattern").
				Str("pattern", p).
				Err(err).
				Msg("skipping invalid keyword filter pattern")
			continue
		}
		out = append(out, re)
	}
	return out
}

// CompileKeywordFilter compiles a model.KeywordFilter into a reusable matcher.
func CompileKeywordFilter(f model.KeywordFilter) *compiledFilter {
	return &compiledFilter{
		blacklist: compileKeywords(f.Blacklist, f.CaseSensitive),
		whitelist: compileKeywords(f.Whitelist, f.CaseSensitive),
	}
}

// ShouldFilter reports whether title should be excluded from admission.
// Grounded line-for-line on should_filter_video_dual_list: if a non-empty
// whitelist exists the title must match one of its patterns, then any
// blacklist match excludes the title regardless of whitelist outcome.
func (c *compiledFilter) ShouldFilter(title string) bool {
	if len(c.whitelist) > 0 {
		matched := false
		for _, re := range c.whitelist {
			if re.MatchString(title) {
				matched = true
				break
			}
		}
		if !matched {
			return true
		}
	}

	for _, re := range c.blacklist {
		if re.MatchString(title) {
			return true
		}
	}

	return false
}

// ShouldFilterVideoDualList is the direct functional form, compiling on
// every call. Adapters should prefer CompileKeywordFilter+ShouldFilter when
// filtering many titles against the same source in one scan.
func ShouldFilterVideoDualList(title string, f model.KeywordFilter) bool {
	return CompileKeywordFilter(f).ShouldFilter(title)
}
