// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package streamfetch

import "sort"

// SelectVideo filters and ranks video candidates per spec §4.5, returning the
// best match or false if none survive the filter (the page falls back to
// audio-only, or fails the page entirely if audio also has no survivors).
func SelectVideo(candidates []Candidate, opts FilterOptions) (Candidate, bool) {
	if opts.AudioOnly {
		return Candidate{}, false
	}
	filtered := filterVideo(candidates, opts)
	return best(filtered, opts.CodecPreference)
}

// SelectAudio filters and ranks audio candidates per spec §4.5.
func SelectAudio(candidates []Candidate, opts FilterOptions) (Candidate, bool) {
	filtered := filterAudio(candidates, opts)
	return best(filtered, opts.CodecPreference)
}

func filterVideo(candidates []Candidate, opts FilterOptions) []Candidate {
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if opts.VideoMaxQuality > 0 && c.QualityBucket > opts.VideoMaxQuality {
			continue
		}
		if opts.VideoMinQuality > 0 && c.QualityBucket < opts.VideoMinQuality {
			continue
		}
		if opts.NoDolbyVideo && c.Dolby {
			continue
		}
		if opts.NoHDR && c.HDR {
			continue
		}
		if opts.NoHiRes && c.HiRes {
			continue
		}
		out = append(out, c)
	}
	return out
}

func filterAudio(candidates []Candidate, opts FilterOptions) []Candidate {
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if opts.AudioMaxQuality > 0 && c.QualityBucket > opts.AudioMaxQuality {
			continue
		}
		if opts.AudioMinQuality > 0 && c.QualityBucket < opts.AudioMinQuality {
			continue
		}
		if opts.NoDolbyAudio && c.Dolby {
			continue
		}
		if opts.NoHiRes && c.HiRes {
			continue
		}
		out = append(out, c)
	}
	return out
}

// best ranks by (quality bucket desc, codec preference index asc, bandwidth
// desc) and returns the top candidate.
func best(candidates []Candidate, codecPreference []string) (Candidate, bool) {
	if len(candidates) == 0 {
		return Candidate{}, false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.QualityBucket != b.QualityBucket {
			return a.QualityBucket > b.QualityBucket
		}
		ra, rb := codecRank(a.Codec, codecPreference), codecRank(b.Codec, codecPreference)
		if ra != rb {
			return ra < rb
		}
		return a.BandwidthBps > b.BandwidthBps
	})
	return candidates[0], true
}
