// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package streamfetch implements the stream fetcher and muxer (spec §4.5):
// quality/codec ranking over an already-resolved candidate list, optional
// CDN-latency sorting, a two-path download (the parallel pool with an
// HTTP Range-resume fallback), and a stream-copy mux via ffmpeg. Resolving
// the candidate list itself from a video platform's playback manifest is an
// external collaborator (spec §1 excludes platform-specific authentication
// bindings); this package only consumes the already-decoded list.
package streamfetch

// Candidate is one selectable stream (a video or audio track) as decoded
// from a platform's playback manifest.
type Candidate struct {
	URLs          []string // mirrors/CDN hosts for the same stream, in no particular order
	QualityBucket int      // higher is better; platform-defined quality id
	Codec         string
	BandwidthBps  int64
	Dolby         bool
	HDR           bool
	HiRes         bool
}

// FilterOptions mirrors spec §4.5's per-source stream selection knobs.
type FilterOptions struct {
	VideoMaxQuality  int
	VideoMinQuality  int
	AudioMaxQuality  int
	AudioMinQuality  int
	CodecPreference  []string // earlier entries preferred
	NoDolbyVideo     bool
	NoDolbyAudio     bool
	NoHDR            bool
	NoHiRes          bool
	CDNSorting       bool
	AudioOnly        bool
}

func codecRank(codec string, preference []string) int {
	for i, c := range preference {
		if c == codec {
			return i
		}
	}
	return len(preference)
}
