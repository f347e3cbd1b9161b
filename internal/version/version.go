// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package version exposes the build-time identity of the running binary
// and the update-check contract from spec §6 ("GET /api/updates/beta").
package version

var (
	// Version is the current application version, populated by the build
	// system via -ldflags.
	Version = "dev"

	// Commit is the git short hash of the build.
	Commit = "unknown"

	// Date is the build timestamp in RFC 3339, set via -ldflags.
	Date = "unknown"
)

// Info is the reporting-only identity payload returned alongside an update
// check result.
type Info struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// Current returns the running binary's Info.
func Current() Info {
	return Info{Version: Version, Commit: Commit, Date: Date}
}
