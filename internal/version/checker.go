// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package version

import (
	"context"
	"os"
	"sync"
	"time"
)

// Default env vars read once at startup for the update-check comparison,
// per spec §6's "Environment variables consumed by the core". Both name an
// RFC 3339 timestamp.
const (
	EnvImagePublishedAt = "VIDSYNC_IMAGE_PUBLISHED_AT"
	EnvLocalBuildTime   = "VIDSYNC_BUILD_TIME"
)

// cacheTTL and tolerance match spec §6's update-check contract.
const (
	cacheTTL  = 10 * time.Minute
	tolerance = 120 * time.Second
)

// Result is the cached outcome of an update check.
type Result struct {
	UpToDate         bool  `json:"up_to_date"`
	ImagePublishedAt *Time `json:"image_published_at,omitempty"`
	LocalBuildTime   *Time `json:"local_build_time,omitempty"`
	Info             Info  `json:"info"`
}

// Time aliases time.Time for the result's JSON shape (RFC 3339 via the
// standard MarshalJSON).
type Time = time.Time

// Checker is the update-check contract from spec §6's
// `GET /api/updates/beta`: an image-published timestamp is compared against
// the local build time, with a cached result and tolerance window so
// near-simultaneous publish/build timestamps don't flap.
type Checker interface {
	Check(ctx context.Context) (Result, error)
}

// EnvChecker reads both timestamps once at startup from environment
// variables (the out-of-scope external "image registry" and "build
// pipeline" collaborators spec §6 names), then serves a cached comparison
// result for cacheTTL before recomputing.
type EnvChecker struct {
	imagePublishedAt time.Time
	localBuildTime   time.Time
	hasTimestamps    bool

	mu       sync.Mutex
	cached   Result
	cachedAt time.Time
}

// NewEnvChecker reads EnvImagePublishedAt and EnvLocalBuildTime once. If
// either is absent or unparsable, Check always reports UpToDate: true (no
// comparison possible) rather than erroring, since the update check is
// advisory only.
func NewEnvChecker() *EnvChecker {
	c := &EnvChecker{}
	published, pOK := parseEnvTime(EnvImagePublishedAt)
	built, bOK := parseEnvTime(EnvLocalBuildTime)
	if pOK && bOK {
		c.imagePublishedAt = published
		c.localBuildTime = built
		c.hasTimestamps = true
	}
	return c
}

func parseEnvTime(key string) (time.Time, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Check returns the cached comparison, recomputing it if the cache has
// expired past cacheTTL.
func (c *EnvChecker) Check(ctx context.Context) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if time.Since(c.cachedAt) < cacheTTL && !c.cachedAt.IsZero() {
		return c.cached, nil
	}

	result := Result{UpToDate: true, Info: Current()}
	if c.hasTimestamps {
		published := c.imagePublishedAt
		built := c.localBuildTime
		result.ImagePublishedAt = &published
		result.LocalBuildTime = &built
		// Within tolerance, or the image predates the local build: current.
		result.UpToDate = !published.After(built.Add(tolerance))
	}

	c.cached = result
	c.cachedAt = time.Now()
	return result, nil
}
