// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package downloadpool manages a pool of externally-spawned aria2 worker
// processes, each controlled over its JSON-RPC-over-HTTP control endpoint,
// and implements the instance-count/thread-budget sizing tables and
// load-balanced task submission described in spec §4.4.
package downloadpool

import "math"

// InstanceCount returns the number of worker processes to launch for a given
// total thread budget, per spec §4.4's table.
func InstanceCount(totalThreads int) int {
	switch {
	case totalThreads <= 4:
		return 1
	case totalThreads <= 8:
		return 2
	case totalThreads <= 16:
		return 4
	case totalThreads <= 32:
		return 5
	default:
		v := int(math.Ceil(float64(totalThreads) / 6))
		if v > 8 {
			return 8
		}
		return v
	}
}

// MaxThreadsPerInstance caps the per-instance thread budget derived from
// totalThreads, per spec §4.4's table.
func MaxThreadsPerInstance(totalThreads int) int {
	switch {
	case totalThreads <= 16:
		return totalThreads
	case totalThreads <= 32:
		return 16
	case totalThreads <= 64:
		return 20
	case totalThreads <= 128:
		return 24
	default:
		return 32
	}
}

// ThreadsPerInstance computes the per-instance thread budget:
// ceil(totalThreads / instanceCount), clamped to MaxThreadsPerInstance.
func ThreadsPerInstance(totalThreads, instanceCount int) int {
	if instanceCount <= 0 {
		instanceCount = 1
	}
	budget := int(math.Ceil(float64(totalThreads) / float64(instanceCount)))
	if max := MaxThreadsPerInstance(totalThreads); budget > max {
		budget = max
	}
	if budget < 1 {
		budget = 1
	}
	return budget
}

// ThreadsForFileSize tunes a task's thread count down from base (the
// instance's thread budget) according to the remote file's size in bytes,
// per spec §4.4's file-size-aware adjustment table.
func ThreadsForFileSize(base int, sizeBytes int64, totalThreads int) int {
	const mib = 1 << 20
	sizeMiB := sizeBytes / mib

	switch {
	case sizeMiB <= 2:
		return 1
	case sizeMiB <= 10:
		return min(base, 2)
	case sizeMiB <= 50:
		return min(base, 4)
	case sizeMiB <= 200:
		return min(base, 8)
	case sizeMiB <= 1000:
		return min(base, 12)
	default:
		threeQuarters := int(math.Ceil(0.75 * float64(totalThreads)))
		v := max(base, threeQuarters)
		return min(v, 16)
	}
}
