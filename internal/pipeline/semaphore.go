// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package pipeline

import "context"

// Semaphore is a buffered-channel counting semaphore, the idiomatic Go
// substitute for spec §4.3's "concurrent_video"/"concurrent_page" gates.
type Semaphore chan struct{}

// NewSemaphore returns a Semaphore admitting at most n concurrent holders.
// n <= 0 is treated as unlimited (a nil Semaphore, whose Acquire/Release are
// no-ops).
func NewSemaphore(n int) Semaphore {
	if n <= 0 {
		return nil
	}
	return make(Semaphore, n)
}

// Acquire blocks until a slot is free or ctx is done.
func (s Semaphore) Acquire(ctx context.Context) error {
	if s == nil {
		return nil
	}
	select {
	case s <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot acquired via Acquire.
func (s Semaphore) Release() {
	if s == nil {
		return
	}
	<-s
}
