// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package scheduler

import (
	"context"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/vidsync/vidsync/internal/errkind"
	"github.com/vidsync/vidsync/internal/log"
)

// breakerRegistry holds one circuit breaker per source id, tripping on
// sustained RemoteRiskControl/RemoteTransient errors so a single
// misbehaving source cannot starve the scheduler's tick budget. This is
// the Go-native expression of spec §4.2's "enters enable_auto_backoff".
type breakerRegistry struct {
	mu       sync.Mutex
	breakers map[int64]*gobreaker.CircuitBreaker[any]
}

func newBreakerRegistry() *breakerRegistry {
	return &breakerRegistry{breakers: make(map[int64]*gobreaker.CircuitBreaker[any])}
}

func (r *breakerRegistry) forSource(sourceID int64) *gobreaker.CircuitBreaker[any] {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, ok := r.breakers[sourceID]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "source-breaker",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithComponent("scheduler").Warn().
				Int64("source_id", sourceID).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("source circuit breaker state change")
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			kind, ok := errkind.KindOf(err)
			if !ok {
				return true
			}
			return kind != errkind.RemoteRiskControl && kind != errkind.RemoteTransient
		},
	})
	r.breakers[sourceID] = cb
	return cb
}

// guard runs fn through the per-source breaker. ctx is accepted for
// call-site symmetry with the rest of the scanning path even though
// gobreaker's Execute does not itself take a context.
func (r *breakerRegistry) guard(ctx context.Context, sourceID int64, fn func() error) error {
	_, err := r.forSource(sourceID).Execute(func() (any, error) {
		return nil, fn()
	})
	return err
}
