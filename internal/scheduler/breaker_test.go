// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package scheduler

import (
	"context"
	"errors"
	"testing"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/require"

	"github.com/vidsync/vidsync/internal/errkind"
)

func TestBreakerRegistryReusesBreakerPerSource(t *testing.T) {
	r := newBreakerRegistry()
	a := r.forSource(1)
	b := r.forSource(1)
	c := r.forSource(2)
	require.Same(t, a, b)
	require.NotSame(t, a, c)
}

func TestBreakerRegistryGuardPassesThroughSuccess(t *testing.T) {
	r := newBreakerRegistry()
	err := r.guard(context.Background(), 1, func() error { return nil })
	require.NoError(t, err)
}

func TestBreakerRegistryGuardPropagatesNonRiskError(t *testing.T) {
	r := newBreakerRegistry()
	sentinel := errors.New("boom")
	err := r.guard(context.Background(), 1, func() error { return sentinel })
	require.ErrorIs(t, err, sentinel)
}

func TestBreakerRegistryTripsOnConsecutiveRiskControl(t *testing.T) {
	r := newBreakerRegistry()
	riskErr := errkind.New(errkind.RemoteRiskControl, "fetch", errors.New("anti-abuse"))

	var lastErr error
	for i := 0; i < 5; i++ {
		lastErr = r.guard(context.Background(), 7, func() error { return riskErr })
	}
	require.ErrorIs(t, lastErr, gobreaker.ErrOpenState)
}
