// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMachineFullScanCycle(t *testing.T) {
	m, err := newMachine()
	require.NoError(t, err)
	ctx := context.Background()

	st, err := m.Fire(ctx, EventTick)
	require.NoError(t, err)
	require.Equal(t, StateScanning, st)

	st, err = m.Fire(ctx, EventDrain)
	require.NoError(t, err)
	require.Equal(t, StateDrainQueues, st)

	st, err = m.Fire(ctx, EventDrained)
	require.NoError(t, err)
	require.Equal(t, StateIdle, st)
}

func TestMachinePauseResumeCycle(t *testing.T) {
	m, err := newMachine()
	require.NoError(t, err)
	ctx := context.Background()

	_, err = m.Fire(ctx, EventTick)
	require.NoError(t, err)

	st, err := m.Fire(ctx, EventPause)
	require.NoError(t, err)
	require.Equal(t, StatePaused, st)

	st, err = m.Fire(ctx, EventResume)
	require.NoError(t, err)
	require.Equal(t, StateDrainQueues, st)
}

func TestMachineRejectsInvalidTransition(t *testing.T) {
	m, err := newMachine()
	require.NoError(t, err)
	_, err = m.Fire(context.Background(), EventDrain)
	require.Error(t, err)
}

func TestMachineShutdownFromIdle(t *testing.T) {
	m, err := newMachine()
	require.NoError(t, err)
	st, err := m.Fire(context.Background(), EventShutdown)
	require.NoError(t, err)
	require.Equal(t, StateIdle, st)
}
