// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package scheduler implements the scan-token state machine and tick loop
// from spec §4.1: a single scan task wakes on an interval, serialises
// against queued administrative mutations, and exposes a pause/resume
// surface to admin handlers.
package scheduler

import "github.com/vidsync/vidsync/internal/pipeline/fsm"

// State is one of the four scan-token states.
type State string

const (
	StateIdle         State = "idle"
	StateScanning     State = "scanning"
	StateDrainQueues  State = "drain_queues"
	StatePaused       State = "paused"
)

// Event drives transitions between States.
type Event string

const (
	EventTick     Event = "tick"
	EventDrain    Event = "drain"
	EventDrained  Event = "drained"
	EventPause    Event = "pause"
	EventResume   Event = "resume"
	EventShutdown Event = "shutdown"
)

// newMachine builds the scan-token FSM diagrammed in spec §4.1:
//
//	Idle ──tick──▶ Scanning ──drain─▶ DrainQueues ──drained──▶ Idle
//	  ▲                │                    │
//	  │                └──pause──▶ Paused ──resume──┘
//	  └────── shutdown ──────────────────────────────┘
//
// Shutdown is reachable from every non-terminal state; the Machine's
// strict-unknown-transition behaviour means each state needs its own
// shutdown edge.
func newMachine() (*fsm.Machine[State, Event], error) {
	transitions := []fsm.Transition[State, Event]{
		{From: StateIdle, Event: EventTick, To: StateScanning},
		{From: StateIdle, Event: EventShutdown, To: StateIdle},

		{From: StateScanning, Event: EventDrain, To: StateDrainQueues},
		{From: StateScanning, Event: EventPause, To: StatePaused},
		{From: StateScanning, Event: EventShutdown, To: StateIdle},

		{From: StateDrainQueues, Event: EventDrained, To: StateIdle},
		{From: StateDrainQueues, Event: EventShutdown, To: StateIdle},

		{From: StatePaused, Event: EventResume, To: StateDrainQueues},
		{From: StatePaused, Event: EventShutdown, To: StateIdle},
	}
	return fsm.New(StateIdle, transitions)
}
