// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vidsync/vidsync/internal/admission"
	"github.com/vidsync/vidsync/internal/errkind"
	"github.com/vidsync/vidsync/internal/log"
	"github.com/vidsync/vidsync/internal/model"
	"github.com/vidsync/vidsync/internal/pipeline/fsm"
	"github.com/vidsync/vidsync/internal/store"
)

// ErrAlreadyRunning is returned by Run if called more than once on the same
// Scheduler.
var ErrAlreadyRunning = errors.New("scheduler: already running")

// SourceScanner iterates one enabled source end to end: fetch the remote
// listing page by page via its adapter, upsert new videos/pages, and enqueue
// each admitted video into the processing pipeline (C3). The scheduler only
// depends on this narrow interface so it stays testable without a real
// adapter registry or pipeline wired in.
type SourceScanner interface {
	ScanSource(ctx context.Context, source model.VideoSource) error
}

// Scheduler drives the scan-token state machine and tick loop: a single
// long-running goroutine supervised by an errgroup, ticking on an interval
// that restarts only once the previous tick has fully completed.
type Scheduler struct {
	interval  time.Duration
	store     *store.Store
	scanner   SourceScanner
	applier   *TaskApplier
	breakers  *breakerRegistry
	admission admission.Hook

	machine *fsm.Machine[State, Event]

	mu          sync.Mutex
	pauseCount  int
	resumeCh    chan struct{}
	immediateCh chan struct{}
	quiescentCh chan struct{}
}

// New constructs a Scheduler. scanner and applier must be non-nil;
// interval must be positive. hook may be nil, in which case admission
// events (credential invalid, risk control detected) are discarded.
func New(interval time.Duration, st *store.Store, scanner SourceScanner, applier *TaskApplier, hook admission.Hook) (*Scheduler, error) {
	if interval <= 0 {
		return nil, errors.New("scheduler: interval must be positive")
	}
	if scanner == nil {
		return nil, errors.New("scheduler: scanner is required")
	}
	if applier == nil {
		return nil, errors.New("scheduler: applier is required")
	}
	if hook == nil {
		hook = admission.NoopHook{}
	}
	m, err := newMachine()
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		interval:    interval,
		store:       st,
		scanner:     scanner,
		applier:     applier,
		breakers:    newBreakerRegistry(),
		admission:   hook,
		machine:     m,
		immediateCh: make(chan struct{}, 1),
	}, nil
}

// IsScanning reports whether the scheduler currently holds the scan token
// (Scanning or DrainQueues), the observable admin handlers use to decide
// whether to queue or execute a mutation directly.
func (s *Scheduler) IsScanning() bool {
	st := s.machine.State()
	return st == StateScanning || st == StateDrainQueues
}

// ResumeScanning collapses into at most one pending immediate tick,
// matching spec §4.1's "Immediate tick request ... collapses into at most
// one pending tick."
func (s *Scheduler) ResumeScanning() {
	select {
	case s.immediateCh <- struct{}{}:
	default:
	}
}

// Pause requests the scheduler suspend at its next safe point (the
// Scanning→DrainQueues boundary) and blocks until it is quiescent. Nested
// pauses require matching Resume calls before scanning continues.
func (s *Scheduler) Pause(ctx context.Context) error {
	s.mu.Lock()
	s.pauseCount++
	first := s.pauseCount == 1
	if first {
		s.quiescentCh = make(chan struct{})
	}
	quiescent := s.quiescentCh
	s.mu.Unlock()

	if !first {
		// A pause is already in effect; this caller just adds to the
		// nesting count and relies on the existing quiescent signal.
		select {
		case <-quiescent:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if s.machine.State() == StateIdle {
		s.mu.Lock()
		close(s.quiescentCh)
		s.mu.Unlock()
		return nil
	}

	select {
	case <-quiescent:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Resume decrements the pause nesting count; scanning resumes only once
// every matching Pause has been Resumed.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pauseCount == 0 {
		return
	}
	s.pauseCount--
	if s.pauseCount == 0 && s.resumeCh != nil {
		close(s.resumeCh)
		s.resumeCh = nil
	}
}

func (s *Scheduler) paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pauseCount > 0
}

// Run blocks until ctx is cancelled, driving the tick loop via an
// errgroup-supervised goroutine.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				s.runTick(ctx)
			case <-s.immediateCh:
				s.runTick(ctx)
				ticker.Reset(s.interval)
			}
		}
	})

	return g.Wait()
}

// runTick advances the state machine through one full Scanning→DrainQueues
// cycle. Panics from an individual source's adapter are recovered so they
// abort only that source's iteration, per spec §4.1's failure policy.
func (s *Scheduler) runTick(ctx context.Context) {
	if _, err := s.machine.Fire(ctx, EventTick); err != nil {
		log.WithComponent("scheduler").Error().Err(err).Msg("tick rejected by state machine")
		return
	}

	sources, err := s.store.ListSources(ctx)
	if err != nil {
		log.WithComponent("scheduler").Error().Err(err).Msg("list sources failed")
	}

	for _, src := range sources {
		if !src.Enabled {
			continue
		}
		s.scanOneSource(ctx, src)
	}

	// The Scanning→DrainQueues boundary is the "next safe point" spec §4.1
	// names for Pause to take effect: once every source has had its turn
	// this tick, a pending pause suspends before admin tasks are applied.
	if s.paused() {
		if _, err := s.machine.Fire(ctx, EventPause); err != nil {
			log.WithComponent("scheduler").Error().Err(err).Msg("pause transition rejected")
			return
		}
		s.waitForResume(ctx)
	} else if _, err := s.machine.Fire(ctx, EventDrain); err != nil {
		log.WithComponent("scheduler").Error().Err(err).Msg("drain transition rejected")
		return
	}

	s.drainQueuedTasks(ctx)

	if _, err := s.machine.Fire(ctx, EventDrained); err != nil {
		log.WithComponent("scheduler").Error().Err(err).Msg("drained transition rejected")
	}

	s.mu.Lock()
	if s.quiescentCh != nil && s.pauseCount == 0 {
		select {
		case <-s.quiescentCh:
		default:
			close(s.quiescentCh)
		}
	}
	s.mu.Unlock()
}

func (s *Scheduler) waitForResume(ctx context.Context) {
	s.mu.Lock()
	if s.quiescentCh != nil {
		select {
		case <-s.quiescentCh:
		default:
			close(s.quiescentCh)
		}
	}
	ch := make(chan struct{})
	s.resumeCh = ch
	s.mu.Unlock()

	select {
	case <-ch:
	case <-ctx.Done():
	}
	if _, err := s.machine.Fire(ctx, EventResume); err != nil {
		log.WithComponent("scheduler").Error().Err(err).Msg("resume transition rejected")
	}
}

func (s *Scheduler) scanOneSource(ctx context.Context, src model.VideoSource) {
	defer func() {
		if r := recover(); r != nil {
			log.WithComponent("scheduler").Error().
				Int64("source_id", src.ID).
				Interface("panic", r).
				Msg("source adapter panicked; iteration aborted")
		}
	}()

	err := s.breakers.guard(ctx, src.ID, func() error {
		return s.scanner.ScanSource(ctx, src)
	})
	if err != nil {
		log.WithComponent("scheduler").Warn().
			Int64("source_id", src.ID).
			Err(err).
			Msg("source scan iteration failed")
		s.reportAdmission(ctx, src.ID, err)
	}
}

// reportAdmission routes RemoteForbidden/RemoteRiskControl errors to the
// admission hook (spec §9's "credential invalid"/"risk control detected"
// hook-in point); other error kinds are left to the breaker/retry
// machinery.
func (s *Scheduler) reportAdmission(ctx context.Context, sourceID int64, cause error) {
	kind, ok := errkind.KindOf(cause)
	if !ok {
		return
	}
	var hookErr error
	switch kind {
	case errkind.RemoteForbidden:
		hookErr = s.admission.CredentialInvalid(ctx, sourceID)
	case errkind.RemoteRiskControl:
		hookErr = s.admission.RiskControlDetected(ctx, sourceID, cause.Error())
	default:
		return
	}
	if hookErr != nil {
		log.WithComponent("scheduler").Error().
			Int64("source_id", sourceID).
			Err(hookErr).
			Msg("admission hook failed")
	}
}

// drainQueuedTasks applies every queued admin mutation in insertion order,
// each a logically independent unit: a failing task is retried with a
// bounded counter rather than aborting the whole drain.
func (s *Scheduler) drainQueuedTasks(ctx context.Context) {
	tasks, err := s.store.DrainQueuedTasks(ctx)
	if err != nil {
		log.WithComponent("scheduler").Error().Err(err).Msg("drain queued tasks list failed")
		return
	}

	for _, task := range tasks {
		if err := s.applier.Apply(ctx, task); err != nil {
			log.WithComponent("scheduler").Warn().
				Int64("task_id", task.ID).
				Str("kind", string(task.Kind)).
				Err(err).
				Msg("queued task failed, retrying")
			if retryErr := s.store.RetryOrDeadLetterTask(ctx, task.ID, maxTaskAttempts); retryErr != nil {
				log.WithComponent("scheduler").Error().Err(retryErr).Msg("failed to record task retry")
			}
			continue
		}
		if err := s.store.CompleteTask(ctx, task.ID); err != nil {
			log.WithComponent("scheduler").Error().Err(err).Msg("failed to complete task")
		}
	}
}
