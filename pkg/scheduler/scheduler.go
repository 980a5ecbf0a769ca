/*
SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company and component-operator-runtime contributors
SPDX-License-Identifier: Apache-2.0
*/

// Package scheduler implements the Reconcile Scheduler: a bounded worker pool that drains Reconcile
// Requests produced by the Watch Dispatcher, gated by leader election, with a pending-request table
// (newer timestamp wins, one pending request per resource) and a shared TimerWheel for requeue and
// periodic-reconcile scheduling. Grounded on oper8's ReconcileThread, generalized from Python's
// one-process-per-reconcile model to one goroutine per reconcile under a semaphore-bounded pool.
package scheduler

import (
	"context"
	"runtime"
	"sync"
	"time"

	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/sap/component-operator-runtime/pkg/dispatcher"
	"github.com/sap/component-operator-runtime/pkg/leaderelection"
)

// Reconciler is the callback the Scheduler invokes for each surviving Reconcile Request; it plays
// the role of the Reconcile Engine from the Scheduler's point of view.
type Reconciler func(ctx context.Context, request dispatcher.ReconcileRequest) (ctrl.Result, error)

// Config carries the Scheduler's tunables (§4.6, mirroring
// python_watch_manager.{max_concurrent_reconciles,reconcile_period}).
type Config struct {
	// MaxConcurrentReconciles bounds the worker pool; 0 defaults to runtime.NumCPU().
	MaxConcurrentReconciles int
	// ReconcilePeriod, if set, schedules a periodic re-reconcile for every resource that doesn't
	// already ask for a requeue, mirroring oper8's reconcile_period.
	ReconcilePeriod time.Duration
	// Elector gates both the worker pool's overall operation (Acquire) and each individual
	// reconcile (AcquireResource). A nil Elector behaves like leaderelection.Disabled.
	Elector leaderelection.Elector
	// PreconditionPollInterval is how long the scheduling loop waits before re-checking leadership
	// when it isn't currently the leader. Defaults to 1s.
	PreconditionPollInterval time.Duration
}

type pendingEntry struct {
	request   dispatcher.ReconcileRequest
	timestamp time.Time
}

type runningEntry struct {
	cancel context.CancelFunc
}

// Scheduler owns the running/pending request tables and the worker pool driving Reconciler calls.
type Scheduler struct {
	cfg        Config
	reconcile  Reconciler
	maxWorkers int
	wheel      *TimerWheel

	requests chan dispatcher.ReconcileRequest
	done     chan string

	mu         sync.Mutex
	running    map[string]*runningEntry
	pending    map[string]*pendingEntry
	overloaded bool

	wg sync.WaitGroup
}

// New constructs a Scheduler. wheel is the TimerWheel used for requeue/periodic scheduling
// (typically shared with a HeartbeatWriter); callers must start wheel.Run(ctx) themselves.
func New(cfg Config, reconcile Reconciler, wheel *TimerWheel) *Scheduler {
	maxWorkers := cfg.MaxConcurrentReconciles
	if maxWorkers <= 0 {
		maxWorkers = numCPU()
	}
	if cfg.Elector == nil {
		cfg.Elector = leaderelection.NewDisabled()
	}
	if cfg.PreconditionPollInterval <= 0 {
		cfg.PreconditionPollInterval = time.Second
	}
	return &Scheduler{
		cfg:        cfg,
		reconcile:  reconcile,
		maxWorkers: maxWorkers,
		wheel:      wheel,
		requests:   make(chan dispatcher.ReconcileRequest, 1024),
		done:       make(chan string, 1024),
		running:    map[string]*runningEntry{},
		pending:    map[string]*pendingEntry{},
	}
}

// Push enqueues a Reconcile Request for scheduling. Safe to call concurrently with Run.
func (s *Scheduler) Push(request dispatcher.ReconcileRequest) {
	s.requests <- request
}

// Run drains requests and completions until ctx is cancelled, gating every scheduling decision on
// leadership per §4.6/§4.7. It returns once ctx is done and every in-flight reconcile has returned.
func (s *Scheduler) Run(ctx context.Context) {
	defer s.wg.Wait()

	for {
		if !s.waitForLeadership(ctx) {
			return
		}

		select {
		case <-ctx.Done():
			return
		case request := <-s.requests:
			s.handleRequest(ctx, request)
		case uid := <-s.done:
			s.handleCompletion(ctx, uid)
		}
	}
}

// waitForLeadership blocks (polling at PreconditionPollInterval) until this instance is the leader
// or ctx is cancelled, mirroring oper8's check_preconditions/wait_on_precondition.
func (s *Scheduler) waitForLeadership(ctx context.Context) bool {
	for !s.cfg.Elector.IsLeader(nil) {
		if !s.cfg.Elector.Acquire(ctx, false) {
			select {
			case <-ctx.Done():
				return false
			case <-time.After(s.cfg.PreconditionPollInterval):
			}
		}
		select {
		case <-ctx.Done():
			return false
		default:
		}
	}
	return true
}

func (s *Scheduler) handleRequest(ctx context.Context, request dispatcher.ReconcileRequest) {
	uid := request.Resource.UID()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, running := s.running[uid]; running {
		s.pushPendingLocked(request)
		return
	}
	if len(s.running) >= s.maxWorkers {
		s.overloaded = true
		s.pushPendingLocked(request)
		return
	}
	if !s.cfg.Elector.AcquireResource(ctx, request.Resource.Manifest()) {
		s.pushPendingLocked(request)
		return
	}

	s.startLocked(ctx, uid, request)
}

// pushPendingLocked inserts request into the pending table, keeping only the newest request per
// resource, mirroring oper8's _push_to_pending_reconcile.
func (s *Scheduler) pushPendingLocked(request dispatcher.ReconcileRequest) {
	uid := request.Resource.UID()
	now := time.Now()
	if existing, ok := s.pending[uid]; ok {
		if now.After(existing.timestamp) {
			s.pending[uid] = &pendingEntry{request: request, timestamp: now}
		}
		return
	}
	s.pending[uid] = &pendingEntry{request: request, timestamp: now}
}

// startLocked spawns a goroutine running the Reconciler for request; must be called with mu held.
func (s *Scheduler) startLocked(ctx context.Context, uid string, request dispatcher.ReconcileRequest) {
	runCtx, cancel := context.WithCancel(ctx)
	s.running[uid] = &runningEntry{cancel: cancel}
	s.overloaded = false

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()

		result, err := s.reconcile(runCtx, request)

		s.mu.Lock()
		delete(s.running, uid)
		s.mu.Unlock()

		s.cfg.Elector.ReleaseResource(ctx, request.Resource.Manifest())
		s.scheduleFollowUp(request, result, err)

		select {
		case s.done <- uid:
		case <-ctx.Done():
		}
	}()
}

// handleCompletion reacts to a worker slot freeing up: if the pool was overloaded it re-checks
// every pending request (a slot opened up for any of them), otherwise only the resource that just
// finished, mirroring oper8's process_overload branch in ReconcileThread.run.
func (s *Scheduler) handleCompletion(ctx context.Context, uid string) {
	s.mu.Lock()
	overloaded := s.overloaded
	s.mu.Unlock()

	if overloaded {
		for _, pendingUID := range s.pendingUIDs() {
			if !s.tryStartPending(ctx, pendingUID) {
				break
			}
		}
		return
	}
	s.tryStartPending(ctx, uid)
}

func (s *Scheduler) pendingUIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	uids := make([]string, 0, len(s.pending))
	for uid := range s.pending {
		uids = append(uids, uid)
	}
	return uids
}

// tryStartPending starts the pending request for uid, if any and if a slot and the resource lock
// are both available; reports whether it did so.
func (s *Scheduler) tryStartPending(ctx context.Context, uid string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.pending[uid]
	if !ok {
		return false
	}
	if _, running := s.running[uid]; running {
		return false
	}
	if len(s.running) >= s.maxWorkers {
		return false
	}
	if !s.cfg.Elector.AcquireResource(ctx, entry.request.Resource.Manifest()) {
		return false
	}

	delete(s.pending, uid)
	s.startLocked(ctx, uid, entry.request)
	return true
}

// scheduleFollowUp arranges a requeue (result.RequeueAfter, or an immediate requeue for
// result.Requeue) or, absent either, a periodic reconcile if ReconcilePeriod is configured,
// mirroring oper8's _create_timer_event_for_request.
func (s *Scheduler) scheduleFollowUp(request dispatcher.ReconcileRequest, result ctrl.Result, err error) {
	uid := request.Resource.UID()

	s.mu.Lock()
	_, alreadyPending := s.pending[uid]
	s.mu.Unlock()
	if alreadyPending {
		return
	}

	var after time.Duration
	switch {
	case err != nil:
		return
	case result.RequeueAfter > 0:
		after = result.RequeueAfter
	case result.Requeue:
		after = 0
	case s.cfg.ReconcilePeriod > 0 && request.Kind != dispatcher.RequestDeleted:
		after = s.cfg.ReconcilePeriod
	default:
		return
	}

	s.wheel.Put(time.Now().Add(after), func() {
		s.Push(request)
	})
}

func numCPU() int {
	if n := runtime.NumCPU(); n > 0 {
		return n
	}
	return 1
}
