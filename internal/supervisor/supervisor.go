// Package supervisor owns the lifecycle of the full pipeline: it sizes the
// worker pool from the resource oracle, wires the queues and event bus
// together, and drives graceful shutdown in the prescribed order.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/example/proverclient/internal/config"
	"github.com/example/proverclient/internal/difficulty"
	"github.com/example/proverclient/internal/events"
	"github.com/example/proverclient/internal/fetcher"
	"github.com/example/proverclient/internal/identity"
	"github.com/example/proverclient/internal/orchestrator"
	"github.com/example/proverclient/internal/pipeline"
	"github.com/example/proverclient/internal/pool"
	"github.com/example/proverclient/internal/prover"
	"github.com/example/proverclient/internal/resources"
	"github.com/example/proverclient/internal/submitter"
)

// ErrResourceStarved is returned from Run when the host cannot support even
// a single worker; startup never issues a fetch in this case.
var ErrResourceStarved = resources.ErrInsufficientResources

// Supervisor wires every component together and runs until shutdown.
type Supervisor struct {
	cfg    config.Config
	bus    *events.Bus
	engine prover.Engine

	remainingTasks int64 // --max-tasks counter; <0 means unbounded
	cancelOnce     sync.Once
	cancel         context.CancelFunc
}

// New constructs a Supervisor. engine may be nil, in which case a
// deterministic stub prover is used.
func New(cfg config.Config, engine prover.Engine) *Supervisor {
	if engine == nil {
		engine = prover.Stub{}
	}
	return &Supervisor{cfg: cfg, bus: events.NewBus(cfg.EventBusCapacity), engine: engine}
}

// Events exposes the bus so an external observer (dashboard, logger) can
// subscribe before or after Run starts.
func (s *Supervisor) Events() *events.Bus { return s.bus }

// Run blocks until ctx is cancelled, --max-tasks is satisfied, or startup
// fails fatally. It returns ErrResourceStarved, a ConfigError-equivalent, or
// nil on clean shutdown.
func (s *Supervisor) Run(ctx context.Context) error {
	if s.cfg.NodeID == "" {
		return errors.New("config error: node id is required")
	}

	oracle := resources.Oracle{}
	workers, err := oracle.RecommendWorkers(s.cfg.MaxThreads)
	if err != nil {
		return fmt.Errorf("%w", err)
	}
	s.bus.Publish(events.New(events.Info, "supervisor", fmt.Sprintf("sizing worker pool: %d workers", workers)))

	id, err := identity.New()
	if err != nil {
		return fmt.Errorf("config error: generate signing identity: %w", err)
	}

	dc := difficulty.New(s.cfg.MaxDifficulty)
	oc := orchestrator.New(s.cfg.OrchestratorURL, s.cfg.RequestTimeout)

	taskQ := make(chan pipeline.Task, workers)
	subQ := make(chan pipeline.Submission, workers+4)

	// F stops the instant the shutdown signal fires. Pool and submitter get
	// their own contexts so they can drain already-admitted work for up to
	// shutdownGrace after the signal, instead of aborting immediately.
	fetchCtx, cancelFetch := context.WithCancel(context.Background())
	poolCtx, cancelPool := context.WithCancel(context.Background())
	subCtx, cancelSub := context.WithCancel(context.Background())
	s.cancel = cancelFetch
	defer cancelFetch()
	defer cancelPool()
	defer cancelSub()

	go func() {
		<-ctx.Done()
		cancelFetch()
	}()

	s.remainingTasks = -1
	if s.cfg.MaxTasks > 0 {
		s.remainingTasks = int64(s.cfg.MaxTasks)
	}

	f := fetcher.New(s.cfg.NodeID, id.PublicKey(), oc, dc, s.bus, taskQ)
	p := pool.New(workers, s.engine, s.bus, taskQ, subQ, s.cfg.CheckMemory)
	sub := submitter.New(s.cfg.NodeID, id, oc, dc, s.bus, subQ, s.cfg.SubmissionRetries, s.onTerminal, fetchCtx)

	fetchDone := make(chan struct{})
	go func() { f.Run(fetchCtx); close(fetchDone) }()

	poolDone := make(chan struct{})
	go func() { p.Run(poolCtx); close(poolDone) }()

	subDone := make(chan struct{})
	go func() { sub.Run(subCtx); close(subDone) }()

	// Stop F first, then drain the task queue into the pool.
	<-fetchDone
	close(taskQ)
	waitOrForce(poolDone, cancelPool)

	// Drain the submission queue with the submitter's shortened retry
	// budget (its shutdownSignal, fetchCtx, is already cancelled by this point).
	close(subQ)
	waitOrForce(subDone, cancelSub)

	s.bus.Publish(events.New(events.Info, "supervisor", "shutdown complete"))
	return nil
}

// waitOrForce waits for done to close, forcing cancellation after
// shutdownGrace if the component has not finished draining by then.
func waitOrForce(done <-chan struct{}, cancel context.CancelFunc) {
	select {
	case <-done:
	case <-time.After(shutdownGrace):
		cancel()
		<-done
	}
}

// onTerminal decrements the --max-tasks counter and triggers shutdown once
// it reaches zero.
func (s *Supervisor) onTerminal(taskID string, succeeded bool) {
	if !succeeded || s.remainingTasks < 0 {
		return
	}
	remaining := atomic.AddInt64(&s.remainingTasks, -1)
	if remaining <= 0 {
		s.cancelOnce.Do(func() {
			if s.cancel != nil {
				s.cancel()
			}
		})
	}
}

// Shutdown requests a graceful stop, equivalent to an interactive interrupt.
func (s *Supervisor) Shutdown() {
	s.cancelOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}

// shutdownGrace bounds how long an in-flight prover execution is given to
// complete or abort after cancellation, per the supervisor's shutdown
// contract.
const shutdownGrace = 30 * time.Second
