// Package fetcher implements the single logical task producer: it polls the
// orchestrator at the difficulty controller's current level, classifies
// failures, and pushes admitted tasks onto a bounded queue.
package fetcher

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"math/rand"
	"time"

	"github.com/example/proverclient/internal/difficulty"
	"github.com/example/proverclient/internal/events"
	"github.com/example/proverclient/internal/observability"
	"github.com/example/proverclient/internal/orchestrator"
	"github.com/example/proverclient/internal/pipeline"
	"github.com/example/proverclient/pkg/proverapi"
)

const (
	rateLimitBackoffStart = 2 * time.Second
	rateLimitBackoffCap   = 300 * time.Second
	transientBackoff      = 5 * time.Second
	permanentPause        = 1 * time.Second
)

// Fetcher drives the fetch half of the pipeline. It is single-threaded by
// construction: one goroutine runs Run.
type Fetcher struct {
	nodeID    string
	publicKey ed25519.PublicKey
	oc        *orchestrator.Client
	dc        *difficulty.Controller
	bus       *events.Bus
	queue     chan<- pipeline.Task

	rateLimitBackoff time.Duration
}

// New builds a Fetcher that pushes admitted tasks onto queue.
func New(nodeID string, publicKey ed25519.PublicKey, oc *orchestrator.Client, dc *difficulty.Controller, bus *events.Bus, queue chan<- pipeline.Task) *Fetcher {
	return &Fetcher{
		nodeID:           nodeID,
		publicKey:        publicKey,
		oc:               oc,
		dc:               dc,
		bus:              bus,
		queue:            queue,
		rateLimitBackoff: rateLimitBackoffStart,
	}
}

// Run loops until ctx is cancelled. It never pushes a partial task: a
// cancelled push simply returns without completing the admission.
func (f *Fetcher) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		f.fetchOnce(ctx)
	}
}

func (f *Fetcher) fetchOnce(ctx context.Context) {
	level := f.dc.Current()
	observability.Default.SetGauge("difficulty_level", map[string]string{"node_id": f.nodeID}, float64(level))

	resp, err := f.oc.GetProofTask(ctx, proverapi.GetProofTaskRequest{
		NodeID:           f.nodeID,
		NodeType:         proverapi.NodeTypeCLIProver,
		Ed25519PublicKey: f.publicKey,
		MaxDifficulty:    level.WireValue(),
	})
	if err != nil {
		f.handleError(ctx, err)
		return
	}

	f.rateLimitBackoff = rateLimitBackoffStart

	assigned := proverapi.Difficulty(resp.ServerAssignedDifficulty)
	task := pipeline.Task{
		TaskID:           resp.Task.TaskID,
		ProgramID:        resp.Task.ProgramID,
		PublicInputsList: resp.Task.PublicInputsList,
		TaskType:         resp.Task.TaskType,
		Difficulty:       assigned,
		CreatedAt:        resp.Task.CreatedAt,
	}

	f.bus.Publish(events.NewForTask(events.Info, "fetcher", fmt.Sprintf("Got task %s", task.TaskID), task.TaskID))
	if assigned < level {
		f.bus.Publish(events.NewForTask(events.Success, "fetcher",
			fmt.Sprintf("Server adjusted difficulty: requested %s, assigned %s (reputation gating)", level, assigned),
			task.TaskID))
	}

	select {
	case f.queue <- task:
	case <-ctx.Done():
		// Shutdown raced the push: the task is simply not admitted.
	}
}

func (f *Fetcher) handleError(ctx context.Context, err error) {
	oerr, ok := err.(*orchestrator.Error)
	if !ok {
		f.sleep(ctx, transientBackoff)
		return
	}

	switch oerr.Kind {
	case orchestrator.KindRateLimited:
		wait := oerr.RetryAfter
		if wait <= 0 {
			wait = jitter(f.rateLimitBackoff)
			f.rateLimitBackoff *= 2
			if f.rateLimitBackoff > rateLimitBackoffCap {
				f.rateLimitBackoff = rateLimitBackoffCap
			}
		}
		f.bus.Publish(events.New(events.Warn, "fetcher", fmt.Sprintf("rate limited, backing off %s", wait)))
		f.sleep(ctx, wait)
	case orchestrator.KindTransient:
		f.sleep(ctx, transientBackoff)
	case orchestrator.KindPermanent, orchestrator.KindMalformed:
		f.bus.Publish(events.New(events.Error, "fetcher", "get_proof_task failed: "+oerr.Error()))
		f.sleep(ctx, permanentPause)
	default:
		f.sleep(ctx, transientBackoff)
	}
}

func (f *Fetcher) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// jitter applies uniform +/-25% jitter around d.
func jitter(d time.Duration) time.Duration {
	spread := float64(d) * 0.25
	delta := (rand.Float64()*2 - 1) * spread
	return time.Duration(float64(d) + delta)
}
