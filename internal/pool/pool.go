// Package pool implements the fixed-size prover worker pool: each worker
// pulls tasks from a shared queue, executes every public input through the
// prover engine on a dedicated goroutine, and emits a Submission.
package pool

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/example/proverclient/internal/events"
	"github.com/example/proverclient/internal/identity"
	"github.com/example/proverclient/internal/observability"
	"github.com/example/proverclient/internal/pipeline"
	"github.com/example/proverclient/internal/prover"
	"github.com/example/proverclient/internal/resources"
)

const memoryGuardMaxWait = 30 * time.Second

// Pool runs Size identical workers against a shared task queue.
type Pool struct {
	Size        int
	engine      prover.Engine
	oracle      resources.Oracle
	bus         *events.Bus
	taskQ       <-chan pipeline.Task
	subQ        chan<- pipeline.Submission
	checkMemory bool
}

// New builds a pool of the given size. checkMemory gates the per-task
// memory guard (--check-memory); when false, workers never defer on low
// memory.
func New(size int, engine prover.Engine, bus *events.Bus, taskQ <-chan pipeline.Task, subQ chan<- pipeline.Submission, checkMemory bool) *Pool {
	return &Pool{Size: size, engine: engine, bus: bus, taskQ: taskQ, subQ: subQ, checkMemory: checkMemory}
}

// Run blocks until ctx is cancelled, running Size worker goroutines and
// waiting for all of them to drain and exit.
func (p *Pool) Run(ctx context.Context) {
	done := make(chan struct{}, p.Size)
	for i := 0; i < p.Size; i++ {
		go func(id int) {
			defer func() { done <- struct{}{} }()
			p.workerLoop(ctx, id)
		}(i)
	}
	for i := 0; i < p.Size; i++ {
		<-done
	}
}

func (p *Pool) workerLoop(ctx context.Context, workerID int) {
	for {
		var task pipeline.Task
		select {
		case t, ok := <-p.taskQ:
			if !ok {
				return
			}
			task = t
		case <-ctx.Done():
			return
		}

		p.awaitMemory(ctx)
		sub := p.execute(ctx, task)

		select {
		case p.subQ <- sub:
		case <-ctx.Done():
			// Shutdown during the final handoff: the in-flight result is
			// dropped rather than risking a blocked send past cancellation.
			return
		}
	}
}

// awaitMemory blocks (with cancellation) while the host is under the
// per-worker memory floor, sleeping memoryGuardMaxWait between checks; there
// is no limit on the number of checks. A no-op when checkMemory is false.
func (p *Pool) awaitMemory(ctx context.Context) {
	if !p.checkMemory {
		return
	}
	for {
		if p.oracle.AvailableMemoryBytes() >= resources.PerWorkerMemory {
			return
		}
		p.bus.Publish(events.New(events.Warn, "pool", "deferring work: available memory below per-worker floor"))
		select {
		case <-ctx.Done():
			return
		case <-time.After(memoryGuardMaxWait):
		}
	}
}

func (p *Pool) execute(ctx context.Context, task pipeline.Task) pipeline.Submission {
	ctx, span := observability.StartSpan(ctx, "pool.execute",
		attribute.String("task.id", task.TaskID),
		attribute.String("task.program_id", task.ProgramID),
		attribute.Int("task.input_count", len(task.PublicInputsList)),
	)
	defer span.End()

	p.bus.Publish(events.NewForTask(events.Info, "pool", "Step 1 of 4: Got task", task.TaskID))

	start := time.Now()
	proofs := make([][]byte, 0, len(task.PublicInputsList))
	hashes := make([]string, 0, len(task.PublicInputsList))

	for _, input := range task.PublicInputsList {
		proofBytes, err := p.runOnDedicatedThread(ctx, task.ProgramID, input)
		if err != nil {
			return pipeline.Submission{
				TaskID:             task.TaskID,
				TaskType:           task.TaskType,
				Outcome:            pipeline.OutcomeFailed,
				FailReason:         err.Error(),
				AssignedDifficulty: task.Difficulty,
				Duration:           time.Since(start),
			}
		}
		proofs = append(proofs, proofBytes)
		hashes = append(hashes, hex.EncodeToString(hashSlice(proofBytes)))
	}

	duration := time.Since(start)
	p.bus.Publish(events.NewForTask(events.StateChange, "pool",
		fmt.Sprintf("completed, Task size: %d, Duration: %s, Difficulty: %s", len(task.PublicInputsList), duration, task.Difficulty),
		task.TaskID))

	return pipeline.Submission{
		TaskID:             task.TaskID,
		TaskType:           task.TaskType,
		Outcome:            pipeline.OutcomeSucceeded,
		ProofBytesList:     proofs,
		HashList:           hashes,
		AssignedDifficulty: task.Difficulty,
		Duration:           duration,
	}
}

// runOnDedicatedThread bridges the opaque, CPU-bound prover call to the
// cooperative caller: the engine runs on its own goroutine and the caller
// only awaits its completion or ctx cancellation.
func (p *Pool) runOnDedicatedThread(ctx context.Context, programID string, input []byte) ([]byte, error) {
	type result struct {
		proof []byte
		err   error
	}
	resultCh := make(chan result, 1)
	go func() {
		proof, err := p.engine.Prove(ctx, programID, input)
		resultCh <- result{proof: proof, err: err}
	}()

	select {
	case r := <-resultCh:
		return r.proof, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func hashSlice(b []byte) []byte {
	sum := identity.Keccak256(b)
	return sum[:]
}
