package pool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/proverclient/internal/events"
	"github.com/example/proverclient/internal/pipeline"
	"github.com/example/proverclient/internal/prover"
	"github.com/example/proverclient/pkg/proverapi"
)

func TestPoolSucceedsWithStubEngine(t *testing.T) {
	bus := events.NewBus(16)
	taskQ := make(chan pipeline.Task, 1)
	subQ := make(chan pipeline.Submission, 1)

	p := New(1, prover.Stub{}, bus, taskQ, subQ, true)

	taskQ <- pipeline.Task{
		TaskID:           "T1",
		ProgramID:        "fib",
		PublicInputsList: [][]byte{{5, 1, 1}},
		TaskType:         proverapi.TaskKindProofRequired,
	}
	close(taskQ)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	p.Run(ctx)

	select {
	case sub := <-subQ:
		if sub.Outcome != pipeline.OutcomeSucceeded {
			t.Fatalf("outcome = %v, want Succeeded", sub.Outcome)
		}
		if len(sub.HashList) != 1 {
			t.Fatalf("expected one hash, got %d", len(sub.HashList))
		}
	default:
		t.Fatalf("expected a submission")
	}
}

func TestAwaitMemoryNoopWhenCheckMemoryDisabled(t *testing.T) {
	p := New(1, prover.Stub{}, events.NewBus(1), nil, nil, false)

	done := make(chan struct{})
	go func() {
		p.awaitMemory(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("awaitMemory should return immediately when checkMemory is disabled")
	}
}

// failingEngine always errors, exercising the isolation-on-failure path.
type failingEngine struct{}

func (failingEngine) Prove(ctx context.Context, programID string, publicInput []byte) ([]byte, error) {
	return nil, errors.New("prover panic")
}

func TestWorkerSurvivesProverFailureAndContinues(t *testing.T) {
	bus := events.NewBus(16)
	taskQ := make(chan pipeline.Task, 2)
	subQ := make(chan pipeline.Submission, 2)

	p := New(1, failingEngine{}, bus, taskQ, subQ, true)

	taskQ <- pipeline.Task{TaskID: "bad", ProgramID: "p", PublicInputsList: [][]byte{{1}}}
	taskQ <- pipeline.Task{TaskID: "next", ProgramID: "p", PublicInputsList: [][]byte{{2}}}
	close(taskQ)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	p.Run(ctx)

	sub := <-subQ
	if sub.Outcome != pipeline.OutcomeFailed {
		t.Fatalf("outcome = %v, want Failed", sub.Outcome)
	}
	if sub.FailReason == "" {
		t.Fatalf("expected a non-empty fail reason")
	}

	select {
	case next := <-subQ:
		if next.TaskID != "next" {
			t.Fatalf("second submission task id = %q, want next", next.TaskID)
		}
	default:
		t.Fatalf("worker did not go on to the next task after a prover failure")
	}
}
