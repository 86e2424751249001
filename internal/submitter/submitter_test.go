package submitter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/example/proverclient/internal/difficulty"
	"github.com/example/proverclient/internal/events"
	"github.com/example/proverclient/internal/identity"
	"github.com/example/proverclient/internal/orchestrator"
	"github.com/example/proverclient/internal/pipeline"
	"github.com/example/proverclient/pkg/proverapi"
)

func TestSuccessfulSubmissionNotifiesTerminalAndDC(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"accepted":true}`))
	}))
	defer srv.Close()

	id, _ := identity.New()
	oc := orchestrator.New(srv.URL, 2*time.Second)
	dc := difficulty.New(nil)
	bus := events.NewBus(8)
	subQ := make(chan pipeline.Submission, 1)

	var mu sync.Mutex
	var gotID string
	var gotSucceeded bool
	onTerm := func(taskID string, succeeded bool) {
		mu.Lock()
		defer mu.Unlock()
		gotID, gotSucceeded = taskID, succeeded
	}

	s := New("node-1", id, oc, dc, bus, subQ, 3, onTerm, context.Background())

	subQ <- pipeline.Submission{
		TaskID:         "T1",
		TaskType:       proverapi.TaskKindProofRequired,
		Outcome:        pipeline.OutcomeSucceeded,
		ProofBytesList: [][]byte{{0xAA}},
		HashList:       []string{identity.Keccak256Hex([]byte{0xAA})},
		Duration:       time.Minute,
	}
	close(subQ)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Run(ctx)

	mu.Lock()
	defer mu.Unlock()
	if gotID != "T1" || !gotSucceeded {
		t.Fatalf("onTerm called with (%q, %v), want (T1, true)", gotID, gotSucceeded)
	}
	if dc.Current() != difficulty.SmallMedium {
		t.Fatalf("DC level = %v, want promotion to SmallMedium", dc.Current())
	}
}

func TestDuplicateTaskIDNotResubmitted(t *testing.T) {
	var calls int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"accepted":true}`))
	}))
	defer srv.Close()

	id, _ := identity.New()
	oc := orchestrator.New(srv.URL, 2*time.Second)
	dc := difficulty.New(nil)
	bus := events.NewBus(8)
	subQ := make(chan pipeline.Submission, 2)

	s := New("node-1", id, oc, dc, bus, subQ, 3, nil, context.Background())

	sub := pipeline.Submission{
		TaskID:         "T1",
		TaskType:       proverapi.TaskKindProofRequired,
		Outcome:        pipeline.OutcomeSucceeded,
		ProofBytesList: [][]byte{{0xAA}},
		HashList:       []string{identity.Keccak256Hex([]byte{0xAA})},
	}
	subQ <- sub
	subQ <- sub
	close(subQ)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Run(ctx)

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Fatalf("orchestrator called %d times, want exactly 1 (anti-replay dedup)", calls)
	}
}

// TestServerOverrideToSmallProbesAfterSuccess exercises scenario S3: a
// requested-Medium fetch that the server downgrades to Small still promotes
// the DC to SmallMedium once the downgraded task succeeds.
func TestServerOverrideToSmallProbesAfterSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"accepted":true}`))
	}))
	defer srv.Close()

	id, _ := identity.New()
	oc := orchestrator.New(srv.URL, 2*time.Second)
	dc := difficulty.New(nil)
	for i := 0; i < 2; i++ {
		dc.ObserveSuccess(time.Minute) // Small -> SmallMedium -> Medium
	}
	if dc.Current() != difficulty.Medium {
		t.Fatalf("setup: DC = %v, want Medium", dc.Current())
	}

	bus := events.NewBus(8)
	subQ := make(chan pipeline.Submission, 1)
	s := New("node-1", id, oc, dc, bus, subQ, 3, nil, context.Background())

	subQ <- pipeline.Submission{
		TaskID:             "T3",
		TaskType:           proverapi.TaskKindProofRequired,
		Outcome:            pipeline.OutcomeSucceeded,
		ProofBytesList:     [][]byte{{0xCC}},
		HashList:           []string{identity.Keccak256Hex([]byte{0xCC})},
		AssignedDifficulty: difficulty.Small,
		Duration:           time.Minute,
	}
	close(subQ)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Run(ctx)

	if dc.Current() != difficulty.SmallMedium {
		t.Fatalf("DC = %v, want SmallMedium after server-override probe", dc.Current())
	}
}

func TestHashOnlyTaskOmitsProofBytes(t *testing.T) {
	var gotProofLen int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req proverapi.SubmitProofRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotProofLen = len(req.Proof)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"accepted":true}`))
	}))
	defer srv.Close()

	id, _ := identity.New()
	oc := orchestrator.New(srv.URL, 2*time.Second)
	dc := difficulty.New(nil)
	bus := events.NewBus(8)
	subQ := make(chan pipeline.Submission, 1)

	s := New("node-1", id, oc, dc, bus, subQ, 3, nil, context.Background())

	subQ <- pipeline.Submission{
		TaskID:         "T2",
		TaskType:       proverapi.TaskKindHashOnly,
		Outcome:        pipeline.OutcomeSucceeded,
		ProofBytesList: [][]byte{{0xBB}},
		HashList:       []string{identity.Keccak256Hex([]byte{0xBB})},
	}
	close(subQ)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Run(ctx)

	if gotProofLen != 0 {
		t.Fatalf("hash-only task sent %d proof bytes, want 0", gotProofLen)
	}
}
