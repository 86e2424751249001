// Package submitter implements the single logical consumer of Submission
// records: it signs, sends to the orchestrator, classifies the response,
// and feeds terminal outcomes back into the difficulty controller.
package submitter

import (
	"context"
	"encoding/hex"
	"sync"
	"time"

	"github.com/example/proverclient/internal/difficulty"
	"github.com/example/proverclient/internal/events"
	"github.com/example/proverclient/internal/identity"
	"github.com/example/proverclient/internal/observability"
	"github.com/example/proverclient/internal/orchestrator"
	"github.com/example/proverclient/internal/pipeline"
	"github.com/example/proverclient/pkg/proverapi"
)

const (
	defaultRetries        = 5
	transientRetryBackoff = 3 * time.Second
	rateLimitedBackoff    = 10 * time.Second
)

// OnTerminal is invoked once per Task with its terminal outcome, used by the
// supervisor to decrement a --max-tasks counter.
type OnTerminal func(taskID string, succeeded bool)

// Submitter drains the submission queue in a single goroutine.
type Submitter struct {
	nodeID   string
	identity *identity.SigningIdentity
	oc       *orchestrator.Client
	dc       *difficulty.Controller
	bus      *events.Bus
	subQ     <-chan pipeline.Submission
	retries  int
	onTerm   OnTerminal

	// shutdownSignal, when already cancelled, shortens the retry budget to
	// a single attempt even while Run's own context is still draining the
	// queue. It is distinct from Run's ctx so the drain phase can outlive
	// the overall shutdown signal by a bounded grace window.
	shutdownSignal context.Context

	mu        sync.Mutex
	submitted map[string]bool // anti-replay: task ids already credited
}

// New builds a Submitter. retries <= 0 uses the default of 5. shutdownSignal
// is the overall process shutdown context; it may be the same value passed
// to Run, or an earlier-firing one when the caller wants a bounded drain
// phase after shutdown is requested.
func New(nodeID string, id *identity.SigningIdentity, oc *orchestrator.Client, dc *difficulty.Controller, bus *events.Bus, subQ <-chan pipeline.Submission, retries int, onTerm OnTerminal, shutdownSignal context.Context) *Submitter {
	if retries <= 0 {
		retries = defaultRetries
	}
	if shutdownSignal == nil {
		shutdownSignal = context.Background()
	}
	return &Submitter{
		nodeID:         nodeID,
		identity:       id,
		oc:             oc,
		dc:             dc,
		shutdownSignal: shutdownSignal,
		bus:            bus,
		subQ:           subQ,
		retries:        retries,
		onTerm:         onTerm,
		submitted:      make(map[string]bool),
	}
}

// Run drains the submission queue until it is closed or ctx is cancelled,
// using a shortened retry budget (1 attempt) once shutdownSignal has fired
// so that shutdown drains promptly.
func (s *Submitter) Run(ctx context.Context) {
	for {
		var sub pipeline.Submission
		select {
		case v, ok := <-s.subQ:
			if !ok {
				return
			}
			sub = v
		case <-ctx.Done():
			return
		}
		s.process(ctx, sub)
	}
}

func (s *Submitter) process(ctx context.Context, sub pipeline.Submission) {
	if sub.Outcome == pipeline.OutcomeFailed {
		s.bus.Publish(events.NewForTask(events.Error, "submitter", "prover failed: "+sub.FailReason, sub.TaskID))
		s.dc.ObserveFailure()
		s.notifyTerminal(sub.TaskID, false)
		return
	}

	if s.alreadySubmitted(sub.TaskID) {
		return
	}

	req := s.buildRequest(sub)

	retries := s.retries
	if s.shutdownSignal.Err() != nil {
		retries = 1 // shutdown in progress: shortened retry budget
	}

	backoff := transientRetryBackoff
	attempt := 0
	for {
		resp, err := s.oc.SubmitProof(ctx, req)
		if err == nil && resp.Accepted {
			s.markSubmitted(sub.TaskID)
			s.bus.Publish(events.NewForTask(events.Success, "submitter", "Step 4 of 4: Proof submitted successfully", sub.TaskID))
			s.dc.ObserveSuccess(sub.Duration)
			s.dc.ObserveServerOverride(sub.AssignedDifficulty)
			s.notifyTerminal(sub.TaskID, true)
			return
		}

		oerr, ok := err.(*orchestrator.Error)
		if !ok {
			if err == nil {
				oerr = &orchestrator.Error{Kind: orchestrator.KindPermanent, Message: "orchestrator rejected proof"}
			} else {
				oerr = &orchestrator.Error{Kind: orchestrator.KindTransient, Message: err.Error()}
			}
		}

		switch oerr.Kind {
		case orchestrator.KindRateLimited:
			wait := oerr.RetryAfter
			if wait <= 0 {
				wait = rateLimitedBackoff
			}
			s.bus.Publish(events.NewForTask(events.Warn, "submitter", "rate limited, re-queueing with backoff", sub.TaskID))
			if !s.sleep(ctx, wait) {
				s.bus.Publish(events.NewForTask(events.Error, "submitter", "submit_proof abandoned during shutdown: still rate limited", sub.TaskID))
				s.dc.ObserveFailure()
				s.notifyTerminal(sub.TaskID, false)
				return
			}
			continue // rate limiting never consumes the transient retry budget or notifies DC
		case orchestrator.KindPermanent, orchestrator.KindMalformed:
			s.bus.Publish(events.NewForTask(events.Error, "submitter", "submit_proof permanently failed: "+oerr.Error(), sub.TaskID))
			s.dc.ObserveFailure()
			s.notifyTerminal(sub.TaskID, false)
			return
		default: // Transient
			if attempt == retries-1 {
				s.bus.Publish(events.NewForTask(events.Error, "submitter", "submit_proof exhausted retries: "+oerr.Error(), sub.TaskID))
				s.dc.ObserveFailure()
				s.notifyTerminal(sub.TaskID, false)
				return
			}
			attempt++
			if !s.sleep(ctx, backoff) {
				s.bus.Publish(events.NewForTask(events.Error, "submitter", "submit_proof abandoned during shutdown", sub.TaskID))
				s.dc.ObserveFailure()
				s.notifyTerminal(sub.TaskID, false)
				return
			}
			backoff *= 2
		}
	}
}

func (s *Submitter) buildRequest(sub pipeline.Submission) proverapi.SubmitProofRequest {
	firstHash := sub.HashList[0]
	var hashBytes [32]byte
	if decoded, err := hex.DecodeString(firstHash); err == nil {
		copy(hashBytes[:], decoded)
	}
	sig := s.identity.Sign(sub.TaskID, hashBytes)

	proofBytes := sub.ProofBytesList[0]
	if sub.TaskType == proverapi.TaskKindHashOnly {
		proofBytes = nil
	}

	return proverapi.SubmitProofRequest{
		NodeType:         proverapi.NodeTypeCLIProver,
		TaskID:           sub.TaskID,
		ProofHash:        firstHash,
		Proof:            proofBytes,
		Ed25519PublicKey: s.identity.PublicKey(),
		Signature:        sig,
	}
}

func (s *Submitter) alreadySubmitted(taskID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitted[taskID]
}

func (s *Submitter) markSubmitted(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitted[taskID] = true
}

func (s *Submitter) notifyTerminal(taskID string, succeeded bool) {
	outcome := "failed"
	if succeeded {
		outcome = "succeeded"
	}
	observability.Default.IncCounter("tasks_submitted_total", map[string]string{"outcome": outcome}, 1)
	if s.onTerm != nil {
		s.onTerm(taskID, succeeded)
	}
}

// sleep waits for d or ctx cancellation, whichever comes first. It reports
// false if it was cut short by ctx so the caller can abandon the retry loop
// instead of spinning against a context that will never let it succeed.
func (s *Submitter) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
