// Package pipeline defines the in-process Task and Submission records that
// flow between the fetcher, the worker pool, and the submitter.
package pipeline

import (
	"time"

	"github.com/example/proverclient/pkg/proverapi"
)

// Task is the immutable unit of work admitted from the orchestrator. Its
// fingerprint for dedup purposes is simply TaskID.
type Task struct {
	TaskID           string
	ProgramID        string
	PublicInputsList [][]byte
	TaskType         proverapi.TaskKind
	Difficulty       proverapi.Difficulty
	CreatedAt        string
}

// Outcome distinguishes a successfully proved task from one the prover
// failed to complete.
type Outcome int

const (
	OutcomeSucceeded Outcome = iota
	OutcomeFailed
)

// Submission is produced by a worker for exactly one Task and consumed by
// the submitter.
type Submission struct {
	TaskID     string
	TaskType   proverapi.TaskKind
	Outcome    Outcome
	FailReason string // set iff Outcome == OutcomeFailed

	ProofBytesList [][]byte
	HashList       []string // hex keccak256, one per proof, aligned with ProofBytesList

	// AssignedDifficulty carries the server's server_assigned_difficulty for
	// this Task through to the submitter, the DC's single writer, so it can
	// observe a downgrade-to-Small override once the task's outcome is known.
	AssignedDifficulty proverapi.Difficulty

	Telemetry proverapi.NodeTelemetry
	Duration  time.Duration
}
