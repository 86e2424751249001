// Package proverapi defines the wire types exchanged with the orchestrator.
//
// Requests and responses are JSON documents sent over HTTPS; each body is
// framed by the standard HTTP Content-Length header, so no additional
// length-prefixing is layered on top of it.
package proverapi

// Difficulty mirrors the orchestrator's wire-level difficulty enumeration.
// Only Small, Medium and Large have server-side meaning; everything above
// Large is a local-only client upgrade and is clamped to DifficultyLarge's
// value (10) by WireValue before it is sent.
type Difficulty int32

const (
	DifficultySmall       Difficulty = 0
	DifficultySmallMedium Difficulty = 1
	DifficultyMedium      Difficulty = 5
	DifficultyLarge       Difficulty = 10
	DifficultyExtraLarge  Difficulty = 11
	DifficultyExtraLarge2 Difficulty = 12
	DifficultyExtraLarge3 Difficulty = 13
	DifficultyExtraLarge4 Difficulty = 14
	DifficultyExtraLarge5 Difficulty = 15
)

// WireValue returns the enum value the orchestrator understands. Levels the
// server has no concept of are capped to the highest one it does.
func (d Difficulty) WireValue() int32 {
	if d > DifficultyLarge {
		return int32(DifficultyLarge)
	}
	return int32(d)
}

func (d Difficulty) String() string {
	switch d {
	case DifficultySmall:
		return "Small"
	case DifficultySmallMedium:
		return "SmallMedium"
	case DifficultyMedium:
		return "Medium"
	case DifficultyLarge:
		return "Large"
	case DifficultyExtraLarge:
		return "ExtraLarge"
	case DifficultyExtraLarge2:
		return "ExtraLarge2"
	case DifficultyExtraLarge3:
		return "ExtraLarge3"
	case DifficultyExtraLarge4:
		return "ExtraLarge4"
	case DifficultyExtraLarge5:
		return "ExtraLarge5"
	default:
		return "Unknown"
	}
}

// TaskKind distinguishes tasks whose wire payload carries full proof bytes
// from tasks that only ever need to surface a hash.
type TaskKind string

const (
	TaskKindProofRequired TaskKind = "PROOF_REQUIRED"
	TaskKindHashOnly      TaskKind = "HASH_ONLY"
)

const NodeTypeCLIProver = "CLI_PROVER"

// GetProofTaskRequest asks the orchestrator for a unit of work.
type GetProofTaskRequest struct {
	NodeID          string `json:"node_id"`
	NodeType        string `json:"node_type"`
	Ed25519PublicKey []byte `json:"ed25519_public_key"`
	MaxDifficulty   int32  `json:"max_difficulty"`
}

// GetProofTaskResponse carries the assigned task. ServerAssignedDifficulty
// may be lower than the requested MaxDifficulty (reputation gating).
type GetProofTaskResponse struct {
	Task                    WireTask `json:"task"`
	ServerAssignedDifficulty int32   `json:"server_assigned_difficulty"`
}

// WireTask is the task envelope as it arrives from the orchestrator.
type WireTask struct {
	TaskID           string   `json:"task_id"`
	ProgramID        string   `json:"program_id"`
	PublicInputsList [][]byte `json:"public_inputs_list"`
	TaskType         TaskKind `json:"task_type"`
	CreatedAt        string   `json:"created_at"`
}

// NodeTelemetry is best-effort; every field may be zero/absent.
type NodeTelemetry struct {
	FlopsPerSec    *int32  `json:"flops_per_sec,omitempty"`
	MemoryUsed     *int32  `json:"memory_used,omitempty"`
	MemoryCapacity *int32  `json:"memory_capacity,omitempty"`
	Location       *string `json:"location,omitempty"`
}

// SubmitProofRequest delivers one proof (or, for hash-only tasks, just its
// hash) back to the orchestrator along with an anti-replay signature.
type SubmitProofRequest struct {
	NodeType         string        `json:"node_type"`
	TaskID           string        `json:"task_id"`
	ProofHash        string        `json:"proof_hash"`
	Proof            []byte        `json:"proof"`
	NodeTelemetry    NodeTelemetry `json:"node_telemetry"`
	Ed25519PublicKey []byte        `json:"ed25519_public_key"`
	Signature        []byte        `json:"signature"`
}

type SubmitProofResponse struct {
	Accepted bool `json:"accepted"`
}

type RegisterUserRequest struct {
	UUID          string `json:"uuid"`
	WalletAddress string `json:"wallet_address"`
}

type RegisterNodeRequest struct {
	UserID   string `json:"user_id"`
	NodeType string `json:"node_type"`
}

type RegisterNodeResponse struct {
	NodeID string `json:"node_id"`
}

type GetNodeResponse struct {
	WalletAddress string `json:"wallet_address"`
}
