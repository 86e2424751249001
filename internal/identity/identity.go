// Package identity holds the process-wide signing key pair.
//
// The key is generated once at supervisor startup and never persisted; it
// ties every submission made by this process to a single, ephemeral
// identity for the lifetime of the run.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// SigningIdentity is immutable after construction and safe for concurrent
// read-only use; only Sign is called, and ed25519 signing has no shared
// mutable state.
type SigningIdentity struct {
	public  ed25519.PublicKey
	private ed25519.PrivateKey
}

// New generates a fresh Ed25519 key pair.
func New() (*SigningIdentity, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}
	return &SigningIdentity{public: pub, private: priv}, nil
}

// PublicKey returns the 32-byte Ed25519 verifying key.
func (s *SigningIdentity) PublicKey() ed25519.PublicKey {
	return s.public
}

// Sign produces a 64-byte detached signature over UTF-8(task_id) followed by
// the raw (not hex) Keccak-256 digest of the first proof.
func (s *SigningIdentity) Sign(taskID string, firstProofHash [32]byte) []byte {
	msg := make([]byte, 0, len(taskID)+len(firstProofHash))
	msg = append(msg, []byte(taskID)...)
	msg = append(msg, firstProofHash[:]...)
	return ed25519.Sign(s.private, msg)
}

// Verify checks a detached signature against the same message layout Sign
// uses. It exists for tests exercising the round-trip signing invariant.
func Verify(pub ed25519.PublicKey, taskID string, firstProofHash [32]byte, sig []byte) bool {
	msg := make([]byte, 0, len(taskID)+len(firstProofHash))
	msg = append(msg, []byte(taskID)...)
	msg = append(msg, firstProofHash[:]...)
	return ed25519.Verify(pub, msg, sig)
}

// Keccak256 hashes proof bytes using the legacy (non-NIST-padded) Keccak
// permutation, matching the hash the orchestrator expects.
func Keccak256(data []byte) [32]byte {
	var out [32]byte
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	h.Sum(out[:0])
	return out
}

// Keccak256Hex is the hex-encoded form submitted as proof_hash.
func Keccak256Hex(data []byte) string {
	sum := Keccak256(data)
	return fmt.Sprintf("%x", sum)
}
