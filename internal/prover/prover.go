// Package prover defines the boundary to the zero-knowledge virtual machine.
// The engine itself is out of scope here: it is invoked as an opaque,
// blocking, CPU-bound operation and its internals are never inspected.
package prover

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

// Engine executes one public input against a loaded program and returns the
// raw proof bytes. Implementations may block for seconds to minutes and
// should be driven from a dedicated goroutine, never from a cooperative
// loop directly.
type Engine interface {
	Prove(ctx context.Context, programID string, publicInput []byte) ([]byte, error)
}

// Stub is a deterministic placeholder engine: given the same program id and
// input it always returns the same proof bytes, without running any actual
// circuit. It exists so the rest of the pipeline (signing, submission,
// difficulty promotion) can be exercised without a real prover wired in.
type Stub struct{}

func (Stub) Prove(ctx context.Context, programID string, publicInput []byte) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	seed := programID + "|" + hex.EncodeToString(publicInput)
	sum := sha1.Sum([]byte(seed))
	return []byte(fmt.Sprintf("proof:%x", sum)), nil
}
