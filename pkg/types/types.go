package types

import (
	"errors"
	"time"

	"github.com/screa/nonce-miner/internal/crypto"
)

// Errors
var (
	ErrInvalidTarget       = errors.New("invalid target prefix")
	ErrInvalidWorkerCount  = errors.New("worker count must be at least 1")
	ErrInvalidMaxNonce     = errors.New("max nonce must be in [1, 2^32]")
	ErrInvalidTemplate     = errors.New("invalid header template")
	ErrNonceOverflow       = errors.New("nonce or timestamp exceeds 32 bits")
	ErrNonceSpaceExhausted = errors.New("nonce space exhausted without a solution")
	ErrWorkerFailure       = errors.New("worker failure")
	ErrInvalidSolution     = errors.New("solution does not verify")
)

// MaxNonce is the size of the 32-bit nonce space.
const MaxNonce uint64 = 1 << 32

// Solution is the terminal artifact of a search
type Solution struct {
	Nonce     uint32
	Timestamp uint32
	Hash      string // lowercase hex digest
	Attempts  int64  // attempts made by the worker that found it
	WorkerID  int
}

// Result represents a finished search
type Result struct {
	Solution
	RaceID        string
	Workers       int
	TotalAttempts int64
	Duration      time.Duration
}

// Rate returns hashes per second over the whole search.
func (r *Result) Rate() float64 {
	if r.Duration.Seconds() <= 0 {
		return 0
	}
	return float64(r.TotalAttempts) / r.Duration.Seconds()
}

// WorkerConfig contains configuration for individual workers
type WorkerConfig struct {
	ID        int
	Start     uint64 // first nonce tested
	Stride    uint64 // distance between consecutive nonces
	Limit     uint64 // exclusive upper bound on nonces
	Timestamp uint32

	// Serialized base header; the worker rewrites timestamp and nonce.
	Header []byte

	// Target nibbles; the hot path compares them against the raw digest.
	TargetNibbles []byte

	NewHasher func() *crypto.DoubleHasher
}
