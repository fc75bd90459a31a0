package worker

import (
	"fmt"
	"sync/atomic"

	"github.com/screa/nonce-miner/internal/crypto"
	"github.com/screa/nonce-miner/pkg/header"
	"github.com/screa/nonce-miner/pkg/target"
	"github.com/screa/nonce-miner/pkg/types"
)

// Outcome is the terminal state of a worker run
type Outcome int

const (
	Running Outcome = iota
	Found
	Cancelled
	Exhausted
)

func (o Outcome) String() string {
	switch o {
	case Running:
		return "running"
	case Found:
		return "found"
	case Cancelled:
		return "cancelled"
	case Exhausted:
		return "exhausted"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// publishEvery is how many attempts are batched before updating the shared counter
const publishEvery = 1024

// Worker searches one residue class of the nonce space
type Worker struct {
	config   *types.WorkerConfig
	builder  *header.Builder
	hasher   *crypto.DoubleHasher
	attempts *int64 // shared across workers, batched

	// SearchState, owned by this worker
	nonce     uint64
	local     int64
	published int64
	last      [crypto.DigestLen]byte
}

// NewWorker creates a new worker instance
func NewWorker(config *types.WorkerConfig, attempts *int64) (*Worker, error) {
	if config.Stride == 0 {
		return nil, fmt.Errorf("%w: stride must be positive", types.ErrInvalidWorkerCount)
	}
	if config.Limit > types.MaxNonce {
		return nil, fmt.Errorf("%w: limit %d", types.ErrNonceOverflow, config.Limit)
	}
	builder, err := header.FromBytes(config.Header)
	if err != nil {
		return nil, err
	}
	builder.SetTimestamp(config.Timestamp)

	newHasher := config.NewHasher
	if newHasher == nil {
		newHasher, _ = crypto.HasherFactory(crypto.SHA256d)
	}
	if attempts == nil {
		attempts = new(int64)
	}

	return &Worker{
		config:   config,
		builder:  builder,
		hasher:   newHasher(),
		attempts: attempts,
		nonce:    config.Start,
	}, nil
}

// Step hashes the current nonce and advances by the stride.
// ok is false when the residue class was already exhausted and nothing was tested.
func (w *Worker) Step() (nonce uint32, matched bool, ok bool) {
	if w.nonce >= w.config.Limit {
		return 0, false, false
	}
	nonce = uint32(w.nonce)
	w.last = w.hasher.Digest(w.builder.WithNonce(nonce))
	w.local++
	w.nonce += w.config.Stride

	if w.local-w.published >= publishEvery {
		w.flush()
	}
	return nonce, target.MatchNibbles(w.config.TargetNibbles, w.last), true
}

func (w *Worker) flush() {
	atomic.AddInt64(w.attempts, w.local-w.published)
	w.published = w.local
}

// Attempts returns the hashes computed by this worker
func (w *Worker) Attempts() int64 {
	return w.local
}

// Solution builds the result for the nonce most recently tested
func (w *Worker) Solution(nonce uint32) types.Solution {
	return types.Solution{
		Nonce:     nonce,
		Timestamp: w.config.Timestamp,
		Hash:      crypto.DigestHex(w.last),
		Attempts:  w.local,
		WorkerID:  w.config.ID,
	}
}

// Run loops until a match, cancellation or exhaustion of the residue class.
// stop is polled every iteration. On a match the solution is offered to
// results without blocking and stop is set so siblings exit.
func (w *Worker) Run(stop *atomic.Bool, results chan<- types.Solution) Outcome {
	defer w.flush()

	for {
		if stop.Load() {
			return Cancelled
		}
		nonce, matched, ok := w.Step()
		if !ok {
			return Exhausted
		}
		if matched {
			select {
			case results <- w.Solution(nonce):
			default:
				// slot already taken by a sibling; any valid hash is equivalent
			}
			stop.Store(true)
			return Found
		}
	}
}
