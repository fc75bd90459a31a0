package miner

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/screa/nonce-miner/internal/config"
	"github.com/screa/nonce-miner/internal/logger"
	"github.com/screa/nonce-miner/pkg/types"
	"github.com/screa/nonce-miner/pkg/worker"
)

// Race runs the configured number of workers against each other.
func (m *Miner) Race(ctx context.Context) (*types.Result, error) {
	return m.race(ctx, m.config.Workers)
}

// RaceFor races workers against the default template with default settings.
func RaceFor(ctx context.Context, targetPrefix string, workers int) (*types.Result, error) {
	cfg := config.NewConfig()
	cfg.Target = targetPrefix
	cfg.Workers = workers
	m, err := NewMiner(cfg, nil)
	if err != nil {
		return nil, err
	}
	return m.Race(ctx)
}

// Compare runs one race per configured worker count, in order.
func (m *Miner) Compare(ctx context.Context) ([]*types.Result, error) {
	if err := m.config.ValidateCompare(); err != nil {
		return nil, err
	}
	results := make([]*types.Result, 0, len(m.config.CompareCounts))
	for _, n := range m.config.CompareCounts {
		res, err := m.race(ctx, n)
		if err != nil {
			return nil, fmt.Errorf("race with %d workers: %w", n, err)
		}
		results = append(results, res)
	}
	return results, nil
}

// race partitions the nonce space into residue classes mod workers: worker
// i tests i, i+workers, i+2*workers, ... All workers share one timestamp,
// fixed at race start and never rolled forward. The first solution the
// coordinator receives wins; every worker is joined before returning.
func (m *Miner) race(ctx context.Context, workers int) (*types.Result, error) {
	if workers < 1 {
		return nil, fmt.Errorf("%w: got %d", types.ErrInvalidWorkerCount, workers)
	}

	ctx, cancel := m.context(ctx)
	defer cancel()

	raceID := uuid.NewString()
	log := m.logger.WithFields(logger.Fields{"race": raceID, "workers": workers})
	timestamp := m.config.StartTimestamp()
	atomic.StoreInt64(&m.attempts, 0)

	// Build every worker before starting any, so setup errors leave nothing running.
	pool := make([]*worker.Worker, workers)
	for i := range pool {
		w, err := worker.NewWorker(&types.WorkerConfig{
			ID:            i,
			Start:         uint64(i),
			Stride:        uint64(workers),
			Limit:         m.config.MaxNonce,
			Timestamp:     timestamp,
			Header:        m.base,
			TargetNibbles: m.target.Nibbles(),
			NewHasher:     m.newHasher,
		}, &m.attempts)
		if err != nil {
			return nil, err
		}
		pool[i] = w
	}

	log.Infof("Racing %d workers for a hash with %s", workers, m.config.GetTargetDescription())

	var stop atomic.Bool
	results := make(chan types.Solution, 1)
	g, gctx := errgroup.WithContext(ctx)
	stopOnDone(gctx, &stop)

	start := time.Now()
	stopProgress := m.startProgress(log, start)
	defer stopProgress()

	for i, w := range pool {
		i, w := i, w
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%w: worker %d panicked: %v", types.ErrWorkerFailure, i, r)
				}
			}()
			outcome := w.Run(&stop, results)
			log.WithFields(logger.Fields{"worker": i, "attempts": w.Attempts()}).Debugf("Worker %s", outcome)
			return nil
		})
	}

	joined := make(chan error, 1)
	go func() { joined <- g.Wait() }()

	out := m.await(ctx, results, joined, start)
	raceErr := out.err

	// Stop everyone, the finder included, and wait for them.
	stop.Store(true)
	cancel()
	if !out.joined {
		select {
		case err := <-joined:
			if err != nil && raceErr == nil {
				raceErr = err
			}
		case <-time.After(m.config.JoinTimeout):
			if raceErr == nil {
				raceErr = fmt.Errorf("%w: workers did not stop within %v", types.ErrWorkerFailure, m.config.JoinTimeout)
			}
		}
	}

	if raceErr != nil {
		log.WithError(raceErr).Warn("Race failed")
		return nil, raceErr
	}

	return &types.Result{
		Solution:      out.sol,
		RaceID:        raceID,
		Workers:       workers,
		TotalAttempts: atomic.LoadInt64(&m.attempts),
		Duration:      out.elapsed,
	}, nil
}

// awaited is how the coordinator's wait ended
type awaited struct {
	sol     types.Solution
	elapsed time.Duration
	err     error
	joined  bool // the worker group has already been waited on
}

// await blocks until a solution arrives, all workers return, ctx ends, or
// attempts stop advancing for a whole heartbeat interval.
func (m *Miner) await(ctx context.Context, results <-chan types.Solution, joined <-chan error, start time.Time) awaited {
	heartbeat := time.NewTicker(m.config.HeartbeatTimeout)
	defer heartbeat.Stop()
	last := int64(-1)

	for {
		select {
		case sol := <-results:
			return awaited{sol: sol, elapsed: time.Since(start)}

		case err := <-joined:
			// A finder sends before returning, so check the slot first.
			select {
			case sol := <-results:
				if err == nil {
					return awaited{sol: sol, elapsed: time.Since(start), joined: true}
				}
			default:
			}
			switch {
			case err != nil:
				return awaited{err: err, joined: true}
			case ctx.Err() != nil:
				return awaited{err: raceCancelled(ctx), joined: true}
			default:
				return awaited{err: types.ErrNonceSpaceExhausted, joined: true}
			}

		case <-ctx.Done():
			return awaited{err: raceCancelled(ctx)}

		case <-heartbeat.C:
			n := atomic.LoadInt64(&m.attempts)
			if n == last {
				return awaited{err: fmt.Errorf("%w: no progress at %d attempts for %v",
					types.ErrWorkerFailure, n, m.config.HeartbeatTimeout)}
			}
			last = n
		}
	}
}

func raceCancelled(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("race timed out: %w", ctx.Err())
	}
	return fmt.Errorf("race cancelled: %w", ctx.Err())
}
