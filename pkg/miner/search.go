package miner

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/screa/nonce-miner/internal/crypto"
	"github.com/screa/nonce-miner/internal/logger"
	"github.com/screa/nonce-miner/pkg/header"
	"github.com/screa/nonce-miner/pkg/types"
)

// Search enumerates nonces [0, MaxNonce) sequentially. When the range is
// exhausted the timestamp moves forward by one second and the nonces are
// scanned again; this retry never gives up on its own. It ends on a match,
// when ctx is done or Stop is called, or with ErrNonceOverflow once the
// timestamp would pass 2^32-1.
func (m *Miner) Search(ctx context.Context) (*types.Result, error) {
	ctx, cancel := m.context(ctx)
	defer cancel()

	var stop atomic.Bool
	stopOnDone(ctx, &stop)

	start := time.Now()
	timestamp := m.config.StartTimestamp()
	log := m.logger.WithFields(logger.Fields{"mode": "search"})
	log.Infof("Searching for a hash with %s", m.config.GetTargetDescription())
	log.Debugf("Header template: version=%s prev=%s... merkle=%s... bits=%s",
		m.config.Template.Version, m.config.Template.PrevHash[:20],
		m.config.Template.MerkleRoot[:20], m.config.Template.Bits)

	atomic.StoreInt64(&m.attempts, 0)
	stopProgress := m.startProgress(log, start)
	defer stopProgress()

	builder, err := header.FromBytes(m.base)
	if err != nil {
		return nil, err
	}
	hasher := m.newHasher()
	var attempts int64

	for {
		builder.SetTimestamp(timestamp)
		for nonce := uint64(0); nonce < m.config.MaxNonce; nonce++ {
			if stop.Load() {
				atomic.StoreInt64(&m.attempts, attempts)
				return nil, fmt.Errorf("search stopped after %d attempts: %w", attempts, ctx.Err())
			}

			digest := hasher.Digest(builder.WithNonce(uint32(nonce)))
			attempts++

			if m.target.Matches(digest) {
				atomic.StoreInt64(&m.attempts, attempts)
				result := &types.Result{
					Solution: types.Solution{
						Nonce:     uint32(nonce),
						Timestamp: timestamp,
						Hash:      crypto.DigestHex(digest),
						Attempts:  attempts,
					},
					Workers:       1,
					TotalAttempts: attempts,
					Duration:      time.Since(start),
				}
				return result, nil
			}

			if attempts%m.config.ProgressEvery == 0 {
				atomic.StoreInt64(&m.attempts, attempts)
				log.Infof("Attempts: %d, last hash: %s...", attempts, crypto.DigestHex(digest)[:16])
			}
		}

		if timestamp == math.MaxUint32 {
			return nil, fmt.Errorf("%w: timestamp rollover past %d", types.ErrNonceOverflow, uint32(math.MaxUint32))
		}
		timestamp++
		log.Infof("Nonces exhausted, moving timestamp to %d", timestamp)
	}
}
