package miner

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/screa/nonce-miner/internal/config"
	"github.com/screa/nonce-miner/internal/crypto"
	"github.com/screa/nonce-miner/internal/logger"
	"github.com/screa/nonce-miner/pkg/header"
	"github.com/screa/nonce-miner/pkg/target"
	"github.com/screa/nonce-miner/pkg/types"
)

// Miner runs sequential searches and parallel races over one header template.
// A Miner runs one search at a time.
type Miner struct {
	config    *config.Config
	logger    *logger.Logger
	target    target.Target
	newHasher func() *crypto.DoubleHasher
	base      []byte // serialized template, zero timestamp and nonce
	attempts  int64
	done      chan struct{}
	once      sync.Once
}

// NewMiner validates the configuration and creates a new miner instance
func NewMiner(cfg *config.Config, log *logger.Logger) (*Miner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	tgt, err := cfg.ParseTarget()
	if err != nil {
		return nil, err
	}
	newHasher, err := crypto.HasherFactory(cfg.Hash)
	if err != nil {
		return nil, err
	}
	builder, err := header.NewBuilder(cfg.Template)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Discard()
	}

	return &Miner{
		config:    cfg,
		logger:    log,
		target:    tgt,
		newHasher: newHasher,
		base:      builder.Bytes(),
		done:      make(chan struct{}),
	}, nil
}

// Stop cancels the running search. Idempotent; the miner cannot be restarted.
func (m *Miner) Stop() {
	m.once.Do(func() { close(m.done) })
}

// Attempts returns the hashes computed so far by the current search
func (m *Miner) Attempts() int64 {
	return atomic.LoadInt64(&m.attempts)
}

// context derives the search context: parent, the configured timeout and Stop.
func (m *Miner) context(parent context.Context) (context.Context, context.CancelFunc) {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if m.config.Timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, m.config.Timeout)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}
	go func() {
		select {
		case <-m.done:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// stopOnDone sets stop once ctx ends, so hot loops poll an atomic instead of a channel.
func stopOnDone(ctx context.Context, stop *atomic.Bool) {
	go func() {
		<-ctx.Done()
		stop.Store(true)
	}()
}

// Verify recomputes a solution's hash and checks it against the target
func Verify(tpl header.Template, newHasher func() *crypto.DoubleHasher, tgt target.Target, sol types.Solution) error {
	raw, err := header.Serialize(tpl, sol.Timestamp, sol.Nonce)
	if err != nil {
		return err
	}
	hash := crypto.DigestHex(newHasher().Digest(raw))
	if hash != sol.Hash {
		return fmt.Errorf("%w: hash %s, recomputed %s", types.ErrInvalidSolution, sol.Hash, hash)
	}
	if !tgt.MatchesHex(hash) {
		return fmt.Errorf("%w: hash %s does not start with %q", types.ErrInvalidSolution, hash, tgt)
	}
	return nil
}

// Verify checks a solution against this miner's template, hash and target
func (m *Miner) Verify(sol types.Solution) error {
	return Verify(m.config.Template, m.newHasher, m.target, sol)
}

// periodicLogger logs mining progress at regular intervals
func (m *Miner) periodicLogger(log logger.FieldLogger, ticker *time.Ticker, done chan struct{}, start time.Time) {
	for {
		select {
		case <-ticker.C:
			attempts := atomic.LoadInt64(&m.attempts)
			elapsed := time.Since(start)

			rate := 0.0
			if elapsed.Seconds() > 0 {
				rate = float64(attempts) / elapsed.Seconds()
			}
			log.Infof("Progress: %d attempts, %.2f hashes/sec, no match yet", attempts, rate)
		case <-done:
			return
		}
	}
}

// startProgress starts periodicLogger when verbose and returns its stop func
func (m *Miner) startProgress(log logger.FieldLogger, start time.Time) func() {
	if !m.config.Verbose || m.config.LogInterval <= 0 {
		return func() {}
	}
	ticker := time.NewTicker(time.Duration(m.config.LogInterval) * time.Second)
	done := make(chan struct{})
	go m.periodicLogger(log, ticker, done, start)
	return func() {
		ticker.Stop()
		close(done)
	}
}
