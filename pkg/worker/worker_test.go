package worker

import (
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screa/nonce-miner/internal/crypto"
	"github.com/screa/nonce-miner/pkg/header"
	"github.com/screa/nonce-miner/pkg/target"
	"github.com/screa/nonce-miner/pkg/types"
)

const testTimestamp = 1700000000

func newConfig(t *testing.T, id int, stride, limit uint64, prefix string) *types.WorkerConfig {
	t.Helper()
	b, err := header.NewBuilder(header.DefaultTemplate())
	require.NoError(t, err)
	return &types.WorkerConfig{
		ID:            id,
		Start:         uint64(id),
		Stride:        stride,
		Limit:         limit,
		Timestamp:     testTimestamp,
		Header:        b.Bytes(),
		TargetNibbles: target.MustParse(prefix).Nibbles(),
	}
}

func TestNewWorker(t *testing.T) {
	config := newConfig(t, 0, 1, 10, "0000")
	attempts := int64(0)
	worker, err := NewWorker(config, &attempts)
	require.NoError(t, err)
	require.NotNil(t, worker)
	assert.Equal(t, config, worker.config)

	config.Stride = 0
	_, err = NewWorker(config, &attempts)
	assert.ErrorIs(t, err, types.ErrInvalidWorkerCount)

	config = newConfig(t, 0, 1, types.MaxNonce+1, "0000")
	_, err = NewWorker(config, &attempts)
	assert.ErrorIs(t, err, types.ErrNonceOverflow)

	config = newConfig(t, 0, 1, 10, "0000")
	config.Header = config.Header[:10]
	_, err = NewWorker(config, &attempts)
	assert.ErrorIs(t, err, types.ErrInvalidTemplate)
}

func TestStepResidueClassPartition(t *testing.T) {
	const workers = 4
	const limit = 103

	impossible := strings.Repeat("f", target.MaxLen)
	seen := make(map[uint32]int)
	for i := 0; i < workers; i++ {
		w, err := NewWorker(newConfig(t, i, workers, limit, impossible), nil)
		require.NoError(t, err)

		var tested []uint32
		for {
			nonce, _, ok := w.Step()
			if !ok {
				break
			}
			tested = append(tested, nonce)
			seen[nonce]++
		}
		for k, nonce := range tested {
			assert.Equal(t, uint32(i+k*workers), nonce)
		}
		assert.Equal(t, int64(len(tested)), w.Attempts())
	}

	assert.Len(t, seen, limit)
	for nonce, count := range seen {
		assert.Equal(t, 1, count, "nonce %d tested more than once", nonce)
	}
}

func TestStepHashMatchesSerializedHeader(t *testing.T) {
	w, err := NewWorker(newConfig(t, 3, 2, 100, ""), nil)
	require.NoError(t, err)

	nonce, matched, ok := w.Step()
	require.True(t, ok)
	assert.True(t, matched)
	assert.Equal(t, uint32(3), nonce)

	raw, err := header.Serialize(header.DefaultTemplate(), testTimestamp, 3)
	require.NoError(t, err)
	sol := w.Solution(nonce)
	assert.Equal(t, crypto.DigestHex(crypto.DoubleSHA256(raw)), sol.Hash)
	assert.Equal(t, 3, sol.WorkerID)
	assert.Equal(t, int64(1), sol.Attempts)
	assert.Equal(t, uint32(testTimestamp), sol.Timestamp)
}

func TestRunEmptyTargetFirstAttempt(t *testing.T) {
	w, err := NewWorker(newConfig(t, 2, 4, types.MaxNonce, ""), nil)
	require.NoError(t, err)

	var stop atomic.Bool
	results := make(chan types.Solution, 1)
	assert.Equal(t, Found, w.Run(&stop, results))
	assert.True(t, stop.Load())

	sol := <-results
	assert.Equal(t, uint32(2), sol.Nonce)
	assert.Equal(t, int64(1), sol.Attempts)
}

func TestRunCancelled(t *testing.T) {
	attempts := int64(0)
	w, err := NewWorker(newConfig(t, 0, 1, types.MaxNonce, "0000"), &attempts)
	require.NoError(t, err)

	var stop atomic.Bool
	stop.Store(true)
	results := make(chan types.Solution, 1)
	assert.Equal(t, Cancelled, w.Run(&stop, results))
	assert.Empty(t, results)
	assert.Equal(t, int64(0), w.Attempts())
}

func TestRunExhausted(t *testing.T) {
	attempts := int64(0)
	impossible := strings.Repeat("f", target.MaxLen)
	w, err := NewWorker(newConfig(t, 1, 3, 3000, impossible), &attempts)
	require.NoError(t, err)

	var stop atomic.Bool
	results := make(chan types.Solution, 1)
	assert.Equal(t, Exhausted, w.Run(&stop, results))
	assert.False(t, stop.Load())
	assert.Equal(t, int64(1000), w.Attempts())
	assert.Equal(t, int64(1000), atomic.LoadInt64(&attempts))
}

func TestRunFullSlotDoesNotBlock(t *testing.T) {
	w, err := NewWorker(newConfig(t, 0, 1, 10, ""), nil)
	require.NoError(t, err)

	var stop atomic.Bool
	results := make(chan types.Solution, 1)
	results <- types.Solution{WorkerID: 99}
	assert.Equal(t, Found, w.Run(&stop, results))
	assert.Equal(t, 99, (<-results).WorkerID)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "found", Found.String())
	assert.Equal(t, "outcome(9)", Outcome(9).String())
}
