package claim_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"

	"github.com/wormhole-demo/corebridge/internal/claim"
	"github.com/wormhole-demo/corebridge/internal/guardiantest"
	"github.com/wormhole-demo/corebridge/internal/ledger"
	"github.com/wormhole-demo/corebridge/internal/metrics"
)

func TestClaimOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tracker := claim.NewTracker(ledger.NewMemoryStore())
	key := claim.Key{EmitterChain: vaaLib.ChainIDEthereum, EmitterAddress: guardiantest.Emitter(1), Sequence: 10}

	c, err := tracker.Claim(ctx, key)
	require.NoError(t, err)
	require.False(t, c.IsComplete)

	_, err = tracker.Claim(ctx, key)
	require.ErrorIs(t, err, claim.ErrAlreadyClaimed)

	for _, other := range []claim.Key{
		{EmitterChain: vaaLib.ChainIDSolana, EmitterAddress: key.EmitterAddress, Sequence: key.Sequence},
		{EmitterChain: key.EmitterChain, EmitterAddress: guardiantest.Emitter(2), Sequence: key.Sequence},
		{EmitterChain: key.EmitterChain, EmitterAddress: key.EmitterAddress, Sequence: key.Sequence + 1},
	} {
		_, err = tracker.Claim(ctx, other)
		require.NoError(t, err, other.String())
	}
}

func TestClaimConcurrent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tracker := claim.NewTracker(ledger.NewMemoryStore())
	key := claim.Key{EmitterChain: vaaLib.ChainIDEthereum, EmitterAddress: guardiantest.Emitter(1), Sequence: 3}

	var wins, replays int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tracker.Claim(ctx, key)
			switch {
			case err == nil:
				atomic.AddInt32(&wins, 1)
			case errors.Is(err, claim.ErrAlreadyClaimed):
				atomic.AddInt32(&replays, 1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), wins)
	require.Equal(t, int32(31), replays)
}

func TestComplete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tracker := claim.NewTracker(ledger.NewMemoryStore())
	key := claim.Key{EmitterChain: vaaLib.ChainIDEthereum, EmitterAddress: guardiantest.Emitter(1), Sequence: 1}

	_, err := tracker.Complete(ctx, key)
	require.ErrorIs(t, err, ledger.ErrNotFound)

	_, err = tracker.Claim(ctx, key)
	require.NoError(t, err)

	c, err := tracker.Complete(ctx, key)
	require.NoError(t, err)
	require.True(t, c.IsComplete)

	c, err = tracker.Complete(ctx, key)
	require.NoError(t, err)
	require.True(t, c.IsComplete)

	c, err = tracker.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, c.IsComplete)
}

func TestCreateOpInBatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := ledger.NewMemoryStore()
	tracker := claim.NewTracker(store)
	key := claim.Key{EmitterChain: vaaLib.ChainIDSolana, EmitterAddress: guardiantest.Emitter(4), Sequence: 0}

	require.NoError(t, store.Apply(ctx, claim.CreateOp(key, true), ledger.Put([]byte("side-effect"), []byte("1"))))

	err := store.Apply(ctx, claim.CreateOp(key, true), ledger.Put([]byte("side-effect"), []byte("2")))
	require.ErrorIs(t, claim.TranslateError(err, key), claim.ErrAlreadyClaimed)

	v, err := store.Get(ctx, []byte("side-effect"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), v)

	c, err := tracker.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, c.IsComplete)
}

// Not parallel: the counters are process-wide.
func TestClaimCountsResults(t *testing.T) {
	ctx := context.Background()
	tracker := claim.NewTracker(ledger.NewMemoryStore())
	key := claim.Key{EmitterChain: vaaLib.ChainIDEthereum, EmitterAddress: guardiantest.Emitter(3), Sequence: 1}

	ok := testutil.ToFloat64(metrics.Claims.WithLabelValues("ok"))
	duplicate := testutil.ToFloat64(metrics.Claims.WithLabelValues("duplicate"))

	_, err := tracker.Claim(ctx, key)
	require.NoError(t, err)
	_, err = tracker.Claim(ctx, key)
	require.ErrorIs(t, err, claim.ErrAlreadyClaimed)

	require.Equal(t, ok+1, testutil.ToFloat64(metrics.Claims.WithLabelValues("ok")))
	require.Equal(t, duplicate+1, testutil.ToFloat64(metrics.Claims.WithLabelValues("duplicate")))
}
