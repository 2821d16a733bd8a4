package rate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUnlimitedForNonPositiveRate(t *testing.T) {
	for _, rps := range []int{0, -3} {
		l := New(rps)
		_, ok := l.(Unlimited)
		assert.True(t, ok, "rps=%d", rps)
		require.NoError(t, l.Wait(context.Background()))
		l.Stop()
	}
}

func TestUnlimitedHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, Unlimited{}.Wait(ctx), context.Canceled)
}

func TestTokenBucketFirstWaitIsImmediate(t *testing.T) {
	tb := NewTokenBucket(1)
	defer tb.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, tb.Wait(ctx))
}

func TestTokenBucketBlocksUntilCanceled(t *testing.T) {
	tb := NewTokenBucket(1)
	defer tb.Stop()
	require.NoError(t, tb.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, tb.Wait(ctx), context.DeadlineExceeded)
}
