package rate

import (
	"context"
	"fmt"
	"time"
)

// Limiter gates outbound Gmail calls. Harvest and disposal wait on it once per
// remote request.
type Limiter interface {
	Wait(ctx context.Context) error
}

// New returns a token bucket releasing rps tokens per second, or an
// Unlimited limiter when rps <= 0. Callers must Stop the result.
func New(rps int) StoppableLimiter {
	if rps <= 0 {
		return Unlimited{}
	}
	return NewTokenBucket(rps)
}

// StoppableLimiter is a Limiter owning background resources.
type StoppableLimiter interface {
	Limiter
	Stop()
}

// Unlimited never blocks except on a canceled context.
type Unlimited struct{}

func (Unlimited) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("rate wait canceled: %w", err)
	}
	return nil
}

func (Unlimited) Stop() {}

// TokenBucket implements a fixed-rate token bucket limiter.
type TokenBucket struct {
	ticker   *time.Ticker
	tokens   chan struct{}
	stop     chan struct{}
	stopDone chan struct{}
}

// NewTokenBucket returns a limiter that releases rps tokens per second.
func NewTokenBucket(rps int) *TokenBucket {
	if rps <= 0 {
		rps = 1
	}
	tb := &TokenBucket{
		ticker:   time.NewTicker(time.Second / time.Duration(rps)),
		tokens:   make(chan struct{}, rps),
		stop:     make(chan struct{}),
		stopDone: make(chan struct{}),
	}
	// first call proceeds immediately
	tb.tokens <- struct{}{}
	go tb.run()
	return tb
}

func (t *TokenBucket) run() {
	defer close(t.stopDone)
	for {
		select {
		case <-t.stop:
			return
		case <-t.ticker.C:
			select {
			case t.tokens <- struct{}{}:
			default:
			}
		}
	}
}

// Wait blocks until a token is available or the context is canceled.
func (t *TokenBucket) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("rate wait canceled: %w", ctx.Err())
	case <-t.tokens:
		return nil
	}
}

// Stop releases the ticker and its goroutine.
func (t *TokenBucket) Stop() {
	t.ticker.Stop()
	close(t.stop)
	<-t.stopDone
}

var (
	_ StoppableLimiter = (*TokenBucket)(nil)
	_ StoppableLimiter = Unlimited{}
)
