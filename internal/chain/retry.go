package chain

import (
	"context"
	"math/rand/v2"
	"time"
)

const (
	defaultBaseDelay = 100 * time.Millisecond
	defaultMaxDelay  = 10 * time.Second
)

// Backoff retries RPC calls with jittered exponential delays.
type Backoff struct {
	MaxRetries int
	BaseDelay  time.Duration
	// MaxDelay caps a single wait. Defaults to 10s.
	MaxDelay time.Duration
	// OnRetry, if set, is called before each wait.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Do calls fn until it succeeds, MaxRetries retries have failed, or ctx is
// done. The n-th wait is drawn from [d/2, d) where d = BaseDelay * 2^n.
func (b Backoff) Do(ctx context.Context, fn func(context.Context) error) error {
	maxRetries := max(b.MaxRetries, 0)
	delay := b.BaseDelay
	if delay <= 0 {
		delay = defaultBaseDelay
	}
	maxDelay := b.MaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultMaxDelay
	}

	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= maxRetries {
			return err
		}

		wait := jitter(min(delay, maxDelay))
		if b.OnRetry != nil {
			b.OnRetry(attempt+1, wait, err)
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if delay < maxDelay {
			delay *= 2
		}
	}
}

func jitter(d time.Duration) time.Duration {
	half := d / 2
	if half <= 0 {
		return d
	}
	return half + rand.N(half)
}
