package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// HeaderReader is the part of Client the block clock needs.
type HeaderReader interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// BlockClock reports the timestamp of the latest block seen by Refresh. It
// satisfies amm.Clock, so deadlines are judged against chain time.
type BlockClock struct {
	headers HeaderReader
	retry   Backoff
	logger  *zap.Logger

	now    atomic.Uint64
	number atomic.Uint64
}

func NewBlockClock(headers HeaderReader, maxRetries int, retryBackoff time.Duration, logger *zap.Logger) *BlockClock {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BlockClock{
		headers: headers,
		retry: Backoff{
			MaxRetries: maxRetries,
			BaseDelay:  retryBackoff,
			OnRetry: func(attempt int, delay time.Duration, err error) {
				logger.Warn("fetch latest header failed",
					zap.Int("attempt", attempt),
					zap.Duration("retry_in", delay),
					zap.Error(err),
				)
			},
		},
		logger: logger,
	}
}

// Refresh reads the latest header. The clock never moves backwards.
func (c *BlockClock) Refresh(ctx context.Context) error {
	var header *types.Header
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		h, err := c.headers.HeaderByNumber(ctx, nil)
		if err != nil {
			return err
		}
		header = h
		return nil
	})
	if err != nil {
		return fmt.Errorf("fetch latest header: %w", err)
	}

	for {
		current := c.now.Load()
		if header.Time <= current {
			break
		}
		if c.now.CompareAndSwap(current, header.Time) {
			if header.Number != nil {
				c.number.Store(header.Number.Uint64())
			}
			break
		}
	}
	c.logger.Debug("block clock refreshed", zap.Uint64("block", c.number.Load()), zap.Uint64("ts", c.now.Load()))
	return nil
}

// Now returns the latest block timestamp, or zero before the first Refresh.
func (c *BlockClock) Now() uint64 {
	return c.now.Load()
}

// Block returns the number of the block Now was read from.
func (c *BlockClock) Block() uint64 {
	return c.number.Load()
}
