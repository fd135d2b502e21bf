package ifocore

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ligun0805/ifo-client/internal/logger"
)

// HeightSource reports the chain head. *ethclient.Client satisfies it.
type HeightSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// WatchHeight polls src every interval and calls fn each time the height
// changes, starting with the first successful read. It returns when ctx
// ends. Poll errors are logged and retried on the next tick.
func WatchHeight(ctx context.Context, src HeightSource, every time.Duration, log *zap.Logger, fn func(ctx context.Context, height uint64)) error {
	if every <= 0 {
		every = time.Second
	}
	log = logger.Named(log, "heads")
	t := time.NewTicker(every)
	defer t.Stop()

	var last uint64
	for {
		h, err := src.BlockNumber(ctx)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("block height poll failed", zap.Error(err))
		case h != last:
			last = h
			fn(ctx, h)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}
