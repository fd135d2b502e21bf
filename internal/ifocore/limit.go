package ifocore

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"golang.org/x/time/rate"
)

type limitedCaller struct {
	c   Caller
	lim *rate.Limiter
}

// LimitCaller spaces eth_call requests to at most perSec per second with the
// given burst. perSec <= 0 returns c unchanged.
func LimitCaller(c Caller, perSec float64, burst int) Caller {
	if perSec <= 0 {
		return c
	}
	if burst < 1 {
		burst = 1
	}
	return &limitedCaller{c: c, lim: rate.NewLimiter(rate.Limit(perSec), burst)}
}

func (l *limitedCaller) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if err := l.lim.Wait(ctx); err != nil {
		return nil, err
	}
	return l.c.CallContract(ctx, msg, blockNumber)
}
