package ifocore

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
)

type feeSource interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
}

// Latest base fee and head number.
func latestBaseFee(ctx context.Context, fs feeSource) (*big.Int, *big.Int, error) {
	h, err := fs.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	if h.BaseFee == nil {
		return nil, h.Number, errors.New("no baseFee (pre-1559?)")
	}
	return new(big.Int).Set(h.BaseFee), new(big.Int).Set(h.Number), nil
}

// dynamicFees returns the tip and fee cap for a transaction mined within a
// few blocks: tip is the node suggestion floored at minTipGwei, fee cap is
// baseFee*baseFeeMul + tip.
func dynamicFees(ctx context.Context, fs feeSource, minTipGwei, baseFeeMul int64) (tip, feeCap *big.Int, err error) {
	baseFee, _, err := latestBaseFee(ctx, fs)
	if err != nil {
		return nil, nil, err
	}
	suggested, err := fs.SuggestGasTipCap(ctx)
	if err != nil {
		// a node without eth_maxPriorityFeePerGas still gets the configured floor
		suggested = nil
	}
	tip = maxBig(suggested, gweiToWei(minTipGwei))
	if baseFeeMul < 1 {
		baseFeeMul = 1
	}
	feeCap = addBig(mulBig(baseFee, baseFeeMul), tip)
	return tip, feeCap, nil
}
