package ifocore

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
)

const erc20ABIJSON = `[
 {"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
 {"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]}
]`

var erc20ABI abi.ABI

func init() {
	var err error
	erc20ABI, err = abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		panic(err)
	}
}

// MaxApproval is the allowance granted by ApproveRaising.
var MaxApproval = new(big.Int).Set(math.MaxBig256)

// Caller is the eth_call surface of a node. *ethclient.Client satisfies it.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// --- small RPC helpers (retry + backoff) ---
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "Too Many Requests") || strings.Contains(s, "-32005") || strings.Contains(s, "429")
}

var retryBackoff = 200 * time.Millisecond

// callWithRetry performs eth_call with small exponential backoff. Reverts
// are returned at once.
func callWithRetry(ctx context.Context, c Caller, msg ethereum.CallMsg) ([]byte, error) {
	const maxAttempts = 3
	backoff := retryBackoff
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		ret, err := c.CallContract(ctx, msg, nil)
		if err == nil {
			return ret, nil
		}
		lastErr = err
		if isRevert(err) {
			break
		}
		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			if isRateLimitError(err) {
				backoff *= 2
			}
		}
	}
	return nil, lastErr
}

func isRevert(err error) bool {
	return err != nil && strings.Contains(err.Error(), "execution reverted")
}

func revertReason(e error) string {
	s := e.Error()
	if i := strings.Index(s, "execution reverted"); i >= 0 {
		return s[i:]
	}
	return s
}

// call packs method, runs eth_call against to and unpacks the outputs.
func call(ctx context.Context, c Caller, a abi.ABI, to common.Address, method string, args ...any) ([]any, error) {
	data, err := a.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: pack: %w", method, err)
	}
	ret, err := callWithRetry(ctx, c, ethereum.CallMsg{To: &to, Data: data})
	if err != nil {
		if isRevert(err) {
			return nil, fmt.Errorf("%s: %s", method, revertReason(err))
		}
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	if len(ret) == 0 {
		return nil, fmt.Errorf("%s: empty return (no contract at %s?)", method, to.Hex())
	}
	out, err := a.Unpack(method, ret)
	if err != nil {
		return nil, fmt.Errorf("%s: unpack: %w", method, err)
	}
	return out, nil
}

func callBig(ctx context.Context, c Caller, a abi.ABI, to common.Address, method string, args ...any) (*big.Int, error) {
	out, err := call(ctx, c, a, to, method, args...)
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%s: want 1 output, got %d", method, len(out))
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected output %T", method, out[0])
	}
	return v, nil
}

// Token is a read binding of an ERC-20 contract.
type Token struct {
	c       Caller
	address common.Address
}

func NewToken(c Caller, address common.Address) *Token {
	return &Token{c: c, address: address}
}

func (t *Token) Address() common.Address { return t.address }

func (t *Token) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	return callBig(ctx, t.c, erc20ABI, t.address, "allowance", owner, spender)
}

func (t *Token) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	return callBig(ctx, t.c, erc20ABI, t.address, "balanceOf", account)
}

func (t *Token) Decimals(ctx context.Context) (uint8, error) {
	out, err := call(ctx, t.c, erc20ABI, t.address, "decimals")
	if err != nil {
		return 0, err
	}
	d, ok := out[0].(uint8)
	if !ok {
		return 0, errors.New("decimals: unexpected output")
	}
	return d, nil
}

// EncodeApprove builds approve(spender, amount) calldata.
func EncodeApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	return erc20ABI.Pack("approve", spender, amount)
}
