// Package ifocore binds the IFO sale contract and its raising currency
// to the sale, wallet and txflow packages over an Ethereum JSON-RPC node.
package ifocore

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/ligun0805/ifo-client/internal/offering"
	"github.com/ligun0805/ifo-client/internal/wallet"
)

const ifoABIJSON = `[
 {"type":"function","name":"startBlock","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"endBlock","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"soldTokenAmount","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"tokenAmountForSale","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"tokenPerLPToken","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"maxCapPerUser","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"minCapPerUser","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"userInfo","stateMutability":"view","inputs":[{"name":"","type":"address"}],"outputs":[{"name":"usedCAPAmount","type":"uint256"},{"name":"purchasedTokenAmount","type":"uint256"},{"name":"claimedTokenAmount","type":"uint256"}]},
 {"type":"function","name":"isWhitelisted","stateMutability":"view","inputs":[{"name":"","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
 {"type":"function","name":"claimableToken","stateMutability":"view","inputs":[{"name":"","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"deposit","stateMutability":"nonpayable","inputs":[{"name":"_amount","type":"uint256"},{"name":"_referrer","type":"address"}],"outputs":[]},
 {"type":"function","name":"claim","stateMutability":"nonpayable","inputs":[],"outputs":[]}
]`

var ifoABI abi.ABI

func init() {
	var err error
	ifoABI, err = abi.JSON(strings.NewReader(ifoABIJSON))
	if err != nil {
		panic(err)
	}
}

// IFO is a read binding of one offering's sale contract. It serves as
// sale.SaleReader, wallet.AccountReader and wallet.AllowanceReader.
type IFO struct {
	c        Caller
	address  common.Address
	currency *Token
}

func NewIFO(c Caller, o offering.Offering) *IFO {
	return &IFO{c: c, address: o.Address, currency: NewToken(c, o.CurrencyAddress)}
}

func (f *IFO) Address() common.Address { return f.address }

func (f *IFO) Currency() *Token { return f.currency }

func (f *IFO) uint64Of(ctx context.Context, method string) (uint64, error) {
	v, err := callBig(ctx, f.c, ifoABI, f.address, method)
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("%s: %s does not fit a block number", method, v)
	}
	return v.Uint64(), nil
}

func (f *IFO) bigOf(ctx context.Context, method string, args ...any) (*big.Int, error) {
	return callBig(ctx, f.c, ifoABI, f.address, method, args...)
}

func (f *IFO) StartBlock(ctx context.Context) (uint64, error) { return f.uint64Of(ctx, "startBlock") }

func (f *IFO) EndBlock(ctx context.Context) (uint64, error) { return f.uint64Of(ctx, "endBlock") }

func (f *IFO) RaisedAmount(ctx context.Context) (*big.Int, error) {
	return f.bigOf(ctx, "soldTokenAmount")
}

func (f *IFO) SaleCapAmount(ctx context.Context) (*big.Int, error) {
	return f.bigOf(ctx, "tokenAmountForSale")
}

func (f *IFO) ExchangeRate(ctx context.Context) (*big.Int, error) {
	return f.bigOf(ctx, "tokenPerLPToken")
}

func (f *IFO) MaxCapPerUser(ctx context.Context) (*big.Int, error) {
	return f.bigOf(ctx, "maxCapPerUser")
}

func (f *IFO) MinCapPerUser(ctx context.Context) (*big.Int, error) {
	return f.bigOf(ctx, "minCapPerUser")
}

func (f *IFO) UserInfo(ctx context.Context, account common.Address) (wallet.UserInfo, error) {
	out, err := call(ctx, f.c, ifoABI, f.address, "userInfo", account)
	if err != nil {
		return wallet.UserInfo{}, err
	}
	if len(out) != 3 {
		return wallet.UserInfo{}, fmt.Errorf("userInfo: want 3 outputs, got %d", len(out))
	}
	vals := make([]*big.Int, 3)
	for i := range out {
		v, ok := out[i].(*big.Int)
		if !ok {
			return wallet.UserInfo{}, fmt.Errorf("userInfo: output %d is %T", i, out[i])
		}
		vals[i] = v
	}
	return wallet.UserInfo{Committed: vals[0], Allocated: vals[1], Claimed: vals[2]}, nil
}

func (f *IFO) IsWhitelisted(ctx context.Context, account common.Address) (bool, error) {
	out, err := call(ctx, f.c, ifoABI, f.address, "isWhitelisted", account)
	if err != nil {
		return false, err
	}
	b, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("isWhitelisted: output is %T", out[0])
	}
	return b, nil
}

func (f *IFO) ClaimableToken(ctx context.Context, account common.Address) (*big.Int, error) {
	return f.bigOf(ctx, "claimableToken", account)
}

// Allowance is how much raising currency the sale contract may pull from owner.
func (f *IFO) Allowance(ctx context.Context, owner common.Address) (*big.Int, error) {
	return f.currency.Allowance(ctx, owner, f.address)
}

// HasAllowance reports a non-zero allowance, the precondition for deposit.
func (f *IFO) HasAllowance(ctx context.Context, owner common.Address) (bool, error) {
	a, err := f.Allowance(ctx, owner)
	if err != nil {
		return false, err
	}
	return a.Sign() > 0, nil
}

func EncodeDeposit(amount *big.Int, referrer common.Address) ([]byte, error) {
	return ifoABI.Pack("deposit", amount, referrer)
}

func EncodeClaim() ([]byte, error) {
	return ifoABI.Pack("claim")
}
