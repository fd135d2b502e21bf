package ifocore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ligun0805/ifo-client/internal/offering"
)

var (
	ifoAddr      = common.HexToAddress("0x0d3BcFC73D86dd81443FFEd7f2D3D343d8C36e53")
	currencyAddr = common.HexToAddress("0xe9e7CEA3DedcA5984780Bafc599bD69ADd087D56")
	user         = common.HexToAddress("0x00000000000000000000000000000000000000aa")
)

func init() {
	retryBackoff = time.Millisecond
}

// fakeNode answers eth_call by contract and method.
type fakeNode struct {
	mu      sync.Mutex
	results map[string][]byte // "addr/method" -> return data
	errs    []error           // returned (and consumed) before results
	calls   []ethereum.CallMsg
}

func newFakeNode() *fakeNode {
	return &fakeNode{results: map[string][]byte{}}
}

func (n *fakeNode) set(t *testing.T, a abi.ABI, to common.Address, method string, vals ...any) {
	t.Helper()
	out, err := a.Methods[method].Outputs.Pack(vals...)
	require.NoError(t, err)
	n.results[key(to, a.Methods[method].ID)] = out
}

func key(to common.Address, sel []byte) string {
	return fmt.Sprintf("%s/%x", to.Hex(), sel)
}

func (n *fakeNode) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, msg)
	if len(n.errs) > 0 {
		err := n.errs[0]
		n.errs = n.errs[1:]
		return nil, err
	}
	if out, ok := n.results[key(*msg.To, msg.Data[:4])]; ok {
		return out, nil
	}
	return nil, nil
}

func testOffering() offering.Offering {
	return offering.Offering{ID: "t", Address: ifoAddr, CurrencyAddress: currencyAddr}
}

func TestIFO_SaleReads(t *testing.T) {
	n := newFakeNode()
	n.set(t, ifoABI, ifoAddr, "startBlock", big.NewInt(100))
	n.set(t, ifoABI, ifoAddr, "endBlock", big.NewInt(200))
	n.set(t, ifoABI, ifoAddr, "soldTokenAmount", big.NewInt(400))
	n.set(t, ifoABI, ifoAddr, "tokenAmountForSale", big.NewInt(1000))
	n.set(t, ifoABI, ifoAddr, "tokenPerLPToken", big.NewInt(2))
	n.set(t, ifoABI, ifoAddr, "maxCapPerUser", big.NewInt(100))
	n.set(t, ifoABI, ifoAddr, "minCapPerUser", big.NewInt(10))
	f := NewIFO(n, testOffering())
	ctx := context.Background()

	s, err := f.StartBlock(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), s)
	e, err := f.EndBlock(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(200), e)

	for name, fn := range map[string]func(context.Context) (*big.Int, error){
		"raised": f.RaisedAmount, "cap": f.SaleCapAmount, "rate": f.ExchangeRate,
		"max": f.MaxCapPerUser, "min": f.MinCapPerUser,
	} {
		v, err := fn(ctx)
		require.NoError(t, err, name)
		assert.Positive(t, v.Sign(), name)
	}
}

func TestIFO_AccountReads(t *testing.T) {
	n := newFakeNode()
	n.set(t, ifoABI, ifoAddr, "userInfo", big.NewInt(20), big.NewInt(40), big.NewInt(5))
	n.set(t, ifoABI, ifoAddr, "isWhitelisted", true)
	n.set(t, ifoABI, ifoAddr, "claimableToken", big.NewInt(35))
	n.set(t, erc20ABI, currencyAddr, "allowance", big.NewInt(0))
	f := NewIFO(n, testOffering())
	ctx := context.Background()

	info, err := f.UserInfo(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(20), info.Committed.Int64())
	assert.Equal(t, int64(40), info.Allocated.Int64())
	assert.Equal(t, int64(5), info.Claimed.Int64())

	wl, err := f.IsWhitelisted(ctx, user)
	require.NoError(t, err)
	assert.True(t, wl)

	c, err := f.ClaimableToken(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(35), c.Int64())

	ok, err := f.HasAllowance(ctx, user)
	require.NoError(t, err)
	assert.False(t, ok)

	// allowance(owner, spender) goes to the currency token with the sale as spender
	last := n.calls[len(n.calls)-1]
	assert.Equal(t, currencyAddr, *last.To)
	args, err := erc20ABI.Methods["allowance"].Inputs.Unpack(last.Data[4:])
	require.NoError(t, err)
	assert.Equal(t, user, args[0])
	assert.Equal(t, ifoAddr, args[1])
}

func TestIFO_EmptyReturn(t *testing.T) {
	f := NewIFO(newFakeNode(), testOffering())
	_, err := f.StartBlock(context.Background())
	assert.ErrorContains(t, err, "empty return")
}

func TestCallWithRetry(t *testing.T) {
	n := newFakeNode()
	n.set(t, ifoABI, ifoAddr, "startBlock", big.NewInt(1))
	n.errs = []error{errors.New("429 Too Many Requests"), errors.New("-32005 limit")}

	v, err := NewIFO(n, testOffering()).StartBlock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v)
	assert.Len(t, n.calls, 3)
}

func TestCallWithRetry_RevertNotRetried(t *testing.T) {
	n := newFakeNode()
	n.errs = []error{errors.New("execution reverted: not whitelisted")}

	_, err := NewIFO(n, testOffering()).ClaimableToken(context.Background(), user)
	assert.ErrorContains(t, err, "not whitelisted")
	assert.Len(t, n.calls, 1)
}

func TestEncodeDeposit(t *testing.T) {
	ref := common.HexToAddress("0x00000000000000000000000000000000000000bb")
	data, err := EncodeDeposit(big.NewInt(5), ref)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(ifoABI.Methods["deposit"].ID, data[:4]))

	args, err := ifoABI.Methods["deposit"].Inputs.Unpack(data[4:])
	require.NoError(t, err)
	assert.Equal(t, int64(5), args[0].(*big.Int).Int64())
	assert.Equal(t, ref, args[1])
}

func TestEncodeApprove_Max(t *testing.T) {
	data, err := EncodeApprove(ifoAddr, MaxApproval)
	require.NoError(t, err)
	args, err := erc20ABI.Methods["approve"].Inputs.Unpack(data[4:])
	require.NoError(t, err)
	assert.Equal(t, ifoAddr, args[0])
	assert.Equal(t, 256, args[1].(*big.Int).BitLen())
}

// fakeBackend extends fakeNode with the transaction surface.
type fakeBackend struct {
	*fakeNode
	baseFee      *big.Int
	tip          *big.Int
	gas          uint64
	estimateErr  error
	nonce        uint64
	sent         []*types.Transaction
	receipts     map[common.Hash]*types.Receipt
	receiptPolls int
	receiptAfter int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		fakeNode: newFakeNode(),
		baseFee:  big.NewInt(1_000_000_000),
		tip:      big.NewInt(500_000_000),
		gas:      100_000,
		nonce:    7,
		receipts: map[common.Hash]*types.Receipt{},
	}
}

func (b *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(150), BaseFee: b.baseFee}, nil
}

func (b *fakeBackend) SuggestGasTipCap(context.Context) (*big.Int, error) { return b.tip, nil }

func (b *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return b.nonce, nil
}

func (b *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return b.gas, b.estimateErr
}

func (b *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, tx)
	return nil
}

func (b *fakeBackend) TransactionReceipt(_ context.Context, h common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.receiptPolls++
	if b.receiptPolls <= b.receiptAfter {
		return nil, ethereum.NotFound
	}
	if r, ok := b.receipts[h]; ok {
		return r, nil
	}
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(151)}, nil
}

func newTestSender(t *testing.T, b Backend) *Sender {
	t.Helper()
	key, err := gethcrypto.GenerateKey()
	require.NoError(t, err)
	s, err := NewSender(b, key, SenderConfig{ChainID: big.NewInt(56), TipGwei: 1, BaseFeeMul: 2, BufferPct: 10, PollEvery: time.Millisecond})
	require.NoError(t, err)
	return s
}

func TestSender_Send(t *testing.T) {
	b := newFakeBackend()
	s := newTestSender(t, b)

	tx, err := s.Send(context.Background(), ifoAddr, []byte{1, 2, 3})
	require.NoError(t, err)
	require.Len(t, b.sent, 1)

	assert.Equal(t, uint64(7), tx.Nonce())
	assert.Equal(t, uint64(110_000), tx.Gas())
	// node suggests 0.5 gwei, floor is 1 gwei
	assert.Equal(t, big.NewInt(1_000_000_000), tx.GasTipCap())
	assert.Equal(t, big.NewInt(3_000_000_000), tx.GasFeeCap())
	assert.Equal(t, big.NewInt(56), tx.ChainId())

	from, err := types.Sender(types.LatestSignerForChainID(big.NewInt(56)), tx)
	require.NoError(t, err)
	assert.Equal(t, s.From(), from)
}

func TestSender_PreflightRevert(t *testing.T) {
	b := newFakeBackend()
	b.estimateErr = errors.New("execution reverted: cap exceeded")
	s := newTestSender(t, b)

	_, err := s.Send(context.Background(), ifoAddr, nil)
	assert.ErrorIs(t, err, ErrReverted)
	assert.ErrorContains(t, err, "cap exceeded")
	assert.Empty(t, b.sent)
}

func TestSender_WaitPollsUntilMined(t *testing.T) {
	b := newFakeBackend()
	b.receiptAfter = 3
	s := newTestSender(t, b)

	rcpt, err := s.SendAndWait(context.Background(), ifoAddr, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(151), rcpt.BlockNumber.Int64())
	assert.Equal(t, 4, b.receiptPolls)
}

func TestSender_WaitReverted(t *testing.T) {
	b := newFakeBackend()
	s := newTestSender(t, b)
	tx, err := s.Send(context.Background(), ifoAddr, nil)
	require.NoError(t, err)
	b.receipts[tx.Hash()] = &types.Receipt{Status: types.ReceiptStatusFailed, BlockNumber: big.NewInt(151)}

	_, err = s.Wait(context.Background(), tx)
	assert.ErrorIs(t, err, ErrReverted)
}

func TestSender_WaitHonoursContext(t *testing.T) {
	b := newFakeBackend()
	b.receiptAfter = 1 << 30
	s := newTestSender(t, b)
	tx, err := s.Send(context.Background(), ifoAddr, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = s.Wait(ctx, tx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewSenderFromHex(t *testing.T) {
	_, err := NewSenderFromHex(newFakeBackend(), "", SenderConfig{ChainID: big.NewInt(56)})
	assert.Error(t, err)

	s, err := NewSenderFromHex(newFakeBackend(), "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318", SenderConfig{ChainID: big.NewInt(56)})
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"), s.From())

	_, err = NewSenderFromHex(newFakeBackend(), "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318", SenderConfig{})
	assert.Error(t, err)
}

func TestActions_Deposit(t *testing.T) {
	b := newFakeBackend()
	s := newTestSender(t, b)
	a := NewActions(NewIFO(b, testOffering()), s)

	require.NoError(t, a.Deposit(context.Background(), big.NewInt(5), common.Address{}))
	require.NoError(t, a.ApproveRaising(context.Background()))
	require.NoError(t, a.Claim(context.Background()))
	require.Len(t, b.sent, 3)
	assert.Equal(t, ifoAddr, *b.sent[0].To())
	assert.Equal(t, currencyAddr, *b.sent[1].To())
	assert.Equal(t, ifoABI.Methods["claim"].ID, b.sent[2].Data()[:4])
}

type heights struct {
	mu   sync.Mutex
	seq  []uint64
	errs int
}

func (h *heights) BlockNumber(context.Context) (uint64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.errs > 0 {
		h.errs--
		return 0, errors.New("rpc")
	}
	if len(h.seq) == 1 {
		return h.seq[0], nil
	}
	v := h.seq[0]
	h.seq = h.seq[1:]
	return v, nil
}

func TestWatchHeight(t *testing.T) {
	src := &heights{seq: []uint64{100, 100, 101, 101, 101, 102}, errs: 1}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var got []uint64
	err := WatchHeight(ctx, src, time.Millisecond, nil, func(_ context.Context, h uint64) {
		got = append(got, h)
		if h == 102 {
			cancel()
		}
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []uint64{100, 101, 102}, got)
}

func TestLimitCaller(t *testing.T) {
	n := newFakeNode()
	assert.Same(t, Caller(n), LimitCaller(n, 0, 1))

	n.set(t, ifoABI, ifoAddr, "startBlock", big.NewInt(5))
	f := NewIFO(LimitCaller(n, 1000, 2), testOffering())
	for i := 0; i < 4; i++ {
		v, err := f.StartBlock(context.Background())
		require.NoError(t, err)
		assert.Equal(t, uint64(5), v)
	}
	assert.Len(t, n.calls, 4)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	slow := NewIFO(LimitCaller(n, 0.001, 1), testOffering())
	_, _ = slow.StartBlock(context.Background()) // drains the burst
	_, err := slow.StartBlock(ctx)
	assert.Error(t, err)
	assert.Len(t, n.calls, 5)
}

func TestToken_BalanceAndDecimals(t *testing.T) {
	n := newFakeNode()
	n.set(t, erc20ABI, currencyAddr, "balanceOf", big.NewInt(777))
	n.set(t, erc20ABI, currencyAddr, "decimals", uint8(18))
	tok := NewIFO(n, testOffering()).Currency()
	ctx := context.Background()

	bal, err := tok.BalanceOf(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(777), bal.Int64())

	d, err := tok.Decimals(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint8(18), d)
}
