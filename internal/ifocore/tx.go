package ifocore

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/ligun0805/ifo-client/internal/logger"
)

// ErrReverted is returned for a mined transaction with a failed status.
var ErrReverted = errors.New("transaction reverted")

// Backend is the node surface the Sender needs. *ethclient.Client
// satisfies it.
type Backend interface {
	Caller
	feeSource
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Build EIP-1559 transaction.
func buildDynamicTx(chain *big.Int, nonce uint64, to *common.Address, value *big.Int, gasLimit uint64, tip, feeCap *big.Int, data []byte) *types.Transaction {
	df := &types.DynamicFeeTx{
		ChainID:   chain,
		Nonce:     nonce,
		Gas:       gasLimit,
		GasTipCap: new(big.Int).Set(tip),
		GasFeeCap: new(big.Int).Set(feeCap),
		To:        to,
		Value:     new(big.Int).Set(value),
		Data:      data,
	}
	return types.NewTx(df)
}

// Sign transaction with latest signer for given chain ID.
func signTx(tx *types.Transaction, chain *big.Int, prv *ecdsa.PrivateKey) (*types.Transaction, error) {
	signer := types.LatestSignerForChainID(chain)
	return types.SignTx(tx, signer, prv)
}

type SenderConfig struct {
	ChainID    *big.Int
	TipGwei    int64
	BaseFeeMul int64
	BufferPct  int64
	PollEvery  time.Duration
	Logger     *zap.Logger
}

// Sender signs, broadcasts and waits for transactions of one account.
// Sends are serialized so that nonces never collide.
type Sender struct {
	b    Backend
	cfg  SenderConfig
	key  *ecdsa.PrivateKey
	from common.Address
	log  *zap.Logger

	mu sync.Mutex
}

func NewSender(b Backend, key *ecdsa.PrivateKey, cfg SenderConfig) (*Sender, error) {
	if key == nil {
		return nil, errors.New("sender: no private key")
	}
	if cfg.ChainID == nil || cfg.ChainID.Sign() <= 0 {
		return nil, errors.New("sender: chain id required")
	}
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = time.Second
	}
	return &Sender{
		b:    b,
		cfg:  cfg,
		key:  key,
		from: gethcrypto.PubkeyToAddress(key.PublicKey),
		log:  logger.Named(cfg.Logger, "sender"),
	}, nil
}

// NewSenderFromHex parses pkHex and builds a Sender.
func NewSenderFromHex(b Backend, pkHex string, cfg SenderConfig) (*Sender, error) {
	prv, err := hexToECDSAPriv(pkHex)
	if err != nil {
		return nil, fmt.Errorf("sender: %w", err)
	}
	return NewSender(b, prv, cfg)
}

func (s *Sender) From() common.Address { return s.from }

// Send estimates, signs and broadcasts a call to `to`. A call that would
// revert is rejected before broadcast.
func (s *Sender) Send(ctx context.Context, to common.Address, data []byte) (*types.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := logger.For(ctx, s.log)
	msg := ethereum.CallMsg{From: s.from, To: &to, Data: data, Value: big.NewInt(0)}
	gas, err := estimateGasWithRetry(ctx, s.b, msg)
	if err != nil {
		if isRevert(err) {
			return nil, fmt.Errorf("preflight: %s: %w", revertReason(err), ErrReverted)
		}
		return nil, fmt.Errorf("estimate gas: %w", err)
	}
	tip, feeCap, err := dynamicFees(ctx, s.b, s.cfg.TipGwei, s.cfg.BaseFeeMul)
	if err != nil {
		return nil, fmt.Errorf("fees: %w", err)
	}
	nonce, err := s.b.PendingNonceAt(ctx, s.from)
	if err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}

	tx := buildDynamicTx(s.cfg.ChainID, nonce, &to, big.NewInt(0), withBuffer(gas, s.cfg.BufferPct), tip, feeCap, data)
	signed, err := signTx(tx, s.cfg.ChainID, s.key)
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	if err := s.b.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("send: %w", err)
	}
	log.Info("transaction sent",
		zap.String("hash", signed.Hash().Hex()),
		zap.String("to", to.Hex()),
		zap.Uint64("nonce", nonce),
		zap.Uint64("gas", signed.Gas()),
		zap.String("tip_gwei", fmtGwei(tip)),
		zap.String("fee_cap_gwei", fmtGwei(feeCap)))
	return signed, nil
}

// Wait polls for the receipt of tx until it is mined or ctx ends.
func (s *Sender) Wait(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	t := time.NewTicker(s.cfg.PollEvery)
	defer t.Stop()
	for {
		rcpt, err := s.b.TransactionReceipt(ctx, tx.Hash())
		switch {
		case err == nil && rcpt != nil:
			if rcpt.Status != types.ReceiptStatusSuccessful {
				return rcpt, fmt.Errorf("%w: %s in block %v", ErrReverted, tx.Hash().Hex(), rcpt.BlockNumber)
			}
			logger.For(ctx, s.log).Info("transaction mined",
				zap.String("hash", tx.Hash().Hex()), zap.Stringer("block", rcpt.BlockNumber), zap.Uint64("gas_used", rcpt.GasUsed))
			return rcpt, nil
		case err != nil && !errors.Is(err, ethereum.NotFound):
			logger.For(ctx, s.log).Debug("receipt poll failed", zap.String("hash", tx.Hash().Hex()), zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

// SendAndWait is Send followed by Wait.
func (s *Sender) SendAndWait(ctx context.Context, to common.Address, data []byte) (*types.Receipt, error) {
	tx, err := s.Send(ctx, to, data)
	if err != nil {
		return nil, err
	}
	return s.Wait(ctx, tx)
}

func estimateGasWithRetry(ctx context.Context, b Backend, msg ethereum.CallMsg) (uint64, error) {
	const maxAttempts = 3
	backoff := retryBackoff
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		g, err := b.EstimateGas(ctx, msg)
		if err == nil {
			return g, nil
		}
		lastErr = err
		if isRevert(err) || strings.Contains(err.Error(), "insufficient funds") {
			break
		}
		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(backoff):
			}
			if isRateLimitError(err) {
				backoff *= 2
			}
		}
	}
	return 0, lastErr
}
