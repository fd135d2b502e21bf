// Package wallet tracks the contribution and claim state of the connected
// account.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/ligun0805/ifo-client/internal/batch"
	"github.com/ligun0805/ifo-client/internal/logger"
	"github.com/ligun0805/ifo-client/internal/metrics"
)

// UserInfo is the per-account record of the IFO contract.
type UserInfo struct {
	Committed *big.Int // raising currency used against the user's cap
	Allocated *big.Int // distributed token purchased
	Claimed   *big.Int
}

type AccountReader interface {
	UserInfo(ctx context.Context, account common.Address) (UserInfo, error)
	IsWhitelisted(ctx context.Context, account common.Address) (bool, error)
	ClaimableToken(ctx context.Context, account common.Address) (*big.Int, error)
}

// AllowanceReader reports how much raising currency the IFO contract may
// pull from owner.
type AllowanceReader interface {
	Allowance(ctx context.Context, owner common.Address) (*big.Int, error)
}

var ErrClosed = errors.New("wallet: tracker closed")

// State is the contribution state of one account.
type State struct {
	Account       common.Address
	Committed     *big.Int
	Allocated     *big.Int
	Claimed       *big.Int
	Claimable     *big.Int
	Whitelisted   bool
	ClaimRecorded bool // a claim succeeded locally and no refresh has confirmed it yet
	Loaded        bool
}

func emptyState(account common.Address) State {
	return State{
		Account:   account,
		Committed: new(big.Int),
		Allocated: new(big.Int),
		Claimed:   new(big.Int),
		Claimable: new(big.Int),
	}
}

func (s State) clone() State {
	out := s
	out.Committed = new(big.Int).Set(s.Committed)
	out.Allocated = new(big.Int).Set(s.Allocated)
	out.Claimed = new(big.Int).Set(s.Claimed)
	out.Claimable = new(big.Int).Set(s.Claimable)
	return out
}

// RemainingCap is maxCap minus the committed amount, floored at zero.
func (s State) RemainingCap(maxCap *big.Int) *big.Int {
	if maxCap == nil {
		return new(big.Int)
	}
	rem := new(big.Int).Sub(maxCap, s.Committed)
	if rem.Sign() < 0 {
		rem.SetInt64(0)
	}
	return rem
}

func (s State) DidContribute() bool { return s.Committed.Sign() > 0 }

func (s State) CanClaim() bool { return !s.ClaimRecorded && s.Claimable.Sign() > 0 }

// ClaimedPercent is claimed over allocated, in percent.
func (s State) ClaimedPercent() float64 {
	if s.Allocated.Sign() == 0 {
		return 0
	}
	r := new(big.Rat).SetFrac(s.Claimed, s.Allocated)
	r.Mul(r, big.NewRat(100, 1))
	f, _ := r.Float64()
	return f
}

type Config struct {
	Reader    AccountReader
	Allowance AllowanceReader
	Executor  *batch.Executor
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
}

// Tracker is the single writer of the connected account's State. Local
// mutators apply optimistic updates; the next refresh replaces them.
type Tracker struct {
	reader  AccountReader
	allow   AllowanceReader
	exec    *batch.Executor
	log     *zap.Logger
	metrics *metrics.Metrics

	mu           sync.Mutex
	state        State
	allowance    *big.Int
	pending      bool
	seq          uint64
	applied      uint64
	allowSeq     uint64
	allowApplied uint64
	closed       bool
}

func NewTracker(cfg Config) *Tracker {
	exec := cfg.Executor
	if exec == nil {
		exec = batch.New(0)
	}
	return &Tracker{
		reader:    cfg.Reader,
		allow:     cfg.Allowance,
		exec:      exec,
		log:       logger.Named(cfg.Logger, "wallet"),
		metrics:   cfg.Metrics,
		state:     emptyState(common.Address{}),
		allowance: new(big.Int),
	}
}

// SetAccount switches the tracked account. The previous account's state is
// dropped along with any refresh still in flight for it. The zero address
// means disconnected and triggers no read.
func (t *Tracker) SetAccount(ctx context.Context, account common.Address) (State, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return State{}, ErrClosed
	}
	if t.state.Account == account && (t.state.Loaded || account == (common.Address{})) {
		st := t.state.clone()
		t.mu.Unlock()
		return st, nil
	}
	t.state = emptyState(account)
	t.allowance = new(big.Int)
	t.applied = t.seq
	t.allowApplied = t.allowSeq
	t.mu.Unlock()

	if account == (common.Address{}) {
		t.log.Info("wallet disconnected")
		return emptyState(account), nil
	}
	t.log.Info("wallet account changed", zap.String("account", account.Hex()))
	return t.Refresh(ctx)
}

// Refresh reads userInfo, whitelist flag and claimable amount as one
// snapshot and replaces the held state.
func (t *Tracker) Refresh(ctx context.Context) (State, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return State{}, ErrClosed
	}
	account := t.state.Account
	if account == (common.Address{}) {
		st := t.state.clone()
		t.mu.Unlock()
		return st, nil
	}
	t.seq++
	seq := t.seq
	t.mu.Unlock()

	started := time.Now()
	next, err := t.read(ctx, account)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return State{}, ErrClosed
	}
	if seq <= t.applied || t.state.Account != account {
		t.metrics.Refresh("wallet", metrics.ResultStale, 0)
		t.log.Debug("discarding stale wallet snapshot", zap.String("account", account.Hex()), zap.Uint64("seq", seq))
		return t.state.clone(), nil
	}
	if err != nil {
		t.metrics.Refresh("wallet", metrics.ResultError, time.Since(started))
		t.log.Warn("wallet refresh failed, keeping previous snapshot", zap.String("account", account.Hex()), zap.Error(err))
		return t.state.clone(), fmt.Errorf("wallet %s: refresh: %w", account.Hex(), err)
	}
	t.applied = seq
	t.state = next
	t.metrics.Refresh("wallet", metrics.ResultOK, time.Since(started))
	return next.clone(), nil
}

func (t *Tracker) read(ctx context.Context, account common.Address) (State, error) {
	if t.reader == nil {
		return State{}, errors.New("no account reader")
	}
	res, err := t.exec.Execute(ctx,
		func(ctx context.Context) (any, error) { return t.reader.UserInfo(ctx, account) },
		func(ctx context.Context) (any, error) { return t.reader.IsWhitelisted(ctx, account) },
		func(ctx context.Context) (any, error) { return t.reader.ClaimableToken(ctx, account) },
	)
	if err != nil {
		return State{}, err
	}
	info, err := batch.As[UserInfo](res, 0)
	if err != nil {
		return State{}, err
	}
	wl, err := batch.Bool(res, 1)
	if err != nil {
		return State{}, err
	}
	claimable, err := batch.BigInt(res, 2)
	if err != nil {
		return State{}, err
	}

	st := emptyState(account)
	setIfPresent(st.Committed, info.Committed)
	setIfPresent(st.Allocated, info.Allocated)
	setIfPresent(st.Claimed, info.Claimed)
	st.Claimable.Set(claimable)
	st.Whitelisted = wl
	st.Loaded = true
	return st, nil
}

func setIfPresent(dst, src *big.Int) {
	if src != nil {
		dst.Set(src)
	}
}

// RecordContribution adds amount to the committed total ahead of the next
// refresh.
func (t *Tracker) RecordContribution(amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.state.Committed = new(big.Int).Add(t.state.Committed, amount)
	t.log.Debug("recorded contribution", zap.String("account", t.state.Account.Hex()), zap.String("amount", amount.String()))
}

// RecordClaim marks the claimable amount as claimed so that a second claim
// cannot start before the chain confirms the first.
func (t *Tracker) RecordClaim() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	claimed := new(big.Int).Add(t.state.Claimed, t.state.Claimable)
	if t.state.Allocated.Sign() > 0 && claimed.Cmp(t.state.Allocated) > 0 {
		claimed.Set(t.state.Allocated)
	}
	t.state.Claimed = claimed
	t.state.Claimable = new(big.Int)
	t.state.ClaimRecorded = true
}

func (t *Tracker) SetPendingTx(pending bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.pending = pending
	if pending {
		// reads started before the transaction must not land afterwards
		t.allowApplied = t.allowSeq
	}
	t.metrics.PendingTx(pending)
}

func (t *Tracker) IsPendingTx() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}

// RefreshAllowance re-reads the allowance unless a transaction is pending,
// in which case the cached value is returned untouched.
func (t *Tracker) RefreshAllowance(ctx context.Context) (*big.Int, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrClosed
	}
	account := t.state.Account
	if t.pending || t.allow == nil || account == (common.Address{}) {
		a := new(big.Int).Set(t.allowance)
		t.mu.Unlock()
		return a, nil
	}
	t.allowSeq++
	seq := t.allowSeq
	t.mu.Unlock()

	a, err := t.allow.Allowance(ctx, account)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrClosed
	}
	if seq <= t.allowApplied || t.pending || t.state.Account != account {
		return new(big.Int).Set(t.allowance), nil
	}
	if err != nil {
		t.log.Warn("allowance read failed", zap.String("account", account.Hex()), zap.Error(err))
		return new(big.Int).Set(t.allowance), fmt.Errorf("wallet %s: allowance: %w", account.Hex(), err)
	}
	if a == nil {
		a = new(big.Int)
	}
	t.allowApplied = seq
	t.allowance = new(big.Int).Set(a)
	return new(big.Int).Set(a), nil
}

func (t *Tracker) Allowance() *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return new(big.Int).Set(t.allowance)
}

func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.clone()
}

// Close disables every later mutation.
func (t *Tracker) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
}
