// Package sale derives the public state of an offering from its contract
// and keeps the latest coherent snapshot.
package sale

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ligun0805/ifo-client/internal/batch"
	"github.com/ligun0805/ifo-client/internal/logger"
	"github.com/ligun0805/ifo-client/internal/metrics"
	"github.com/ligun0805/ifo-client/internal/offering"
)

// SaleReader is the read surface of an IFO contract.
type SaleReader interface {
	StartBlock(ctx context.Context) (uint64, error)
	EndBlock(ctx context.Context) (uint64, error)
	RaisedAmount(ctx context.Context) (*big.Int, error)
	SaleCapAmount(ctx context.Context) (*big.Int, error)
	ExchangeRate(ctx context.Context) (*big.Int, error)
	MaxCapPerUser(ctx context.Context) (*big.Int, error)
	MinCapPerUser(ctx context.Context) (*big.Int, error)
}

var ErrClosed = errors.New("sale: fetcher closed")

// State is one coherent snapshot of an offering. Amounts are in the
// smallest unit of their token.
type State struct {
	Status       Status
	StartBlock   uint64
	EndBlock     uint64
	CurrentBlock uint64
	Timing
	Progress      float64
	RaisedAmount  *big.Int
	SaleCapAmount *big.Int
	ExchangeRate  *big.Int // distributed token per raising unit
	MaxCapPerUser *big.Int
	MinCapPerUser *big.Int
}

// RemainingSaleAmount is cap minus raised, floored at zero.
func (s State) RemainingSaleAmount() *big.Int {
	if s.SaleCapAmount == nil {
		return new(big.Int)
	}
	rem := new(big.Int).Set(s.SaleCapAmount)
	if s.RaisedAmount != nil {
		rem.Sub(rem, s.RaisedAmount)
	}
	if rem.Sign() < 0 {
		rem.SetInt64(0)
	}
	return rem
}

// SoldOut reports a known sale cap with nothing left to sell.
func (s State) SoldOut() bool {
	return s.SaleCapAmount != nil && s.SaleCapAmount.Sign() > 0 && s.RemainingSaleAmount().Sign() == 0
}

func (s State) clone() State {
	out := s
	out.RaisedAmount = cloneInt(s.RaisedAmount)
	out.SaleCapAmount = cloneInt(s.SaleCapAmount)
	out.ExchangeRate = cloneInt(s.ExchangeRate)
	out.MaxCapPerUser = cloneInt(s.MaxCapPerUser)
	out.MinCapPerUser = cloneInt(s.MinCapPerUser)
	return out
}

func cloneInt(x *big.Int) *big.Int {
	if x == nil {
		return nil
	}
	return new(big.Int).Set(x)
}

func initialState() State {
	return State{
		Status:        StatusIdle,
		RaisedAmount:  new(big.Int),
		SaleCapAmount: new(big.Int),
		ExchangeRate:  new(big.Int),
		MaxCapPerUser: new(big.Int),
		MinCapPerUser: new(big.Int),
	}
}

type Config struct {
	Offering  offering.Offering
	Reader    SaleReader
	Executor  *batch.Executor
	BlockTime time.Duration
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
}

// Fetcher owns the State of one offering. Refreshes are tagged with a
// sequence number and only a completion newer than the last applied one
// replaces the state.
type Fetcher struct {
	exec      *batch.Executor
	blockTime time.Duration
	log       *zap.Logger
	metrics   *metrics.Metrics

	mu       sync.Mutex
	offering offering.Offering
	reader   SaleReader
	state    State
	seq      uint64
	applied  uint64
	height   uint64
	observed bool
	closed   bool
}

func NewFetcher(cfg Config) *Fetcher {
	exec := cfg.Executor
	if exec == nil {
		exec = batch.New(0)
	}
	bt := cfg.BlockTime
	if bt <= 0 {
		bt = DefaultBlockTime
	}
	return &Fetcher{
		exec:      exec,
		blockTime: bt,
		log:       logger.Named(cfg.Logger, "sale"),
		metrics:   cfg.Metrics,
		offering:  cfg.Offering,
		reader:    cfg.Reader,
		state:     initialState(),
	}
}

// Observe refreshes when height differs from the last observed height.
func (f *Fetcher) Observe(ctx context.Context, height uint64) (State, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return State{}, ErrClosed
	}
	if f.observed && f.height == height {
		st := f.state.clone()
		f.mu.Unlock()
		return st, nil
	}
	f.height = height
	f.observed = true
	f.mu.Unlock()

	f.metrics.BlockHeight(height)
	return f.Refresh(ctx, height)
}

// Refresh reads a full snapshot at height. On failure the previous state is
// kept and returned together with the error.
func (f *Fetcher) Refresh(ctx context.Context, height uint64) (State, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return State{}, ErrClosed
	}
	f.seq++
	seq := f.seq
	rd := f.reader
	id := f.offering.ID
	f.mu.Unlock()

	started := time.Now()
	next, err := f.read(ctx, rd, height)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return State{}, ErrClosed
	}
	if seq <= f.applied {
		// a newer refresh or an offering switch got there first
		f.metrics.Refresh("sale", metrics.ResultStale, 0)
		f.log.Debug("discarding stale sale snapshot", zap.String("offering", id), zap.Uint64("seq", seq), zap.Uint64("height", height))
		return f.state.clone(), nil
	}
	if err != nil {
		if seq == f.seq {
			f.observed = false
		}
		f.metrics.Refresh("sale", metrics.ResultError, time.Since(started))
		f.log.Warn("sale refresh failed, keeping previous snapshot",
			zap.String("offering", id), zap.Uint64("height", height), zap.Error(err))
		return f.state.clone(), fmt.Errorf("sale %s: refresh at block %d: %w", id, height, err)
	}

	f.applied = seq
	f.state = next
	f.metrics.Refresh("sale", metrics.ResultOK, time.Since(started))
	f.metrics.SaleProgress(next.Progress)
	f.log.Debug("sale snapshot applied",
		zap.String("offering", id),
		zap.Uint64("height", height),
		zap.String("status", next.Status.String()),
		zap.Float64("progress", next.Progress))
	return next.clone(), nil
}

func (f *Fetcher) read(ctx context.Context, rd SaleReader, height uint64) (State, error) {
	if rd == nil {
		return State{}, errors.New("no sale reader")
	}
	res, err := f.exec.Execute(ctx,
		func(ctx context.Context) (any, error) { return rd.StartBlock(ctx) },
		func(ctx context.Context) (any, error) { return rd.EndBlock(ctx) },
		func(ctx context.Context) (any, error) { return rd.RaisedAmount(ctx) },
		func(ctx context.Context) (any, error) { return rd.SaleCapAmount(ctx) },
		func(ctx context.Context) (any, error) { return rd.ExchangeRate(ctx) },
		func(ctx context.Context) (any, error) { return rd.MaxCapPerUser(ctx) },
		func(ctx context.Context) (any, error) { return rd.MinCapPerUser(ctx) },
	)
	if err != nil {
		return State{}, err
	}

	var st State
	if st.StartBlock, err = batch.Uint64(res, 0); err != nil {
		return State{}, err
	}
	if st.EndBlock, err = batch.Uint64(res, 1); err != nil {
		return State{}, err
	}
	bigs := []**big.Int{&st.RaisedAmount, &st.SaleCapAmount, &st.ExchangeRate, &st.MaxCapPerUser, &st.MinCapPerUser}
	for i, dst := range bigs {
		if *dst, err = batch.BigInt(res, i+2); err != nil {
			return State{}, err
		}
	}
	if st.EndBlock < st.StartBlock {
		return State{}, fmt.Errorf("end block %d before start block %d", st.EndBlock, st.StartBlock)
	}

	st.CurrentBlock = height
	st.Status = Resolve(height, st.StartBlock, st.EndBlock)
	st.Progress = Progress(height, st.StartBlock, st.EndBlock, st.RaisedAmount, st.SaleCapAmount)
	st.Timing = ComputeTiming(height, st.StartBlock, st.EndBlock, f.blockTime)
	return st.clone(), nil
}

// State returns a copy of the current snapshot.
func (f *Fetcher) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.clone()
}

// Offering returns the tracked offering.
func (f *Fetcher) Offering() offering.Offering {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.offering
}

// SetOffering switches to another offering. The state goes back to idle,
// refreshes in flight are dropped and the next Observe reads again.
func (f *Fetcher) SetOffering(o offering.Offering, rd SaleReader) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.offering = o
	f.reader = rd
	f.state = initialState()
	f.applied = f.seq
	f.observed = false
	f.log.Info("offering changed", zap.String("offering", o.ID), zap.String("address", o.Address.Hex()))
}

// Close stops every later completion from touching the state.
func (f *Fetcher) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}
