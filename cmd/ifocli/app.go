package main

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/ligun0805/ifo-client/internal/batch"
	"github.com/ligun0805/ifo-client/internal/ifocore"
	"github.com/ligun0805/ifo-client/internal/logger"
	"github.com/ligun0805/ifo-client/internal/metrics"
	"github.com/ligun0805/ifo-client/internal/offering"
	"github.com/ligun0805/ifo-client/internal/referrer"
	"github.com/ligun0805/ifo-client/internal/sale"
	"github.com/ligun0805/ifo-client/internal/wallet"
)

// app holds the wired components for one command run.
type app struct {
	client    *ethclient.Client
	offering  offering.Offering
	ifo       *ifocore.IFO
	fetcher   *sale.Fetcher
	tracker   *wallet.Tracker
	referrers *referrer.Store
	metrics   *metrics.Metrics
	log       *zap.Logger

	sender  *ifocore.Sender
	actions *ifocore.Actions
}

var sharedMetrics *metrics.Metrics

func newApp(ctx context.Context) (*app, error) {
	cat, err := offering.Load(settings.OfferingsFile)
	if err != nil {
		return nil, err
	}
	o, err := cat.Select(settings.OfferingID)
	if err != nil {
		return nil, err
	}
	client, err := ethclient.DialContext(ctx, settings.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", settings.RPCURL, err)
	}
	if sharedMetrics == nil {
		sharedMetrics = metrics.New(registry)
	}

	log := logger.Named(nil, "ifocli").With(zap.String("offering", o.ID))
	exec := batch.New(settings.BatchConcurrency)
	ifo := ifocore.NewIFO(ifocore.LimitCaller(client, settings.RPCRate, settings.BatchConcurrency), o)
	return &app{
		client:   client,
		offering: o,
		ifo:      ifo,
		fetcher: sale.NewFetcher(sale.Config{
			Offering:  o,
			Reader:    ifo,
			Executor:  exec,
			BlockTime: settings.BlockTime,
			Metrics:   sharedMetrics,
		}),
		tracker: wallet.NewTracker(wallet.Config{
			Reader:    ifo,
			Allowance: ifo,
			Executor:  exec,
			Metrics:   sharedMetrics,
		}),
		referrers: referrer.NewStore(settings.ReferrerFile),
		metrics:   sharedMetrics,
		log:       log,
	}, nil
}

// withSigner loads the account key and prepares the write path.
func (a *app) withSigner(ctx context.Context) error {
	pk := settings.PrivateKeyHex
	if pk == "" {
		pk = readPassword("Private key (hex): ")
	}
	chainID, err := settings.ChainIDBig()
	if err != nil {
		return err
	}
	if chainID == nil {
		if chainID, err = a.client.ChainID(ctx); err != nil {
			return fmt.Errorf("chain id: %w", err)
		}
	}
	s, err := ifocore.NewSenderFromHex(a.client, pk, ifocore.SenderConfig{
		ChainID:    chainID,
		TipGwei:    settings.TipGwei,
		BaseFeeMul: settings.BaseFeeMul,
		BufferPct:  settings.BufferPct,
		PollEvery:  settings.PollInterval,
	})
	if err != nil {
		return err
	}
	a.sender = s
	a.actions = ifocore.NewActions(a.ifo, s)
	a.log.Info("signer ready", zap.String("account", s.From().Hex()), zap.String("key", maskHex(pk)))
	return nil
}

// checkDecimals warns when the catalogue disagrees with the currency
// contract about decimals. Amounts would be off by powers of ten.
func (a *app) checkDecimals(ctx context.Context) {
	d, err := a.ifo.Currency().Decimals(ctx)
	if err != nil {
		a.log.Debug("currency decimals read failed", zap.Error(err))
		return
	}
	if int32(d) != a.offering.CurrencyDecimals {
		a.log.Warn("currency decimals mismatch",
			zap.Uint8("chain", d), zap.Int32("catalogue", a.offering.CurrencyDecimals))
	}
}

// syncSale reads the chain head and refreshes the sale snapshot. Read
// failures leave the previous snapshot in place and are only logged.
func (a *app) syncSale(ctx context.Context) sale.State {
	height, err := a.client.BlockNumber(ctx)
	if err != nil {
		a.log.Warn("block height read failed", zap.Error(err))
		return a.fetcher.State()
	}
	st, _ := a.fetcher.Observe(ctx, height)
	return st
}

// sync is syncSale plus a wallet refresh when an account is set.
func (a *app) sync(ctx context.Context) (sale.State, wallet.State) {
	st := a.syncSale(ctx)
	ws := a.tracker.State()
	if ws.Account != (common.Address{}) {
		ws, _ = a.tracker.Refresh(ctx)
	}
	return st, ws
}

func (a *app) Close() {
	a.fetcher.Close()
	a.tracker.Close()
	a.client.Close()
}
