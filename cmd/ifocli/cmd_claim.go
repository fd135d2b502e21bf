package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ligun0805/ifo-client/internal/txflow"
	"github.com/ligun0805/ifo-client/internal/units"
)

var claimCmd = &cobra.Command{
	Use:   "claim",
	Short: "Claim the purchased tokens that are claimable now",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		assumeYes, _ := cmd.Flags().GetBool("yes")

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.withSigner(ctx); err != nil {
			return err
		}
		ws, err := a.tracker.SetAccount(ctx, a.sender.From())
		if err != nil {
			return err
		}
		printWallet(out, a.offering, a.syncSale(ctx), ws)

		validate := func(*big.Int) error {
			if a.tracker.IsPendingTx() {
				return &txflow.ValidationError{Reason: "another transaction is pending"}
			}
			ws := a.tracker.State()
			switch {
			case ws.CanClaim():
				return nil
			case !ws.DidContribute():
				return &txflow.ValidationError{Reason: "account did not take part in this sale"}
			case ws.ClaimRecorded:
				return &txflow.ValidationError{Reason: "already claimed"}
			}
			return txflow.ValidateClaim(ws.Claimable)
		}
		if err := validate(nil); err != nil {
			return err
		}

		o := txflow.New(txflow.Config{
			Kind:       txflow.KindClaim,
			Confirm:    func(ctx context.Context, _ *big.Int) error { return a.actions.Claim(ctx) },
			Validate:   validate,
			OnSuccess:  func(*big.Int) { a.tracker.RecordClaim() },
			SetPending: a.tracker.SetPendingTx,
			Timeout:    settings.TxTimeout,
			Logger:     a.log,
			Metrics:    a.metrics,
		})
		defer o.Close()
		if err := o.Approve(ctx); err != nil {
			return err
		}

		label := units.FromSmallest(ws.Claimable, a.offering.TokenDecimals) + " " + a.offering.TokenSymbol
		prompt := "Claim " + label + "?"
		for {
			if _, err := a.tracker.Refresh(ctx); err != nil {
				a.log.Debug("wallet refresh before claim failed", zap.Error(err))
			}
			if err := o.CanConfirm(nil); err != nil {
				return err
			}
			if !ask(prompt, assumeYes) {
				return errAborted
			}
			err := o.Confirm(ctx, nil)
			if err == nil {
				break
			}
			var ve *txflow.ValidationError
			if errors.As(err, &ve) {
				return err
			}
			fmt.Fprintf(out, "claim failed: %v\n", err)
			o.Reset()
			prompt = "Retry claim?"
			assumeYes = false
		}

		fmt.Fprintf(out, "claimed %s\n", label)
		ws, _ = a.tracker.Refresh(ctx)
		printWallet(out, a.offering, a.fetcher.State(), ws)
		return nil
	},
}

func init() {
	claimCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
	rootCmd.AddCommand(claimCmd)
}
