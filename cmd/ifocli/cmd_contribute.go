package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/spf13/cobra"

	"github.com/ligun0805/ifo-client/internal/sale"
	"github.com/ligun0805/ifo-client/internal/txflow"
	"github.com/ligun0805/ifo-client/internal/units"
)

var errAborted = errors.New("aborted")

var contributeCmd = &cobra.Command{
	Use:   "contribute",
	Short: "Approve the raising currency and deposit into the sale",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		amountStr, _ := cmd.Flags().GetString("amount")
		assumeYes, _ := cmd.Flags().GetBool("yes")

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.withSigner(ctx); err != nil {
			return err
		}
		if _, err := a.tracker.SetAccount(ctx, a.sender.From()); err != nil {
			return err
		}
		st := a.syncSale(ctx)
		printSale(out, a.offering, st)
		printWallet(out, a.offering, st, a.tracker.State())

		amount, err := units.ToSmallest(amountStr, a.offering.CurrencyDecimals)
		if err != nil {
			return &txflow.ValidationError{Reason: err.Error()}
		}
		validate := func(amt *big.Int) error {
			if a.tracker.IsPendingTx() {
				return &txflow.ValidationError{Reason: "another transaction is pending"}
			}
			st := a.fetcher.State()
			if st.Status != sale.StatusLive {
				return &txflow.ValidationError{Reason: "sale is " + st.Status.String()}
			}
			return txflow.ValidateContribution(amt, txflow.LimitsFrom(st, a.tracker.State()))
		}
		// fail before paying for an approval that could not be used
		if err := validate(amount); err != nil {
			return err
		}
		a.checkDecimals(ctx)
		if bal, err := a.ifo.Currency().BalanceOf(ctx, a.sender.From()); err == nil && bal.Cmp(amount) < 0 {
			return &txflow.ValidationError{Reason: fmt.Sprintf("balance is %s %s",
				units.FromSmallest(bal, a.offering.CurrencyDecimals), a.offering.Currency)}
		}

		o := txflow.New(txflow.Config{
			Kind:           txflow.KindContribute,
			CheckAllowance: a.actions.HasAllowance,
			Approve:        a.actions.ApproveRaising,
			Confirm: func(ctx context.Context, amt *big.Int) error {
				return a.actions.Deposit(ctx, amt, a.referrers.Get())
			},
			Validate:   validate,
			OnSuccess:  a.tracker.RecordContribution,
			SetPending: a.tracker.SetPendingTx,
			Timeout:    settings.TxTimeout,
			Logger:     a.log,
			Metrics:    a.metrics,
		})
		defer o.Close()

		if !ask(fmt.Sprintf("Allow %s to spend your %s if not approved yet?", a.offering.Address.Hex(), a.offering.Currency), assumeYes) {
			return errAborted
		}
		if err := approve(ctx, out, o); err != nil {
			return err
		}

		label := fmt.Sprintf("%s %s", units.FromSmallest(amount, a.offering.CurrencyDecimals), a.offering.Currency)
		prompt := "Contribute " + label + " to " + a.offering.Name + "?"
		for {
			// caps may have moved since approval
			a.sync(ctx)
			if err := o.CanConfirm(amount); err != nil {
				return err
			}
			if !ask(prompt, assumeYes) {
				return errAborted
			}
			err := o.Confirm(ctx, amount)
			if err == nil {
				break
			}
			var ve *txflow.ValidationError
			if errors.As(err, &ve) {
				return err
			}
			fmt.Fprintf(out, "contribution failed: %v\n", err)
			o.Reset()
			prompt = "Retry contributing " + label + "?"
			assumeYes = false
		}

		fmt.Fprintf(out, "contributed %s\n", label)
		ws, err := a.tracker.Refresh(ctx)
		if err != nil {
			fmt.Fprintln(out, "(wallet shown with the local update; chain refresh failed)")
		}
		printWallet(out, a.offering, a.fetcher.State(), ws)
		return nil
	},
}

// approve runs the approval step, offering a retry after each failure.
func approve(ctx context.Context, out io.Writer, o *txflow.Orchestrator) error {
	for {
		err := o.Approve(ctx)
		if err == nil {
			fmt.Fprintln(out, "approved")
			return nil
		}
		fmt.Fprintf(out, "approval failed: %v\n", err)
		o.Reset()
		if !ask("Retry approval?", false) {
			return err
		}
	}
}

func init() {
	contributeCmd.Flags().StringP("amount", "a", "", "amount of raising currency, e.g. 12.5")
	contributeCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
	_ = contributeCmd.MarkFlagRequired("amount")
	rootCmd.AddCommand(contributeCmd)
}
