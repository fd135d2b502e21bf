package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ligun0805/ifo-client/internal/units"
)

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Show contribution and claim state of an account",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		accountHex, _ := cmd.Flags().GetString("account")

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		var account common.Address
		switch {
		case accountHex != "":
			if !common.IsHexAddress(accountHex) {
				return fmt.Errorf("bad --account %q", accountHex)
			}
			account = common.HexToAddress(accountHex)
		default:
			if err := a.withSigner(ctx); err != nil {
				return err
			}
			account = a.sender.From()
		}

		ws, err := a.tracker.SetAccount(ctx, account)
		if err != nil {
			return err
		}
		st := a.syncSale(ctx)
		allowance, err := a.tracker.RefreshAllowance(ctx)
		if err != nil {
			a.log.Warn("allowance unavailable", zap.Error(err))
		}
		a.checkDecimals(ctx)
		balance, err := a.ifo.Currency().BalanceOf(ctx, account)
		if err != nil {
			a.log.Warn("balance unavailable", zap.Error(err))
		}

		out := cmd.OutOrStdout()
		printWallet(out, a.offering, st, ws)
		approved := "no"
		if allowance.Sign() > 0 {
			approved = "yes (" + units.FromSmallest(allowance, a.offering.CurrencyDecimals) + " " + a.offering.Currency + ")"
		}
		fmt.Fprintf(out, "  approved:       %s\n", approved)
		if balance != nil {
			fmt.Fprintf(out, "  balance:        %s %s\n", units.FromSmallest(balance, a.offering.CurrencyDecimals), a.offering.Currency)
		}
		return nil
	},
}

func init() {
	walletCmd.Flags().String("account", "", "account to inspect (default: the PRIVATE_KEY account)")
	rootCmd.AddCommand(walletCmd)
}
