package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ligun0805/ifo-client/internal/ifocore"
	"github.com/ligun0805/ifo-client/internal/offering"
)

var offeringsCmd = &cobra.Command{
	Use:   "offerings",
	Short: "List the configured offerings",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cat, err := offering.Load(settings.OfferingsFile)
		if err != nil {
			return err
		}
		for _, o := range cat {
			printOffering(cmd.OutOrStdout(), o)
		}
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the public state of the sale",
	RunE: func(cmd *cobra.Command, _ []string) error {
		watch, _ := cmd.Flags().GetBool("watch")
		ctx := cmd.Context()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if !watch {
			st := a.syncSale(ctx)
			printSale(cmd.OutOrStdout(), a.offering, st)
			return nil
		}

		err = ifocore.WatchHeight(ctx, a.client, settings.PollInterval, a.log, func(ctx context.Context, h uint64) {
			st, err := a.fetcher.Observe(ctx, h)
			if err != nil {
				// stale snapshot stays on screen until the next block
				a.log.Debug("status refresh failed", zap.Uint64("height", h), zap.Error(err))
				return
			}
			printSale(cmd.OutOrStdout(), a.offering, st)
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	statusCmd.Flags().BoolP("watch", "w", false, "refresh on every new block until interrupted")
	rootCmd.AddCommand(offeringsCmd, statusCmd)
}
