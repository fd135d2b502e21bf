package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ligun0805/ifo-client/internal/referrer"
)

var referrerCmd = &cobra.Command{
	Use:   "referrer",
	Short: "Show or change the referrer credited on deposits",
	RunE: func(cmd *cobra.Command, _ []string) error {
		s := referrer.NewStore(settings.ReferrerFile)
		r := s.Get()
		if r == referrer.None {
			fmt.Fprintln(cmd.OutOrStdout(), "no referrer")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), r.Hex())
		return nil
	},
}

var referrerSetCmd = &cobra.Command{
	Use:   "set <address>",
	Short: "Store a referrer address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s := referrer.NewStore(settings.ReferrerFile)
		if err := s.Set(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "referrer saved to %s\n", s.Path())
		return nil
	},
}

var referrerClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget the stored referrer",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return referrer.NewStore(settings.ReferrerFile).Set("")
	},
}

func init() {
	referrerCmd.AddCommand(referrerSetCmd, referrerClearCmd)
	rootCmd.AddCommand(referrerCmd)
}
