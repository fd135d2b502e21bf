package main

import (
	"fmt"
	"io"
	"time"

	"github.com/ligun0805/ifo-client/internal/offering"
	"github.com/ligun0805/ifo-client/internal/sale"
	"github.com/ligun0805/ifo-client/internal/units"
	"github.com/ligun0805/ifo-client/internal/wallet"
)

func printOffering(w io.Writer, o offering.Offering) {
	active := ""
	if o.IsActive {
		active = " (active)"
	}
	fmt.Fprintf(w, "%s%s\n", o.ID, active)
	fmt.Fprintf(w, "  name:      %s - %s\n", o.Name, o.SubTitle)
	fmt.Fprintf(w, "  contract:  %s\n", o.Address.Hex())
	fmt.Fprintf(w, "  raise:     %s in %s (%s)\n", o.RaiseAmount, o.Currency, o.CurrencyAddress.Hex())
	fmt.Fprintf(w, "  sale:      %s\n", o.SaleAmount)
	fmt.Fprintf(w, "  launch:    %s %s\n", o.LaunchDate, o.LaunchTime)
	fmt.Fprintf(w, "  site:      %s\n", o.ProjectSiteURL)
}

func countdown(secs int64) string {
	if secs <= 0 {
		return "-"
	}
	return (time.Duration(secs) * time.Second).String()
}

func printSale(w io.Writer, o offering.Offering, st sale.State) {
	fmt.Fprintf(w, "%s @ block %d: %s\n", o.ID, st.CurrentBlock, st.Status)
	if st.Status == sale.StatusIdle {
		return
	}
	fmt.Fprintf(w, "  window:     %d .. %d\n", st.StartBlock, st.EndBlock)
	switch st.Status {
	case sale.StatusComingSoon:
		fmt.Fprintf(w, "  starts in:  %s\n", countdown(st.SecondsUntilStart))
	case sale.StatusLive:
		fmt.Fprintf(w, "  ends in:    %s (%d blocks)\n", countdown(st.SecondsUntilEnd), st.BlocksRemaining)
	}
	fmt.Fprintf(w, "  progress:   %.2f%%\n", st.Progress)
	fmt.Fprintf(w, "  sold:       %s / %s %s\n",
		units.Fixed(st.RaisedAmount, o.TokenDecimals, 2), units.Fixed(st.SaleCapAmount, o.TokenDecimals, 2), o.TokenSymbol)
	if st.SoldOut() {
		fmt.Fprintln(w, "  rest cap:   sold out")
	} else {
		fmt.Fprintf(w, "  rest cap:   %s %s\n", units.Fixed(st.RemainingSaleAmount(), o.TokenDecimals, 2), o.TokenSymbol)
	}
	fmt.Fprintf(w, "  user caps:  min %s / max %s %s\n",
		units.FromSmallest(st.MinCapPerUser, o.CurrencyDecimals), units.FromSmallest(st.MaxCapPerUser, o.CurrencyDecimals), o.Currency)
}

func printWallet(w io.Writer, o offering.Offering, st sale.State, ws wallet.State) {
	fmt.Fprintf(w, "account %s\n", ws.Account.Hex())
	if !ws.Loaded {
		fmt.Fprintln(w, "  (not loaded)")
		return
	}
	fmt.Fprintf(w, "  whitelisted:    %t\n", ws.Whitelisted)
	fmt.Fprintf(w, "  contributed:    %s %s\n", units.FromSmallest(ws.Committed, o.CurrencyDecimals), o.Currency)
	fmt.Fprintf(w, "  remaining cap:  %s %s\n", units.FromSmallest(ws.RemainingCap(st.MaxCapPerUser), o.CurrencyDecimals), o.Currency)
	if !ws.DidContribute() {
		return
	}
	fmt.Fprintf(w, "  purchased:      %s %s\n", units.FromSmallest(ws.Allocated, o.TokenDecimals), o.TokenSymbol)
	fmt.Fprintf(w, "  claimed:        %s %s (%.2f%%)\n", units.FromSmallest(ws.Claimed, o.TokenDecimals), o.TokenSymbol, ws.ClaimedPercent())
	fmt.Fprintf(w, "  claimable:      %s %s\n", units.FromSmallest(ws.Claimable, o.TokenDecimals), o.TokenSymbol)
}
