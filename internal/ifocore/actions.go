package ifocore

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Actions are the write operations of one account against one offering.
type Actions struct {
	ifo    *IFO
	sender *Sender
}

func NewActions(ifo *IFO, sender *Sender) *Actions {
	return &Actions{ifo: ifo, sender: sender}
}

func (a *Actions) Account() common.Address { return a.sender.From() }

// HasAllowance reports whether the sale contract may already pull the
// account's raising currency.
func (a *Actions) HasAllowance(ctx context.Context) (bool, error) {
	return a.ifo.HasAllowance(ctx, a.sender.From())
}

// ApproveRaising grants the sale contract an unlimited allowance.
func (a *Actions) ApproveRaising(ctx context.Context) error {
	data, err := EncodeApprove(a.ifo.Address(), MaxApproval)
	if err != nil {
		return err
	}
	_, err = a.sender.SendAndWait(ctx, a.ifo.Currency().Address(), data)
	return err
}

// Deposit commits amount of raising currency, crediting referrer.
func (a *Actions) Deposit(ctx context.Context, amount *big.Int, referrer common.Address) error {
	data, err := EncodeDeposit(amount, referrer)
	if err != nil {
		return err
	}
	_, err = a.sender.SendAndWait(ctx, a.ifo.Address(), data)
	return err
}

// Claim withdraws the claimable distributed token.
func (a *Actions) Claim(ctx context.Context) error {
	data, err := EncodeClaim()
	if err != nil {
		return err
	}
	_, err = a.sender.SendAndWait(ctx, a.ifo.Address(), data)
	return err
}
