package txflow

import (
	"math/big"

	"github.com/ligun0805/ifo-client/internal/sale"
	"github.com/ligun0805/ifo-client/internal/wallet"
)

// ContributionLimits are the bounds a deposit amount is checked against.
// The caps are in raising-currency smallest units. SaleRemaining is the
// distributed token still for sale; nil means unknown.
type ContributionLimits struct {
	MinCap        *big.Int
	MaxCap        *big.Int
	Committed     *big.Int
	SaleRemaining *big.Int
}

// LimitsFrom reads the current caps out of the sale and wallet snapshots.
func LimitsFrom(s sale.State, w wallet.State) ContributionLimits {
	l := ContributionLimits{
		MinCap:    s.MinCapPerUser,
		MaxCap:    s.MaxCapPerUser,
		Committed: w.Committed,
	}
	if s.SaleCapAmount != nil && s.SaleCapAmount.Sign() > 0 {
		l.SaleRemaining = s.RemainingSaleAmount()
	}
	return l
}

// Remaining is the user's remaining individual cap.
func (l ContributionLimits) Remaining() *big.Int {
	rem := new(big.Int)
	if l.MaxCap == nil {
		return rem
	}
	rem.Set(l.MaxCap)
	if l.Committed != nil {
		rem.Sub(rem, l.Committed)
	}
	if rem.Sign() < 0 {
		rem.SetInt64(0)
	}
	return rem
}

// ValidateContribution checks amount against l. The minimum cap is lowered
// to the remaining individual cap when less than the minimum is left, so a
// user can always fill the cap exactly.
func ValidateContribution(amount *big.Int, l ContributionLimits) error {
	if amount == nil {
		return &ValidationError{Reason: "not a number"}
	}
	if amount.Sign() <= 0 {
		return &ValidationError{Reason: "must be positive"}
	}
	if l.MaxCap == nil {
		return &ValidationError{Reason: "per-user cap unknown"}
	}
	if amount.Cmp(l.MaxCap) > 0 {
		return &ValidationError{Reason: "above the per-user maximum cap of " + l.MaxCap.String()}
	}
	remaining := l.Remaining()
	if amount.Cmp(remaining) > 0 {
		return &ValidationError{Reason: "above the remaining individual cap of " + remaining.String()}
	}
	minimum := new(big.Int)
	if l.MinCap != nil {
		minimum.Set(l.MinCap)
	}
	if remaining.Cmp(minimum) < 0 {
		minimum.Set(remaining)
	}
	if amount.Cmp(minimum) < 0 {
		return &ValidationError{Reason: "below the per-user minimum cap of " + minimum.String()}
	}
	// the contract settles partial fills; only a sold-out sale is refused
	if l.SaleRemaining != nil && l.SaleRemaining.Sign() <= 0 {
		return &ValidationError{Reason: "sale is sold out"}
	}
	return nil
}

// ValidateClaim rejects a claim when nothing is claimable.
func ValidateClaim(claimable *big.Int) error {
	if claimable == nil || claimable.Sign() <= 0 {
		return &ValidationError{Reason: "nothing to claim"}
	}
	return nil
}
