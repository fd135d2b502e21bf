package txflow

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ligun0805/ifo-client/internal/sale"
	"github.com/ligun0805/ifo-client/internal/wallet"
)

func limits(minCap, maxCap, committed int64) ContributionLimits {
	return ContributionLimits{MinCap: big.NewInt(minCap), MaxCap: big.NewInt(maxCap), Committed: big.NewInt(committed)}
}

func TestValidateContribution(t *testing.T) {
	tests := []struct {
		name   string
		amount *big.Int
		lim    ContributionLimits
		ok     bool
	}{
		{"exact minimum", big.NewInt(10), limits(10, 100, 0), true},
		{"one below minimum", big.NewInt(9), limits(10, 100, 0), false},
		{"exact maximum", big.NewInt(100), limits(10, 100, 0), true},
		{"above maximum", big.NewInt(101), limits(10, 100, 0), false},
		{"above remaining below maximum", big.NewInt(60), limits(10, 100, 50), false},
		{"fills remaining", big.NewInt(50), limits(10, 100, 50), true},
		{"remaining below minimum, too much", big.NewInt(10), limits(10, 100, 95), false},
		{"remaining below minimum, exact fill", big.NewInt(5), limits(10, 100, 95), true},
		{"remaining below minimum, partial", big.NewInt(4), limits(10, 100, 95), false},
		{"cap exhausted", big.NewInt(1), limits(10, 100, 100), false},
		{"not a number", nil, limits(10, 100, 0), false},
		{"zero", big.NewInt(0), limits(0, 100, 0), false},
		{"negative", big.NewInt(-5), limits(0, 100, 0), false},
		{"unknown caps", big.NewInt(5), ContributionLimits{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateContribution(tt.amount, tt.lim)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			var ve *ValidationError
			assert.ErrorAs(t, err, &ve)
		})
	}
}

func TestValidateContribution_SoldOut(t *testing.T) {
	lim := limits(10, 100, 0)
	lim.SaleRemaining = big.NewInt(1)
	assert.NoError(t, ValidateContribution(big.NewInt(100), lim), "remaining tokens do not bound the amount")

	lim.SaleRemaining = big.NewInt(0)
	err := ValidateContribution(big.NewInt(10), lim)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Reason, "sold out")
}

// BSC sale contracts store tokenPerLPToken scaled by 1e18. A rate-derived
// upper bound would turn that into a few wei and refuse every deposit.
func TestLimitsFrom_ScaledRateDoesNotCapDeposit(t *testing.T) {
	e18 := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	saleCap := new(big.Int).Mul(big.NewInt(1_200_000), e18)
	rate, _ := new(big.Int).SetString("15873015873015873015", 10)
	s := sale.State{
		MinCapPerUser: new(big.Int).Set(e18),
		MaxCapPerUser: new(big.Int).Mul(big.NewInt(1000), e18),
		SaleCapAmount: saleCap,
		RaisedAmount:  new(big.Int),
		ExchangeRate:  rate,
	}
	amount := new(big.Int).Mul(big.NewInt(100), e18)
	assert.NoError(t, ValidateContribution(amount, LimitsFrom(s, wallet.State{Committed: new(big.Int)})))
}

func TestLimitsFrom(t *testing.T) {
	s := sale.State{
		MinCapPerUser: big.NewInt(10),
		MaxCapPerUser: big.NewInt(100),
		SaleCapAmount: big.NewInt(1000),
		RaisedAmount:  big.NewInt(400),
		ExchangeRate:  big.NewInt(4),
	}
	w := wallet.State{Committed: big.NewInt(95)}

	lim := LimitsFrom(s, w)
	require.NotNil(t, lim.SaleRemaining)
	assert.Equal(t, int64(600), lim.SaleRemaining.Int64())
	assert.Equal(t, int64(5), lim.Remaining().Int64())

	assert.Nil(t, LimitsFrom(sale.State{}, w).SaleRemaining, "cap not read yet")
}

func TestValidateClaim(t *testing.T) {
	assert.NoError(t, ValidateClaim(big.NewInt(1)))
	assert.Error(t, ValidateClaim(big.NewInt(0)))
	assert.Error(t, ValidateClaim(nil))
}
