package offering

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
offerings:
  - id: alpha
    address: "0x0d3BcFC73D86dd81443FFEd7f2D3D343d8C36e53"
    name: Alpha
    currency: BUSD
    currencyAddress: "0xe9e7CEA3DedcA5984780Bafc599bD69ADd087D56"
    tokenDecimals: 9
    tokenSymbol: ALP
    isActive: false
  - id: beta
    address: "0x1111111111111111111111111111111111111111"
    currency: USDT
    currencyAddress: "0x2222222222222222222222222222222222222222"
    currencyDecimals: 6
    tokenSymbol: BET
    isActive: true
`

func TestDefault(t *testing.T) {
	o, err := Default().Active()
	require.NoError(t, err)
	assert.Equal(t, "zinax", o.ID)
	assert.Equal(t, common.HexToAddress("0x0d3BcFC73D86dd81443FFEd7f2D3D343d8C36e53"), o.Address)
	assert.Equal(t, "BUSD", o.Currency)
	assert.Equal(t, int32(18), o.TokenDecimals)
	assert.Empty(t, o.Description)
}

func TestParse(t *testing.T) {
	c, err := Parse([]byte(sample))
	require.NoError(t, err)
	require.Len(t, c, 2)

	a, err := c.Lookup("ALPHA")
	require.NoError(t, err)
	assert.Equal(t, int32(9), a.TokenDecimals)
	assert.Equal(t, int32(18), a.CurrencyDecimals)

	b, err := c.Active()
	require.NoError(t, err)
	assert.Equal(t, "beta", b.ID)
	assert.Equal(t, int32(6), b.CurrencyDecimals)

	s, err := c.Select("")
	require.NoError(t, err)
	assert.Equal(t, "beta", s.ID)
}

func TestParse_Errors(t *testing.T) {
	tests := map[string]string{
		"empty":      "offerings: []",
		"bad yaml":   "offerings: [",
		"no id":      "offerings:\n  - address: \"0x1111111111111111111111111111111111111111\"\n    currencyAddress: \"0x1111111111111111111111111111111111111111\"",
		"bad addr":   "offerings:\n  - id: x\n    address: nope\n    currencyAddress: \"0x1111111111111111111111111111111111111111\"",
		"duplicates": "offerings:\n  - id: x\n    address: \"0x1111111111111111111111111111111111111111\"\n    currencyAddress: \"0x1111111111111111111111111111111111111111\"\n  - id: X\n    address: \"0x1111111111111111111111111111111111111111\"\n    currencyAddress: \"0x1111111111111111111111111111111111111111\"",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(in))
			assert.Error(t, err)
		})
	}
}

func TestLookup_NotFound(t *testing.T) {
	_, err := Default().Lookup("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoad(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), c)

	path := filepath.Join(t.TempDir(), "offerings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))
	c, err = Load(path)
	require.NoError(t, err)
	assert.Len(t, c, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
