// Package offering holds the immutable descriptors of the sales the client
// can track.
package offering

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// Offering is loaded once and shared read-only.
type Offering struct {
	ID               string
	Address          common.Address // IFO contract
	Name             string
	SubTitle         string
	Description      string
	LaunchDate       string
	LaunchTime       string
	SaleAmount       string
	RaiseAmount      string
	ProjectSiteURL   string
	Currency         string // raising currency symbol
	CurrencyAddress  common.Address
	CurrencyDecimals int32
	TokenDecimals    int32
	TokenSymbol      string
	CampaignID       string
	IsActive         bool
}

// Catalogue is an ordered list of offerings.
type Catalogue []Offering

var ErrNotFound = errors.New("offering not found")

// Default is the built-in catalogue.
func Default() Catalogue {
	return Catalogue{
		{
			ID:               "zinax",
			Address:          common.HexToAddress("0x0d3BcFC73D86dd81443FFEd7f2D3D343d8C36e53"),
			Name:             "Zinax (ZINAX)",
			SubTitle:         "Home of DeFi and NFTs",
			Description:      "",
			LaunchDate:       "Feb. 17",
			LaunchTime:       "12AM UTC",
			SaleAmount:       "1,200,000 ZINAX",
			RaiseAmount:      "$75,600",
			ProjectSiteURL:   "https://zinax.org/",
			Currency:         "BUSD",
			CurrencyAddress:  common.HexToAddress("0xe9e7CEA3DedcA5984780Bafc599bD69ADd087D56"),
			CurrencyDecimals: 18,
			TokenDecimals:    18,
			TokenSymbol:      "ZINAX",
			CampaignID:       "0",
			IsActive:         true,
		},
	}
}

// Lookup finds an offering by id, case-insensitively.
func (c Catalogue) Lookup(id string) (Offering, error) {
	id = strings.TrimSpace(id)
	for _, o := range c {
		if strings.EqualFold(o.ID, id) {
			return o, nil
		}
	}
	return Offering{}, fmt.Errorf("%w: %q", ErrNotFound, id)
}

// Active returns the first active offering.
func (c Catalogue) Active() (Offering, error) {
	for _, o := range c {
		if o.IsActive {
			return o, nil
		}
	}
	return Offering{}, fmt.Errorf("%w: no active offering", ErrNotFound)
}

// Select picks id when set, the active offering otherwise.
func (c Catalogue) Select(id string) (Offering, error) {
	if strings.TrimSpace(id) == "" {
		return c.Active()
	}
	return c.Lookup(id)
}

type fileOffering struct {
	ID               string `yaml:"id"`
	Address          string `yaml:"address"`
	Name             string `yaml:"name"`
	SubTitle         string `yaml:"subTitle"`
	Description      string `yaml:"description"`
	LaunchDate       string `yaml:"launchDate"`
	LaunchTime       string `yaml:"launchTime"`
	SaleAmount       string `yaml:"saleAmount"`
	RaiseAmount      string `yaml:"raiseAmount"`
	ProjectSiteURL   string `yaml:"projectSiteUrl"`
	Currency         string `yaml:"currency"`
	CurrencyAddress  string `yaml:"currencyAddress"`
	CurrencyDecimals *int32 `yaml:"currencyDecimals"`
	TokenDecimals    *int32 `yaml:"tokenDecimals"`
	TokenSymbol      string `yaml:"tokenSymbol"`
	CampaignID       string `yaml:"campaignId"`
	IsActive         bool   `yaml:"isActive"`
}

type fileCatalogue struct {
	Offerings []fileOffering `yaml:"offerings"`
}

// Parse decodes a YAML catalogue.
func Parse(data []byte) (Catalogue, error) {
	var fc fileCatalogue
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("offerings: decode: %w", err)
	}
	if len(fc.Offerings) == 0 {
		return nil, errors.New("offerings: empty catalogue")
	}
	seen := make(map[string]bool, len(fc.Offerings))
	out := make(Catalogue, 0, len(fc.Offerings))
	for i, fo := range fc.Offerings {
		o, err := fo.toOffering()
		if err != nil {
			return nil, fmt.Errorf("offerings[%d]: %w", i, err)
		}
		key := strings.ToLower(o.ID)
		if seen[key] {
			return nil, fmt.Errorf("offerings[%d]: duplicate id %q", i, o.ID)
		}
		seen[key] = true
		out = append(out, o)
	}
	return out, nil
}

// Load reads a YAML catalogue from path. An empty path yields Default().
func Load(path string) (Catalogue, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("offerings: %w", err)
	}
	return Parse(data)
}

func (fo fileOffering) toOffering() (Offering, error) {
	if strings.TrimSpace(fo.ID) == "" {
		return Offering{}, errors.New("missing id")
	}
	if !common.IsHexAddress(fo.Address) {
		return Offering{}, fmt.Errorf("bad address %q", fo.Address)
	}
	if !common.IsHexAddress(fo.CurrencyAddress) {
		return Offering{}, fmt.Errorf("bad currencyAddress %q", fo.CurrencyAddress)
	}
	o := Offering{
		ID:               strings.TrimSpace(fo.ID),
		Address:          common.HexToAddress(fo.Address),
		Name:             fo.Name,
		SubTitle:         fo.SubTitle,
		Description:      fo.Description,
		LaunchDate:       fo.LaunchDate,
		LaunchTime:       fo.LaunchTime,
		SaleAmount:       fo.SaleAmount,
		RaiseAmount:      fo.RaiseAmount,
		ProjectSiteURL:   fo.ProjectSiteURL,
		Currency:         fo.Currency,
		CurrencyAddress:  common.HexToAddress(fo.CurrencyAddress),
		CurrencyDecimals: 18,
		TokenDecimals:    18,
		TokenSymbol:      fo.TokenSymbol,
		CampaignID:       fo.CampaignID,
		IsActive:         fo.IsActive,
	}
	if fo.CurrencyDecimals != nil {
		o.CurrencyDecimals = *fo.CurrencyDecimals
	}
	if fo.TokenDecimals != nil {
		o.TokenDecimals = *fo.TokenDecimals
	}
	if o.CurrencyDecimals < 0 || o.CurrencyDecimals > 36 || o.TokenDecimals < 0 || o.TokenDecimals > 36 {
		return Offering{}, fmt.Errorf("decimals out of range for %q", o.ID)
	}
	return o, nil
}
