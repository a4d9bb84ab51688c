package entity

import "strings"

// CurrencyID is unique per wallet + network + contract.
type CurrencyID string

// CurrencyKind distinguishes a network's native coin from a contract token.
type CurrencyKind int

const (
	// CurrencyCoin is the native coin of a network.
	CurrencyCoin CurrencyKind = iota
	// CurrencyToken is a contract token living on a network.
	CurrencyToken
)

func (k CurrencyKind) String() string {
	if k == CurrencyToken {
		return "token"
	}
	return "coin"
}

func (k CurrencyKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Currency is a coin or token trackable within a wallet.
type Currency struct {
	ID   CurrencyID   `json:"id" yaml:"id"`
	Kind CurrencyKind `json:"kind" yaml:"-"`
	// RawID is the market identifier used to look up quotes. Empty for unlisted tokens.
	RawID              string  `json:"rawId,omitempty" yaml:"rawId"`
	ContractAddress    string  `json:"contractAddress,omitempty" yaml:"contractAddress"`
	Decimals           uint8   `json:"decimals" yaml:"decimals"`
	Network            Network `json:"network" yaml:"-"`
	Name               string  `json:"name" yaml:"name"`
	Symbol             string  `json:"symbol" yaml:"symbol"`
	IconURL            string  `json:"iconUrl,omitempty" yaml:"iconUrl"`
	IsCustom           bool    `json:"isCustom" yaml:"custom"`
	IsStakingSupported bool    `json:"isStakingSupported" yaml:"staking"`
}

// NewCurrencyID builds the identifier of a currency held by a wallet.
func NewCurrencyID(walletID WalletID, networkID NetworkID, contractAddress string) CurrencyID {
	contract := strings.ToLower(contractAddress)
	if contract == "" || contract == ZeroAddress {
		contract = "coin"
	}
	return CurrencyID(string(walletID) + "/" + string(networkID) + "/" + contract)
}
