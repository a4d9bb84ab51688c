package entity

import "github.com/shopspring/decimal"

// StatusKind enumerates the derived states of a currency.
type StatusKind int

const (
	StatusLoading StatusKind = iota
	StatusMissedDerivation
	StatusUnreachable
	StatusNoAccount
	StatusLoaded
	StatusCustom
)

func (k StatusKind) String() string {
	switch k {
	case StatusLoading:
		return "loading"
	case StatusMissedDerivation:
		return "missed_derivation"
	case StatusUnreachable:
		return "unreachable"
	case StatusNoAccount:
		return "no_account"
	case StatusLoaded:
		return "loaded"
	case StatusCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// MarshalText renders the kind by name.
func (k StatusKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Status is the payload of a CryptoCurrencyStatus.
// FiatAmount, FiatRate and PriceChange are always set for Loaded and may be nil for Custom.
type Status struct {
	Kind           StatusKind       `json:"kind"`
	Amount         decimal.Decimal  `json:"amount"`
	FiatAmount     *decimal.Decimal `json:"fiatAmount,omitempty"`
	FiatRate       *decimal.Decimal `json:"fiatRate,omitempty"`
	PriceChange    *decimal.Decimal `json:"priceChange,omitempty"`
	HasPendingTx   bool             `json:"hasPendingTx"`
	YieldBalance   *YieldBalance    `json:"yieldBalance,omitempty"`
	NetworkAddress string           `json:"networkAddress,omitempty"`
}

// IsLoading reports whether the status is still waiting for data.
func (s Status) IsLoading() bool {
	return s.Kind == StatusLoading
}

// CryptoCurrencyStatus is the merged view of one currency. It is recomputed on
// every upstream emission and never stored.
type CryptoCurrencyStatus struct {
	Currency Currency `json:"currency"`
	Value    Status   `json:"status"`
}

// FiatAmountOrNil returns the fiat amount of the status, nil if it is unknown.
func (s CryptoCurrencyStatus) FiatAmountOrNil() *decimal.Decimal {
	switch s.Value.Kind {
	case StatusLoaded, StatusCustom:
		return s.Value.FiatAmount
	default:
		return nil
	}
}
