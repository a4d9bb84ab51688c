package entity

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Quote holds the fiat rate and 24h price change of a listed currency.
type Quote struct {
	RawID       string          `json:"rawId"`
	FiatRate    decimal.Decimal `json:"fiatRate"`
	PriceChange decimal.Decimal `json:"priceChange"`
}

// YieldBalance is a staking position of a currency.
type YieldBalance struct {
	CurrencyID CurrencyID      `json:"currencyId"`
	Staked     decimal.Decimal `json:"staked"`
	Rewards    decimal.Decimal `json:"rewards"`
	Validator  string          `json:"validator,omitempty"`
	IsActive   bool            `json:"isActive"`
}

// MarketRawID builds the quote identifier of a currency listed on a DEX market:
// `<dexChainID>:<tokenAddress>`. Coins are quoted through the wrapped native token.
// The result is empty when the network has no market or the coin no wrapped token.
func MarketRawID(network Network, contractAddress string) string {
	if network.DEXScreenerChainID == "" {
		return ""
	}
	address := contractAddress
	if address == "" || address == ZeroAddress {
		address = network.WrappedNativeTokenAddress
	}
	if address == "" {
		return ""
	}
	return NormalizeRawID(network.DEXScreenerChainID + ":" + address)
}

// NormalizeRawID returns the canonical form of a quote identifier. Quotes are
// stored and matched by it, so ids differing only in case name one quote.
func NormalizeRawID(rawID string) string {
	return strings.ToLower(strings.TrimSpace(rawID))
}
