package operator

import (
	"testing"
	"time"

	"currency_status/internal/domain/entity"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWallet entity.WalletID = "w1"

var (
	ethereum = entity.Network{ID: "ethereum", Name: "Ethereum", ChainID: 1, NativeSymbol: "ETH", Decimals: 18}
	bitcoin  = entity.Network{ID: "bitcoin", Name: "Bitcoin", NativeSymbol: "BTC", Decimals: 8}
	polygon  = entity.Network{ID: "polygon", Name: "Polygon", ChainID: 137, NativeSymbol: "POL", Decimals: 18}

	btc = entity.Currency{
		ID:       "w1/bitcoin/coin",
		Kind:     entity.CurrencyCoin,
		RawID:    "btc",
		Network:  bitcoin,
		Name:     "Bitcoin",
		Symbol:   "BTC",
		Decimals: 8,
	}
	eth = entity.Currency{
		ID:                 "w1/ethereum/coin",
		Kind:               entity.CurrencyCoin,
		RawID:              "eth",
		Network:            ethereum,
		Name:               "Ethereum",
		Symbol:             "ETH",
		Decimals:           18,
		IsStakingSupported: true,
	}
	usdt = entity.Currency{
		ID:              "w1/ethereum/0xdac17f958d2ee523a2206206994597c13d831ec7",
		Kind:            entity.CurrencyToken,
		RawID:           "usdt",
		ContractAddress: "0xdAC17F958D2ee523a2206206994597C13D831ec7",
		Network:         ethereum,
		Name:            "Tether USD",
		Symbol:          "USDT",
		Decimals:        6,
	}
	pol = entity.Currency{
		ID:       "w1/polygon/coin",
		Kind:     entity.CurrencyCoin,
		RawID:    "pol",
		Network:  polygon,
		Name:     "Polygon",
		Symbol:   "POL",
		Decimals: 18,
	}
	custom = entity.Currency{
		ID:              "w1/ethereum/0x1111111111111111111111111111111111111111",
		Kind:            entity.CurrencyToken,
		ContractAddress: "0x1111111111111111111111111111111111111111",
		Network:         ethereum,
		Name:            "My Token",
		Symbol:          "MINE",
		Decimals:        18,
		IsCustom:        true,
	}
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

func loadedStatus(c entity.Currency, amount, fiat string) entity.CryptoCurrencyStatus {
	return entity.CryptoCurrencyStatus{
		Currency: c,
		Value: entity.Status{
			Kind:       entity.StatusLoaded,
			Amount:     dec(amount),
			FiatAmount: decPtr(fiat),
			FiatRate:   decPtr("1"),
		},
	}
}

func statusOf(c entity.Currency, kind entity.StatusKind) entity.CryptoCurrencyStatus {
	return entity.CryptoCurrencyStatus{Currency: c, Value: entity.Status{Kind: kind}}
}

func symbols(statuses []entity.CryptoCurrencyStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = s.Currency.Symbol
	}
	return out
}

func verified(network entity.Network, amounts map[entity.CurrencyID]string) entity.NetworkStatus {
	parsed := make(map[entity.CurrencyID]decimal.Decimal, len(amounts))
	for id, a := range amounts {
		parsed[id] = dec(a)
	}
	return entity.VerifiedNetworkStatus(network, "0xabc", parsed, false)
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed unexpectedly")
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for emission")
	}
	var zero T
	return zero
}

func assertSilent[T any](t *testing.T, ch <-chan T) {
	t.Helper()
	select {
	case v, ok := <-ch:
		if ok {
			t.Fatalf("unexpected emission: %v", v)
		}
	case <-time.After(50 * time.Millisecond):
	}
}
