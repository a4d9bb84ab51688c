package service

import (
	"testing"
	"time"

	"currency_status/internal/app/operator"
	"currency_status/internal/app/port"
	"currency_status/internal/app/port/porttest"
	"currency_status/internal/domain/entity"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testWallet entity.WalletID = "w1"

var (
	ethereum = entity.Network{ID: "ethereum", Name: "Ethereum", ChainID: 1, NativeSymbol: "ETH", Decimals: 18}
	bitcoin  = entity.Network{ID: "bitcoin", Name: "Bitcoin", NativeSymbol: "BTC", Decimals: 8}

	btc = entity.Currency{
		ID:       "w1/bitcoin/coin",
		Kind:     entity.CurrencyCoin,
		RawID:    "btc",
		Network:  bitcoin,
		Name:     "Bitcoin",
		Symbol:   "BTC",
		Decimals: 8,
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

type serviceFixture struct {
	currencies *porttest.CurrenciesSource
	networks   *porttest.NetworkStatusSource
	quotes     *porttest.QuoteSource
	staking    *porttest.StakingSource
	sorting    *porttest.SortingStore

	tokenList      port.TokenListService
	currencyStatus port.CurrencyStatusService
}

func newServiceFixture(currencies ...entity.Currency) *serviceFixture {
	f := &serviceFixture{
		currencies: &porttest.CurrenciesSource{
			Currencies: map[entity.WalletID][]entity.Currency{testWallet: currencies},
		},
		networks: &porttest.NetworkStatusSource{},
		quotes:   &porttest.QuoteSource{},
		staking:  &porttest.StakingSource{},
		sorting:  &porttest.SortingStore{},
	}
	logger := zap.NewNop()
	loader := NewCurrenciesLoader(f.currencies, logger)
	statuses := operator.NewCurrenciesStatusOperator(f.networks, f.quotes, f.staking, operator.NewMergeOperator(logger), 4, logger)
	builder := operator.NewTokenListBuilder(&porttest.NetworkProvider{Networks: []entity.Network{ethereum, bitcoin}}, logger)

	f.tokenList = NewTokenListService(loader, statuses, builder, f.networks, f.quotes, f.staking, f.sorting, logger)
	f.currencyStatus = NewCurrencyStatusService(loader, statuses, logger)
	return f
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s, got %s", want, got)
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
