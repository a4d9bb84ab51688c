package operator

import (
	"testing"

	"currency_status/internal/domain/entity"

	"github.com/stretchr/testify/assert"
)

func TestTotalFiatBalance_LoadingShortCircuits(t *testing.T) {
	sets := [][]entity.CryptoCurrencyStatus{
		{statusOf(btc, entity.StatusLoading)},
		{loadedStatus(btc, "1", "100"), statusOf(usdt, entity.StatusLoading)},
		{statusOf(btc, entity.StatusUnreachable), statusOf(usdt, entity.StatusLoading)},
		{statusOf(btc, entity.StatusMissedDerivation), loadedStatus(eth, "1", "1"), statusOf(usdt, entity.StatusLoading)},
	}
	for _, set := range sets {
		assert.Equal(t, entity.TotalFiatBalanceLoading, TotalFiatBalance(set).Kind)
	}
}

func TestTotalFiatBalance_FailedWithoutLoading(t *testing.T) {
	sets := [][]entity.CryptoCurrencyStatus{
		{statusOf(btc, entity.StatusUnreachable)},
		{loadedStatus(btc, "1", "100"), statusOf(usdt, entity.StatusMissedDerivation)},
		{statusOf(btc, entity.StatusNoAccount), statusOf(usdt, entity.StatusUnreachable)},
	}
	for _, set := range sets {
		assert.Equal(t, entity.TotalFiatBalanceFailed, TotalFiatBalance(set).Kind)
	}
}

func TestTotalFiatBalance_Sum(t *testing.T) {
	total := TotalFiatBalance([]entity.CryptoCurrencyStatus{
		loadedStatus(btc, "0.5", "30000"),
		loadedStatus(usdt, "100", "100"),
	})
	assert.Equal(t, entity.TotalFiatBalanceLoaded, total.Kind)
	assertDecimal(t, "30100", total.Amount)
	assert.True(t, total.IsFullySummarized)
}

func TestTotalFiatBalance_PartialSummaries(t *testing.T) {
	noAccount := TotalFiatBalance([]entity.CryptoCurrencyStatus{
		loadedStatus(btc, "0.5", "30000"),
		statusOf(pol, entity.StatusNoAccount),
	})
	assert.Equal(t, entity.TotalFiatBalanceLoaded, noAccount.Kind)
	assertDecimal(t, "30000", noAccount.Amount)
	assert.False(t, noAccount.IsFullySummarized)

	customOnly := TotalFiatBalance([]entity.CryptoCurrencyStatus{{
		Currency: custom,
		Value:    entity.Status{Kind: entity.StatusCustom, Amount: dec("5")},
	}})
	assert.Equal(t, entity.TotalFiatBalanceLoaded, customOnly.Kind)
	assertDecimal(t, "0", customOnly.Amount)
	assert.False(t, customOnly.IsFullySummarized)

	pricedCustom := TotalFiatBalance([]entity.CryptoCurrencyStatus{{
		Currency: custom,
		Value:    entity.Status{Kind: entity.StatusCustom, Amount: dec("5"), FiatAmount: decPtr("10")},
	}})
	assertDecimal(t, "10", pricedCustom.Amount)
	assert.True(t, pricedCustom.IsFullySummarized)
}
