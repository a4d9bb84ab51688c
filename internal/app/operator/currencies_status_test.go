package operator

import (
	"context"
	"errors"
	"testing"
	"time"

	"currency_status/internal/app/port/porttest"
	"currency_status/internal/domain/entity"
	"currency_status/internal/pkg/flow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type aggregationFixture struct {
	networks *porttest.NetworkStatusSource
	quotes   *porttest.QuoteSource
	staking  *porttest.StakingSource
	op       *CurrenciesStatusOperator
}

func newAggregationFixture() *aggregationFixture {
	f := &aggregationFixture{
		networks: &porttest.NetworkStatusSource{},
		quotes:   &porttest.QuoteSource{},
		staking:  &porttest.StakingSource{},
	}
	f.op = NewCurrenciesStatusOperator(f.networks, f.quotes, f.staking, NewMergeOperator(zap.NewNop()), 4, zap.NewNop())
	return f
}

func TestCurrenciesStatus_EmptyCurrencies(t *testing.T) {
	f := newAggregationFixture()

	_, err := f.op.Subscribe(context.Background(), testWallet, nil)
	assert.ErrorIs(t, err, entity.ErrEmptyCurrencies)
	assert.Zero(t, f.networks.Subscribes())
}

func TestCurrenciesStatus_MergesLatestValues(t *testing.T) {
	f := newAggregationFixture()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out, err := f.op.Subscribe(ctx, testWallet, []entity.Currency{btc, usdt})
	require.NoError(t, err)

	f.networks.Feed.Emit(flow.Ok([]entity.NetworkStatus{
		verified(ethereum, map[entity.CurrencyID]string{usdt.ID: "100"}),
		verified(bitcoin, map[entity.CurrencyID]string{btc.ID: "0.5"}),
	}))
	assertSilent(t, out)

	f.quotes.Feed.Emit(flow.Ok([]entity.Quote{
		{RawID: "btc", FiatRate: dec("60000")},
		{RawID: "usdt", FiatRate: dec("1")},
	}))
	emission := receive(t, out)
	require.Len(t, emission, 2)
	for _, r := range emission {
		require.NoError(t, r.Err)
		assert.Equal(t, entity.StatusLoaded, r.Value.Value.Kind)
	}
	assert.Equal(t, btc.ID, emission[0].Value.Currency.ID)
	assertDecimal(t, "30000", *emission[0].Value.Value.FiatAmount)
	assertDecimal(t, "100", *emission[1].Value.Value.FiatAmount)

	f.quotes.Feed.Emit(flow.Ok([]entity.Quote{
		{RawID: "btc", FiatRate: dec("70000")},
		{RawID: "usdt", FiatRate: dec("1")},
	}))
	emission = receive(t, out)
	assertDecimal(t, "35000", *emission[0].Value.Value.FiatAmount)

	assert.Equal(t, 1, f.networks.Subscribes(), "networks are subscribed once for all currencies")
	assert.Equal(t, 1, f.quotes.Subscribes(), "quotes are subscribed once as a batch")
}

func TestCurrenciesStatus_MissingNetworkStatusIsLoading(t *testing.T) {
	f := newAggregationFixture()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out, err := f.op.Subscribe(ctx, testWallet, []entity.Currency{btc, usdt})
	require.NoError(t, err)

	f.networks.Feed.Emit(flow.Ok([]entity.NetworkStatus{
		verified(bitcoin, map[entity.CurrencyID]string{btc.ID: "0.5"}),
	}))
	f.quotes.Feed.Emit(flow.Ok([]entity.Quote{{RawID: "btc", FiatRate: dec("60000")}}))

	emission := receive(t, out)
	require.Len(t, emission, 2)
	assert.Equal(t, entity.StatusLoaded, emission[0].Value.Value.Kind)
	assert.Equal(t, entity.StatusLoading, emission[1].Value.Value.Kind)
}

func TestCurrenciesStatus_NetworkErrorFailsEveryCurrency(t *testing.T) {
	f := newAggregationFixture()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out, err := f.op.Subscribe(ctx, testWallet, []entity.Currency{btc, custom})
	require.NoError(t, err)

	f.networks.Feed.Emit(flow.Fail[[]entity.NetworkStatus](errors.New("node unavailable")))
	f.quotes.Feed.Emit(flow.Ok([]entity.Quote{{RawID: "btc", FiatRate: dec("60000")}}))

	emission := receive(t, out)
	for _, r := range emission {
		var dataErr *entity.DataError
		assert.ErrorAs(t, r.Err, &dataErr)
	}
}

func TestCurrenciesStatus_QuoteErrorDegrades(t *testing.T) {
	f := newAggregationFixture()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out, err := f.op.Subscribe(ctx, testWallet, []entity.Currency{btc, custom})
	require.NoError(t, err)

	f.networks.Feed.Emit(flow.Ok([]entity.NetworkStatus{
		verified(bitcoin, map[entity.CurrencyID]string{btc.ID: "0.5"}),
		verified(ethereum, map[entity.CurrencyID]string{custom.ID: "5"}),
	}))
	f.quotes.Feed.Emit(flow.Fail[[]entity.Quote](errors.New("rate limited")))

	emission := receive(t, out)
	require.NoError(t, emission[0].Err)
	assert.Equal(t, entity.StatusLoading, emission[0].Value.Value.Kind)
	require.NoError(t, emission[1].Err)
	assert.Equal(t, entity.StatusCustom, emission[1].Value.Value.Kind)
}

func TestCurrenciesStatus_CustomOnlySkipsQuotes(t *testing.T) {
	f := newAggregationFixture()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out, err := f.op.Subscribe(ctx, testWallet, []entity.Currency{custom})
	require.NoError(t, err)

	f.networks.Feed.Emit(flow.Ok([]entity.NetworkStatus{
		verified(ethereum, map[entity.CurrencyID]string{custom.ID: "5"}),
	}))

	emission := receive(t, out)
	require.Len(t, emission, 1)
	assert.Equal(t, entity.StatusCustom, emission[0].Value.Value.Kind)
	assert.Zero(t, f.quotes.Subscribes())
}

func TestCurrenciesStatus_MatchesQuoteRegardlessOfRawIDCase(t *testing.T) {
	f := newAggregationFixture()
	upper := btc
	upper.RawID = "BTC"
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out, err := f.op.Subscribe(ctx, testWallet, []entity.Currency{upper})
	require.NoError(t, err)
	f.networks.Feed.Emit(flow.Ok([]entity.NetworkStatus{
		verified(bitcoin, map[entity.CurrencyID]string{btc.ID: "0.5"}),
	}))
	f.quotes.Feed.Emit(flow.Ok([]entity.Quote{{RawID: "btc", FiatRate: dec("60000")}}))

	emission := receive(t, out)
	require.Len(t, emission, 1)
	assert.Equal(t, entity.StatusLoaded, emission[0].Value.Value.Kind)
	assertDecimal(t, "30000", *emission[0].Value.Value.FiatAmount)
	assert.Equal(t, []string{"btc"}, RawIDsOf([]entity.Currency{upper, btc}))
}

func TestCurrenciesStatus_AttachesYieldBalances(t *testing.T) {
	f := newAggregationFixture()
	f.staking.Balances = map[entity.CurrencyID]entity.YieldBalance{
		eth.ID: {CurrencyID: eth.ID, Staked: dec("32"), IsActive: true},
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out, err := f.op.Subscribe(ctx, testWallet, []entity.Currency{eth, usdt})
	require.NoError(t, err)

	f.networks.Feed.Emit(flow.Ok([]entity.NetworkStatus{
		verified(ethereum, map[entity.CurrencyID]string{eth.ID: "1", usdt.ID: "10"}),
	}))
	f.quotes.Feed.Emit(flow.Ok([]entity.Quote{
		{RawID: "eth", FiatRate: dec("3000")},
		{RawID: "usdt", FiatRate: dec("1")},
	}))

	emission := receive(t, out)
	require.NotNil(t, emission[0].Value.Value.YieldBalance)
	assertDecimal(t, "32", emission[0].Value.Value.YieldBalance.Staked)
	assert.Nil(t, emission[1].Value.Value.YieldBalance)
}

func TestCurrenciesStatus_ReemitsRefreshedYieldBalances(t *testing.T) {
	f := newAggregationFixture()
	f.staking.SetBalance(eth.ID, entity.YieldBalance{CurrencyID: eth.ID, Staked: dec("32"), IsActive: true})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out, err := f.op.Subscribe(ctx, testWallet, []entity.Currency{eth})
	require.NoError(t, err)
	f.networks.Feed.Emit(flow.Ok([]entity.NetworkStatus{
		verified(ethereum, map[entity.CurrencyID]string{eth.ID: "33"}),
	}))
	f.quotes.Feed.Emit(flow.Ok([]entity.Quote{{RawID: "eth", FiatRate: dec("3000")}}))

	emission := receive(t, out)
	require.NotNil(t, emission[0].Value.Value.YieldBalance)
	assertDecimal(t, "32", emission[0].Value.Value.YieldBalance.Staked)

	f.staking.SetBalance(eth.ID, entity.YieldBalance{CurrencyID: eth.ID, Staked: dec("64"), IsActive: true})
	require.NoError(t, f.staking.FetchYieldBalances(ctx, testWallet, []entity.Currency{eth}, true))

	emission = receive(t, out)
	require.NotNil(t, emission[0].Value.Value.YieldBalance)
	assertDecimal(t, "64", emission[0].Value.Value.YieldBalance.Staked)
}

func TestCurrenciesStatus_SharedAndTornDown(t *testing.T) {
	f := newAggregationFixture()
	ctx1, cancel1 := context.WithCancel(context.Background())
	ctx2, cancel2 := context.WithCancel(context.Background())

	first, err := f.op.Subscribe(ctx1, testWallet, []entity.Currency{btc, usdt})
	require.NoError(t, err)
	second, err := f.op.Subscribe(ctx2, testWallet, []entity.Currency{btc, usdt})
	require.NoError(t, err)
	assert.Equal(t, 1, f.networks.Subscribes(), "same wallet and currency set share one subscription")

	f.networks.Feed.Emit(flow.Ok([]entity.NetworkStatus{
		verified(ethereum, map[entity.CurrencyID]string{usdt.ID: "100"}),
		verified(bitcoin, map[entity.CurrencyID]string{btc.ID: "0.5"}),
	}))
	f.quotes.Feed.Emit(flow.Ok([]entity.Quote{{RawID: "btc", FiatRate: dec("60000")}, {RawID: "usdt", FiatRate: dec("1")}}))
	assert.Equal(t, receive(t, first), receive(t, second))

	cancel1()
	cancel2()
	require.Eventually(t, func() bool {
		return f.networks.Feed.Open() == 0 && f.quotes.Feed.Open() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestSignatureKey(t *testing.T) {
	assert.Equal(t,
		SignatureKey(testWallet, []entity.Currency{btc, usdt}),
		SignatureKey(testWallet, []entity.Currency{btc, usdt}))
	assert.NotEqual(t,
		SignatureKey(testWallet, []entity.Currency{btc, usdt}),
		SignatureKey(testWallet, []entity.Currency{usdt, btc}))
	assert.NotEqual(t,
		SignatureKey(testWallet, []entity.Currency{btc}),
		SignatureKey("w2", []entity.Currency{btc}))
}
