package quotes

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"currency_status/internal/domain/entity"
	"currency_status/internal/pkg/flow"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	weth = "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"
	usdt = "0xdac17f958d2ee523a2206206994597c13d831ec7"
	pepe = "0x6982508145454ce325ddbe47a25d4ec3d2311933"
)

type fakeClient struct {
	mu      sync.Mutex
	pairs   map[string][]PairData
	err     error
	batches [][]string
}

func (c *fakeClient) GetTokenPairsByAddresses(_ context.Context, chainID string, addresses []string) ([]PairData, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, append([]string(nil), addresses...))
	if c.err != nil {
		return nil, c.err
	}
	var result []PairData
	for _, a := range addresses {
		result = append(result, c.pairs[chainID+":"+a]...)
	}
	return result, nil
}

func (c *fakeClient) setErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

func (c *fakeClient) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.batches)
}

func pair(base, quoteSymbol, price string, liquidity float64, change float64) PairData {
	return PairData{
		BaseToken:   DEXToken{Address: base},
		QuoteToken:  DEXToken{Symbol: quoteSymbol},
		PriceUsd:    price,
		PriceChange: PairPriceChange{H24: change},
		Liquidity:   &DEXLiquidity{Usd: liquidity},
	}
}

func newClient() *fakeClient {
	return &fakeClient{pairs: map[string][]PairData{
		"ethereum:" + weth: {
			pair(weth, "WBTC", "2990", 9_000_000, 1),
			pair(weth, "USDC", "3000", 5_000_000, 2.5),
			pair(weth, "USDT", "3001", 1_000_000, 2),
		},
		"ethereum:" + usdt: {
			pair(usdt, "USDC", "1.0001", 500_000, 0.01),
		},
	}}
}

func awaitQuotes(t *testing.T, ch <-chan flow.Result[[]entity.Quote], done func(flow.Result[[]entity.Quote]) bool) flow.Result[[]entity.Quote] {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case res, ok := <-ch:
			require.True(t, ok, "stream closed")
			if done(res) {
				return res
			}
		case <-deadline:
			t.Fatal("timed out waiting for quotes")
		}
	}
}

func TestRepository_FetchQuotesSelectsBestPair(t *testing.T) {
	client := newClient()
	repo := NewRepository(client, time.Minute, 30, 2, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rawIDs := []string{"ethereum:" + weth, "ethereum:" + usdt, "ethereum:" + pepe}
	require.NoError(t, repo.FetchQuotes(ctx, rawIDs, false))

	res := awaitQuotes(t, repo.Subscribe(ctx, rawIDs, false), func(flow.Result[[]entity.Quote]) bool { return true })
	require.NoError(t, res.Err)
	require.Len(t, res.Value, 2, "a token without pairs has no quote")

	byID := map[string]entity.Quote{}
	for _, q := range res.Value {
		byID[q.RawID] = q
	}
	assert.True(t, byID["ethereum:"+weth].FiatRate.Equal(decimal.RequireFromString("3000")), "liquid stablecoin pair wins")
	assert.True(t, byID["ethereum:"+weth].PriceChange.Equal(decimal.RequireFromString("2.5")))
	assert.True(t, byID["ethereum:"+usdt].FiatRate.Equal(decimal.RequireFromString("1.0001")))
}

func TestRepository_FetchQuotesBatchesPerChain(t *testing.T) {
	client := newClient()
	repo := NewRepository(client, time.Minute, 2, 1, zap.NewNop())

	rawIDs := []string{"ethereum:" + weth, "ethereum:" + usdt, "ethereum:" + pepe, "bsc:" + weth}
	require.NoError(t, repo.FetchQuotes(context.Background(), rawIDs, false))

	sizes := make([]int, 0, len(client.batches))
	for _, b := range client.batches {
		sizes = append(sizes, len(b))
	}
	sort.Ints(sizes)
	assert.Equal(t, []int{1, 1, 2}, sizes)
}

func TestRepository_FreshQuotesAreNotRefetched(t *testing.T) {
	client := newClient()
	repo := NewRepository(client, time.Minute, 30, 2, zap.NewNop())
	rawIDs := []string{"ethereum:" + weth}

	require.NoError(t, repo.FetchQuotes(context.Background(), rawIDs, false))
	require.NoError(t, repo.FetchQuotes(context.Background(), rawIDs, false))
	assert.Equal(t, 1, client.calls())

	require.NoError(t, repo.FetchQuotes(context.Background(), rawIDs, true))
	assert.Equal(t, 2, client.calls())
}

func TestRepository_SubscribeReportsFetchFailure(t *testing.T) {
	client := newClient()
	client.setErr(errors.New("dexscreener down"))
	repo := NewRepository(client, time.Minute, 30, 2, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rawIDs := []string{"ethereum:" + weth}

	stream := repo.Subscribe(ctx, rawIDs, false)
	failed := awaitQuotes(t, stream, func(r flow.Result[[]entity.Quote]) bool { return r.Err != nil })
	assert.Contains(t, failed.Err.Error(), "dexscreener down")

	client.setErr(nil)
	require.NoError(t, repo.FetchQuotes(ctx, rawIDs, true))
	recovered := awaitQuotes(t, stream, func(r flow.Result[[]entity.Quote]) bool { return r.Err == nil && len(r.Value) == 1 })
	assert.Equal(t, "ethereum:"+weth, recovered.Value[0].RawID)
}

func TestRepository_MixedCaseRawIDsShareOneQuote(t *testing.T) {
	client := newClient()
	repo := NewRepository(client, time.Minute, 30, 2, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mixed := "Ethereum:0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"

	stream := repo.Subscribe(ctx, []string{mixed}, false)
	res := awaitQuotes(t, stream, func(r flow.Result[[]entity.Quote]) bool { return r.Err == nil && len(r.Value) == 1 })
	assert.Equal(t, "ethereum:"+weth, res.Value[0].RawID)
	assert.True(t, res.Value[0].FiatRate.Equal(decimal.RequireFromString("3000")))

	require.NoError(t, repo.FetchQuotes(ctx, []string{"ethereum:" + weth, mixed}, false))
	assert.Equal(t, 1, client.calls(), "both spellings are fresh after one fetch")
}

func TestRepository_FetchQuotesJoinsFailures(t *testing.T) {
	client := newClient()
	client.setErr(errors.New("timeout"))
	repo := NewRepository(client, time.Minute, 30, 2, zap.NewNop())

	err := repo.FetchQuotes(context.Background(), []string{"ethereum:" + weth, "bsc:" + weth}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

func TestParseRawID(t *testing.T) {
	chain, address, err := ParseRawID("ethereum:0xABC")
	require.NoError(t, err)
	assert.Equal(t, "ethereum", chain)
	assert.Equal(t, "0xabc", address)

	for _, bad := range []string{"", "ethereum", ":0xabc", "ethereum:"} {
		_, _, err := ParseRawID(bad)
		assert.ErrorIs(t, err, ErrInvalidRawID, bad)
	}
}

func TestMarketRawIDRoundTrip(t *testing.T) {
	network := entity.Network{ID: "ethereum", DEXScreenerChainID: "ethereum", WrappedNativeTokenAddress: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"}

	chain, address, err := ParseRawID(entity.MarketRawID(network, ""))
	require.NoError(t, err)
	assert.Equal(t, "ethereum", chain)
	assert.Equal(t, weth, address)

	assert.Empty(t, entity.MarketRawID(entity.Network{ID: "x"}, usdt))
}
