package restapi

import (
	"bufio"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"currency_status/internal/domain/entity"
	"currency_status/internal/pkg/flow"

	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type fakeTokens struct {
	mu       sync.Mutex
	lists    []flow.Result[entity.TokenList]
	gap      time.Duration
	openErr  error
	fetchErr error
	fetched  []entity.WalletID
	applied  []entity.TokenList
}

func (f *fakeTokens) GetTokenList(_ context.Context, walletID entity.WalletID) (<-chan flow.Result[entity.TokenList], error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	ch := make(chan flow.Result[entity.TokenList], len(f.lists))
	if f.gap > 0 {
		go func() {
			defer close(ch)
			for i, l := range f.lists {
				if i > 0 {
					time.Sleep(f.gap)
				}
				ch <- l
			}
		}()
		return ch, nil
	}
	for _, l := range f.lists {
		ch <- l
	}
	close(ch)
	return ch, nil
}

func (f *fakeTokens) FetchTokenList(_ context.Context, walletID entity.WalletID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, walletID)
	return f.fetchErr
}

func (f *fakeTokens) ToggleGrouping(_ context.Context, list entity.TokenList) (entity.TokenList, error) {
	if listLoading(list) {
		return entity.TokenList{}, entity.ErrTokenListIsLoading
	}
	list.Kind = entity.TokenListGroupedByNetwork
	return list, nil
}

func (f *fakeTokens) ToggleSorting(_ context.Context, list entity.TokenList) (entity.TokenList, error) {
	if listLoading(list) {
		return entity.TokenList{}, entity.ErrTokenListIsLoading
	}
	list.SortType = entity.SortTypeBalance
	return list, nil
}

func (f *fakeTokens) ApplySorting(_ context.Context, _ entity.WalletID, list entity.TokenList) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied = append(f.applied, list)
	return nil
}

type fakeStatuses struct {
	statuses  []flow.Result[entity.CryptoCurrencyStatus]
	requested entity.CurrencyID
}

func (f *fakeStatuses) GetCurrencyStatus(_ context.Context, _ entity.WalletID, currencyID entity.CurrencyID) (<-chan flow.Result[entity.CryptoCurrencyStatus], error) {
	f.requested = currencyID
	if currencyID == "missing" {
		return nil, &entity.CurrencyNotFoundError{CurrencyID: currencyID}
	}
	ch := make(chan flow.Result[entity.CryptoCurrencyStatus], len(f.statuses))
	for _, s := range f.statuses {
		ch <- s
	}
	close(ch)
	return ch, nil
}

type fakeWallets struct {
	wallets []entity.Wallet
	err     error
}

func (f *fakeWallets) Wallets(bool) ([]entity.Wallet, error) {
	return f.wallets, f.err
}

func status(symbol string, kind entity.StatusKind, fiat int64) entity.CryptoCurrencyStatus {
	s := entity.CryptoCurrencyStatus{
		Currency: entity.Currency{ID: entity.CurrencyID("w1/ethereum/" + symbol), Symbol: symbol},
		Value:    entity.Status{Kind: kind},
	}
	if kind == entity.StatusLoaded {
		amount := decimal.NewFromInt(fiat)
		s.Value.FiatAmount = &amount
	}
	return s
}

func list(statuses ...entity.CryptoCurrencyStatus) entity.TokenList {
	return entity.TokenList{Kind: entity.TokenListUngrouped, Statuses: statuses}
}

func newTestRouter(tokens *fakeTokens, statuses *fakeStatuses, wallets *fakeWallets) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewTokenHandler(tokens, statuses, wallets, 200*time.Millisecond, zap.NewNop())
	return SetupRouter(handler, RouterConfig{}, zap.NewNop())
}

func serve(router *gin.Engine, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestGetTokenList_WaitsForSettledList(t *testing.T) {
	tokens := &fakeTokens{lists: []flow.Result[entity.TokenList]{
		flow.Ok(list(status("ETH", entity.StatusLoading, 0))),
		flow.Ok(list(status("ETH", entity.StatusLoaded, 3000))),
	}}
	router := newTestRouter(tokens, &fakeStatuses{}, &fakeWallets{})

	w := serve(router, http.MethodGet, "/api/v1/wallets/w1/tokens")
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "ungrouped", body["kind"])
	statuses := body["statuses"].([]interface{})
	first := statuses[0].(map[string]interface{})["status"].(map[string]interface{})
	assert.Equal(t, "loaded", first["kind"])
	assert.Equal(t, "3000", first["fiatAmount"])

	w = serve(router, http.MethodGet, "/api/v1/wallets/w1/tokens?wait=false")
	require.Equal(t, http.StatusOK, w.Code)
	first = decodeBody(t, w)["statuses"].([]interface{})[0].(map[string]interface{})["status"].(map[string]interface{})
	assert.Equal(t, "loading", first["kind"])
}

func TestGetTokenList_MapsErrors(t *testing.T) {
	cases := map[string]struct {
		tokens *fakeTokens
		status int
		code   string
	}{
		"unknown wallet": {
			tokens: &fakeTokens{openErr: entity.ErrWalletNotFound},
			status: http.StatusNotFound,
			code:   "wallet_not_found",
		},
		"data error": {
			tokens: &fakeTokens{lists: []flow.Result[entity.TokenList]{
				flow.Fail[entity.TokenList](entity.NewDataError(errors.New("rpc down"))),
			}},
			status: http.StatusBadGateway,
			code:   "data_error",
		},
		"no emission": {
			tokens: &fakeTokens{},
			status: http.StatusInternalServerError,
			code:   "internal",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			w := serve(newTestRouter(tc.tokens, &fakeStatuses{}, &fakeWallets{}), http.MethodGet, "/api/v1/wallets/w1/tokens")
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.code, decodeBody(t, w)["code"])
		})
	}
}

func TestStreamTokenList_EmitsServerSentEvents(t *testing.T) {
	tokens := &fakeTokens{lists: []flow.Result[entity.TokenList]{
		flow.Ok(list(status("ETH", entity.StatusLoading, 0))),
		flow.Fail[entity.TokenList](entity.NewDataError(errors.New("rpc down"))),
		flow.Ok(list(status("ETH", entity.StatusLoaded, 3000))),
	}}
	router := newTestRouter(tokens, &fakeStatuses{}, &fakeWallets{})

	w := serve(router, http.MethodGet, "/api/v1/wallets/w1/tokens/stream")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/event-stream")

	var events []string
	scanner := bufio.NewScanner(strings.NewReader(w.Body.String()))
	for scanner.Scan() {
		if name, ok := strings.CutPrefix(scanner.Text(), "event:"); ok {
			events = append(events, name)
		}
	}
	assert.Equal(t, []string{"tokenList", "error", "tokenList"}, events)
	assert.Contains(t, w.Body.String(), "rpc down")
}

func TestStreamTokenList_OutlivesWriteTimeout(t *testing.T) {
	tokens := &fakeTokens{
		lists: []flow.Result[entity.TokenList]{
			flow.Ok(list(status("ETH", entity.StatusLoading, 0))),
			flow.Ok(list(status("ETH", entity.StatusLoaded, 3000))),
		},
		gap: 300 * time.Millisecond,
	}
	server := httptest.NewUnstartedServer(newTestRouter(tokens, &fakeStatuses{}, &fakeWallets{}))
	server.Config.WriteTimeout = 100 * time.Millisecond
	server.Start()
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/v1/wallets/w1/tokens/stream")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var events []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		if name, ok := strings.CutPrefix(scanner.Text(), "event:"); ok {
			events = append(events, name)
		}
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, []string{"tokenList", "tokenList"}, events)
}

func TestRefreshTokenList(t *testing.T) {
	tokens := &fakeTokens{}
	router := newTestRouter(tokens, &fakeStatuses{}, &fakeWallets{})

	w := serve(router, http.MethodPost, "/api/v1/wallets/w1/tokens/refresh")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []entity.WalletID{"w1"}, tokens.fetched)

	tokens.fetchErr = entity.ErrEmptyTokens
	w = serve(router, http.MethodPost, "/api/v1/wallets/w1/tokens/refresh")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "empty_tokens", decodeBody(t, w)["code"])
}

func TestToggles_ApplyTheToggledList(t *testing.T) {
	tokens := &fakeTokens{lists: []flow.Result[entity.TokenList]{
		flow.Ok(list(status("ETH", entity.StatusLoaded, 3000))),
	}}
	router := newTestRouter(tokens, &fakeStatuses{}, &fakeWallets{})

	w := serve(router, http.MethodPost, "/api/v1/wallets/w1/tokens/grouping")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "grouped_by_network", decodeBody(t, w)["kind"])

	w = serve(router, http.MethodPost, "/api/v1/wallets/w1/tokens/sorting")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "balance", decodeBody(t, w)["sortType"])

	require.Len(t, tokens.applied, 2)
	assert.True(t, tokens.applied[0].IsGrouped())
	assert.True(t, tokens.applied[1].IsSortedByBalance())
}

func TestToggles_RejectLoadingList(t *testing.T) {
	tokens := &fakeTokens{lists: []flow.Result[entity.TokenList]{
		flow.Ok(list(status("ETH", entity.StatusLoading, 0))),
	}}
	router := newTestRouter(tokens, &fakeStatuses{}, &fakeWallets{})

	w := serve(router, http.MethodPost, "/api/v1/wallets/w1/tokens/sorting")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "token_list_loading", decodeBody(t, w)["code"])
	assert.Empty(t, tokens.applied)
}

func TestGetCurrencyStatus(t *testing.T) {
	statuses := &fakeStatuses{statuses: []flow.Result[entity.CryptoCurrencyStatus]{
		flow.Ok(status("ETH", entity.StatusLoading, 0)),
		flow.Ok(status("ETH", entity.StatusLoaded, 3000)),
	}}
	router := newTestRouter(&fakeTokens{}, statuses, &fakeWallets{})

	w := serve(router, http.MethodGet, "/api/v1/wallets/w1/currencies/w1%2Fethereum%2Fcoin/status")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, entity.CurrencyID("w1/ethereum/coin"), statuses.requested)
	assert.Equal(t, "loaded", decodeBody(t, w)["status"].(map[string]interface{})["kind"])

	w = serve(router, http.MethodGet, "/api/v1/wallets/w1/currencies/x/status?id=w1/polygon/coin")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, entity.CurrencyID("w1/polygon/coin"), statuses.requested)

	w = serve(router, http.MethodGet, "/api/v1/wallets/w1/currencies/missing/status")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "currency_not_found", decodeBody(t, w)["code"])
}

func TestListWallets(t *testing.T) {
	wallets := &fakeWallets{wallets: []entity.Wallet{
		{ID: "w1", Name: "Main", Currencies: []entity.Currency{{ID: "a"}, {ID: "b"}}},
	}}
	router := newTestRouter(&fakeTokens{}, &fakeStatuses{}, wallets)

	w := serve(router, http.MethodGet, "/api/v1/wallets")
	require.Equal(t, http.StatusOK, w.Code)
	entries := decodeBody(t, w)["wallets"].([]interface{})
	require.Len(t, entries, 1)
	first := entries[0].(map[string]interface{})
	assert.Equal(t, "w1", first["id"])
	assert.Equal(t, float64(2), first["currencies"])

	wallets.err = errors.New("file unreadable")
	w = serve(router, http.MethodGet, "/api/v1/wallets")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(&fakeTokens{}, &fakeStatuses{}, &fakeWallets{})
	w := serve(router, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
}
