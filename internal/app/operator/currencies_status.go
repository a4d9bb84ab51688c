package operator

import (
	"context"
	"strings"

	"currency_status/internal/app/port"
	"currency_status/internal/domain/entity"
	"currency_status/internal/pkg/flow"
	"currency_status/internal/pkg/supplier"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// StatusesEmission is one emission of the aggregation: a result per requested
// currency, in request order.
type StatusesEmission = []flow.Result[entity.CryptoCurrencyStatus]

type statusesRequest struct {
	walletID   entity.WalletID
	currencies []entity.Currency
}

// CurrenciesStatusOperator keeps the statuses of a set of currencies up to date.
// Identical requests share one set of source subscriptions.
type CurrenciesStatusOperator struct {
	networkSource port.NetworkStatusSource
	quoteSource   port.QuoteSource
	stakingSource port.StakingSource
	merge         *MergeOperator
	logger        *zap.Logger

	shared *supplier.Supplier[string, StatusesEmission]
}

// NewCurrenciesStatusOperator creates a CurrenciesStatusOperator.
func NewCurrenciesStatusOperator(
	networkSource port.NetworkStatusSource,
	quoteSource port.QuoteSource,
	stakingSource port.StakingSource,
	merge *MergeOperator,
	bufferSize int,
	logger *zap.Logger,
) *CurrenciesStatusOperator {
	o := &CurrenciesStatusOperator{
		networkSource: networkSource,
		quoteSource:   quoteSource,
		stakingSource: stakingSource,
		merge:         merge,
		logger:        logger.Named("CurrenciesStatusOperator"),
	}
	o.shared = supplier.New[string, StatusesEmission]("currencies_status", nil, bufferSize, logger)
	return o
}

// Subscribe streams the statuses of currencies held by walletID. The channel
// closes when ctx is done.
func (o *CurrenciesStatusOperator) Subscribe(ctx context.Context, walletID entity.WalletID, currencies []entity.Currency) (<-chan StatusesEmission, error) {
	if len(currencies) == 0 {
		return nil, entity.ErrEmptyCurrencies
	}
	req := statusesRequest{walletID: walletID, currencies: currencies}
	return o.shared.SubscribeWith(ctx, SignatureKey(walletID, currencies),
		func(ctx context.Context, _ string) (<-chan StatusesEmission, error) {
			return o.produce(ctx, req), nil
		})
}

// Invalidate drops the cached emission of the request so that subscribers
// joining later wait for refreshed data.
func (o *CurrenciesStatusOperator) Invalidate(walletID entity.WalletID, currencies []entity.Currency) {
	if len(currencies) == 0 {
		return
	}
	o.shared.Invalidate(SignatureKey(walletID, currencies))
}

// SignatureKey identifies a wallet and an ordered currency list. Emissions are
// index-aligned with the list, so differently ordered lists get their own key.
func SignatureKey(walletID entity.WalletID, currencies []entity.Currency) string {
	ids := make([]string, len(currencies))
	for i, c := range currencies {
		ids[i] = string(c.ID)
	}
	return string(walletID) + "|" + strings.Join(ids, ",")
}

func (o *CurrenciesStatusOperator) produce(ctx context.Context, req statusesRequest) <-chan StatusesEmission {
	networks := NetworksOf(req.currencies)
	rawIDs := RawIDsOf(req.currencies)

	o.logger.Debug("Subscribing to sources",
		zap.String("wallet", string(req.walletID)),
		zap.Int("currencies", len(req.currencies)),
		zap.Int("networks", len(networks)),
		zap.Int("quotes", len(rawIDs)))

	networkStatuses := o.networkSource.Subscribe(ctx, req.walletID, networks, false)

	var quotes <-chan flow.Result[[]entity.Quote]
	if len(rawIDs) == 0 {
		quotes = flow.Just(flow.Ok([]entity.Quote{}))
	} else {
		quotes = o.quoteSource.Subscribe(ctx, rawIDs, false)
	}

	yieldBalances := o.fetchYieldBalances(ctx, req.walletID, req.currencies)

	return flow.CombineLatest3(ctx, networkStatuses, quotes, yieldBalances,
		func(n flow.Result[[]entity.NetworkStatus], q flow.Result[[]entity.Quote], y map[entity.CurrencyID]flow.Result[entity.YieldBalance]) StatusesEmission {
			return o.mergeAll(req.currencies, n, q, y)
		})
}

// fetchYieldBalances emits the staking positions, fetched concurrently, and
// emits them again whenever the staking source reports a change.
func (o *CurrenciesStatusOperator) fetchYieldBalances(ctx context.Context, walletID entity.WalletID, currencies []entity.Currency) <-chan map[entity.CurrencyID]flow.Result[entity.YieldBalance] {
	var staking []entity.Currency
	for _, c := range currencies {
		if c.IsStakingSupported {
			staking = append(staking, c)
		}
	}
	if len(staking) == 0 {
		return flow.Just(map[entity.CurrencyID]flow.Result[entity.YieldBalance]{})
	}

	changes := o.stakingSource.Watch(ctx, walletID, staking)
	out := make(chan map[entity.CurrencyID]flow.Result[entity.YieldBalance], 1)
	go func() {
		defer close(out)
		for {
			select {
			case out <- o.readYieldBalances(ctx, walletID, staking):
			case <-ctx.Done():
				return
			}

			select {
			case _, ok := <-changes:
				if !ok {
					return
				}
				o.logger.Debug("Yield balances changed", zap.String("wallet", string(walletID)))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (o *CurrenciesStatusOperator) readYieldBalances(ctx context.Context, walletID entity.WalletID, staking []entity.Currency) map[entity.CurrencyID]flow.Result[entity.YieldBalance] {
	results := make([]flow.Result[entity.YieldBalance], len(staking))
	var g errgroup.Group
	for i, c := range staking {
		i, c := i, c
		g.Go(func() error {
			yb, err := o.stakingSource.FetchSingle(ctx, walletID, c)
			results[i] = flow.Result[entity.YieldBalance]{Value: yb, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	balances := make(map[entity.CurrencyID]flow.Result[entity.YieldBalance], len(staking))
	for i, c := range staking {
		balances[c.ID] = results[i]
	}
	return balances
}

func (o *CurrenciesStatusOperator) mergeAll(
	currencies []entity.Currency,
	networks flow.Result[[]entity.NetworkStatus],
	quotes flow.Result[[]entity.Quote],
	yields map[entity.CurrencyID]flow.Result[entity.YieldBalance],
) StatusesEmission {
	statusByNetwork := make(map[entity.NetworkID]entity.NetworkStatus, len(networks.Value))
	for _, ns := range networks.Value {
		statusByNetwork[ns.Network.ID] = ns
	}
	quoteByRawID := make(map[string]entity.Quote, len(quotes.Value))
	for _, q := range quotes.Value {
		quoteByRawID[entity.NormalizeRawID(q.RawID)] = q
	}

	out := make(StatusesEmission, len(currencies))
	for i, c := range currencies {
		var sources CurrencyStatusSources

		if networks.Err != nil {
			sources.NetworkStatusErr = networks.Err
		} else if ns, ok := statusByNetwork[c.Network.ID]; ok {
			sources.NetworkStatus = ns
		} else {
			sources.NetworkStatus = entity.LoadingNetworkStatus(c.Network)
		}

		if quotes.Err != nil {
			sources.QuoteErr = quotes.Err
		} else if q, ok := quoteByRawID[entity.NormalizeRawID(c.RawID)]; ok && c.RawID != "" {
			sources.Quote = &q
		}

		if r, ok := yields[c.ID]; ok {
			if r.Err != nil {
				sources.YieldBalanceErr = r.Err
			} else {
				yb := r.Value
				sources.YieldBalance = &yb
			}
		}

		status, err := o.merge.Merge(c, sources)
		out[i] = flow.Result[entity.CryptoCurrencyStatus]{Value: status, Err: err}
	}
	return out
}

// NetworksOf returns the distinct networks of currencies in order of first appearance.
func NetworksOf(currencies []entity.Currency) []entity.Network {
	seen := make(map[entity.NetworkID]struct{})
	var networks []entity.Network
	for _, c := range currencies {
		if _, ok := seen[c.Network.ID]; ok {
			continue
		}
		seen[c.Network.ID] = struct{}{}
		networks = append(networks, c.Network)
	}
	return networks
}

// RawIDsOf returns the distinct non-empty market ids of currencies, normalized.
func RawIDsOf(currencies []entity.Currency) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, c := range currencies {
		rawID := entity.NormalizeRawID(c.RawID)
		if rawID == "" {
			continue
		}
		if _, ok := seen[rawID]; ok {
			continue
		}
		seen[rawID] = struct{}{}
		ids = append(ids, rawID)
	}
	return ids
}
