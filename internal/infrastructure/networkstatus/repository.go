// Package networkstatus keeps the on-chain state of every (wallet, network) pair.
package networkstatus

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"currency_status/internal/app/port"
	"currency_status/internal/domain/entity"
	"currency_status/internal/pkg/flow"
	"currency_status/internal/pkg/metrics"
	"currency_status/internal/pkg/notify"
	"currency_status/internal/pkg/utils"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const freshPrefix = "fresh:"

// Repository implements port.NetworkStatusSource on top of blockchain clients.
type Repository struct {
	wallets       port.WalletProvider
	currencies    port.CurrenciesSource
	clients       port.BlockchainClientProvider
	store         *cache.Cache
	ttl           time.Duration
	group         singleflight.Group
	hub           *notify.Hub
	maxConcurrent int
	logger        *zap.Logger
}

// NewRepository creates a network status repository. Statuses older than ttl are
// re-fetched by non-refreshing fetches; maxConcurrent bounds parallel network fetches.
func NewRepository(
	wallets port.WalletProvider,
	currencies port.CurrenciesSource,
	clients port.BlockchainClientProvider,
	ttl time.Duration,
	cleanupInterval time.Duration,
	maxConcurrent int,
	logger *zap.Logger,
) *Repository {
	return &Repository{
		wallets:       wallets,
		currencies:    currencies,
		clients:       clients,
		store:         cache.New(cache.NoExpiration, cleanupInterval),
		ttl:           ttl,
		hub:           notify.NewHub(),
		maxConcurrent: maxConcurrent,
		logger:        logger.Named("NetworkStatusRepository"),
	}
}

func storeKey(walletID entity.WalletID, networkID entity.NetworkID) string {
	return string(walletID) + "/" + string(networkID)
}

func storeKeys(walletID entity.WalletID, networks []entity.Network) []string {
	keys := make([]string, len(networks))
	for i, n := range networks {
		keys[i] = storeKey(walletID, n.ID)
	}
	return keys
}

// Subscribe emits the statuses of networks now and after every stored change.
// Unknown statuses are Loading while they are fetched in the background; a failed
// background fetch is emitted as an error.
func (r *Repository) Subscribe(
	ctx context.Context,
	walletID entity.WalletID,
	networks []entity.Network,
	refresh bool,
) <-chan flow.Result[[]entity.NetworkStatus] {
	out := make(chan flow.Result[[]entity.NetworkStatus])
	changes := r.hub.Watch(ctx, notify.KeySet(storeKeys(walletID, networks)...))
	fetchErrs := make(chan error, 1)

	if refresh || !r.allStored(walletID, networks) {
		fetchCtx := context.WithoutCancel(ctx)
		go func() {
			if err := r.FetchNetworkStatuses(fetchCtx, walletID, networks, refresh); err != nil {
				r.logger.Warn("Background network status fetch failed", zap.String("wallet", string(walletID)), zap.Error(err))
				fetchErrs <- err
			}
		}()
	}

	go func() {
		defer close(out)
		next := flow.Ok(r.snapshot(walletID, networks))
		for {
			select {
			case out <- next:
			case <-ctx.Done():
				return
			}
			select {
			case <-ctx.Done():
				return
			case err := <-fetchErrs:
				next = flow.Fail[[]entity.NetworkStatus](err)
			case _, ok := <-changes:
				if !ok {
					return
				}
				next = flow.Ok(r.snapshot(walletID, networks))
			}
		}
	}()
	return out
}

// FetchNetworkStatuses loads the account state of networks and stores it. Unreachable
// networks are stored as such; an error is returned only when the wallet currencies
// cannot be listed or ctx ends.
func (r *Repository) FetchNetworkStatuses(
	ctx context.Context,
	walletID entity.WalletID,
	networks []entity.Network,
	refresh bool,
) error {
	pending := make([]entity.Network, 0, len(networks))
	for _, n := range networks {
		if refresh || !r.isFresh(storeKey(walletID, n.ID)) {
			pending = append(pending, n)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	currencies, err := r.currencies.Get(ctx, walletID, false)
	if err != nil {
		return fmt.Errorf("failed to list currencies of wallet %s: %w", walletID, err)
	}

	g, gCtx := errgroup.WithContext(ctx)
	if r.maxConcurrent > 0 {
		g.SetLimit(r.maxConcurrent)
	}
	for _, network := range pending {
		network := network
		onNetwork := currenciesOn(currencies, network.ID)
		g.Go(func() error {
			key := storeKey(walletID, network.ID)
			_, err, _ := r.group.Do(key, func() (interface{}, error) {
				start := time.Now()
				status := r.load(gCtx, walletID, network, onNetwork)
				metrics.SourceFetchDuration.WithLabelValues("network_status", status.Value.Kind.String()).Observe(time.Since(start).Seconds())
				if err := gCtx.Err(); err != nil {
					return nil, err
				}
				r.store.Set(key, status, cache.NoExpiration)
				r.store.Set(freshPrefix+key, true, r.ttl)
				r.hub.Notify(key)
				return status, nil
			})
			return err
		})
	}
	return g.Wait()
}

func (r *Repository) load(ctx context.Context, walletID entity.WalletID, network entity.Network, currencies []entity.Currency) entity.NetworkStatus {
	logger := r.logger.With(zap.String("wallet", string(walletID)), zap.String("network", string(network.ID)))

	address, ok := r.wallets.Address(walletID, network.ID)
	if !ok {
		logger.Debug("No address derived for network")
		return entity.MissedDerivationNetworkStatus(network)
	}

	client, err := r.clients.GetClient(network)
	if err != nil {
		logger.Warn("No client for network", zap.Error(err))
		return entity.UnreachableNetworkStatus(network, err.Error())
	}

	requests := []entity.AccountRequestItem{
		{Type: entity.NonceRequest, WalletAddress: address},
		{Type: entity.PendingNonceRequest, WalletAddress: address},
	}
	for _, c := range currencies {
		item := entity.AccountRequestItem{
			CurrencyID:    c.ID,
			Type:          entity.NativeBalanceRequest,
			WalletAddress: address,
			TokenDecimals: c.Decimals,
		}
		if c.Kind == entity.CurrencyToken {
			item.Type = entity.TokenBalanceRequest
			item.TokenAddress = c.ContractAddress
		}
		requests = append(requests, item)
	}

	results, err := client.GetAccount(ctx, requests)
	if err != nil {
		logger.Warn("Account request failed", zap.Error(err))
		return entity.UnreachableNetworkStatus(network, err.Error())
	}

	var itemErrs []error
	for _, res := range results {
		if res.Error != nil {
			itemErrs = append(itemErrs, res.Error)
		}
	}
	if len(itemErrs) > 0 {
		err := errors.Join(itemErrs...)
		logger.Warn("Account request items failed", zap.Int("failed", len(itemErrs)), zap.Error(err))
		return entity.UnreachableNetworkStatus(network, err.Error())
	}

	nonce, pendingNonce := results[0].Value, results[1].Value
	amounts := make(map[entity.CurrencyID]decimal.Decimal, len(results)-2)
	empty := isZero(nonce)
	for _, res := range results[2:] {
		amounts[res.CurrencyID] = utils.ToDecimal(res.Value, res.Decimals)
		if !isZero(res.Value) {
			empty = false
		}
	}
	if empty {
		return entity.NoAccountNetworkStatus(network, address)
	}

	hasPending := pendingNonce != nil && nonce != nil && pendingNonce.Cmp(nonce) > 0
	logger.Debug("Account verified", zap.Int("currencies", len(amounts)), zap.Bool("pending", hasPending))
	return entity.VerifiedNetworkStatus(network, address, amounts, hasPending)
}

func (r *Repository) snapshot(walletID entity.WalletID, networks []entity.Network) []entity.NetworkStatus {
	statuses := make([]entity.NetworkStatus, len(networks))
	for i, n := range networks {
		v, ok := r.store.Get(storeKey(walletID, n.ID))
		if !ok {
			statuses[i] = entity.LoadingNetworkStatus(n)
			continue
		}
		status := v.(entity.NetworkStatus)
		status.Network = n
		statuses[i] = status
	}
	return statuses
}

func (r *Repository) allStored(walletID entity.WalletID, networks []entity.Network) bool {
	for _, n := range networks {
		if _, ok := r.store.Get(storeKey(walletID, n.ID)); !ok {
			return false
		}
	}
	return true
}

func (r *Repository) isFresh(key string) bool {
	_, ok := r.store.Get(freshPrefix + key)
	return ok
}

func currenciesOn(currencies []entity.Currency, networkID entity.NetworkID) []entity.Currency {
	var result []entity.Currency
	for _, c := range currencies {
		if c.Network.ID == networkID {
			result = append(result, c)
		}
	}
	return result
}

func isZero(v *big.Int) bool {
	return v == nil || v.Sign() == 0
}

var _ port.NetworkStatusSource = (*Repository)(nil)
