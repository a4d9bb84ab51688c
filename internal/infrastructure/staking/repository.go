// Package staking provides yield balances of staking-capable currencies.
package staking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"currency_status/internal/app/port"
	"currency_status/internal/domain/entity"
	"currency_status/internal/pkg/metrics"
	"currency_status/internal/pkg/notify"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ErrStakingUnavailable is returned by every fetch when no yield API is configured.
var ErrStakingUnavailable = errors.New("staking is unavailable")

// Repository implements port.StakingSource. A nil client disables it.
type Repository struct {
	client  YieldClient
	wallets port.WalletProvider
	store   *cache.Cache
	group   singleflight.Group
	hub     *notify.Hub
	logger  *zap.Logger
}

// NewRepository creates a staking repository caching balances for ttl.
func NewRepository(client YieldClient, wallets port.WalletProvider, ttl, cleanupInterval time.Duration, logger *zap.Logger) *Repository {
	return &Repository{
		client:  client,
		wallets: wallets,
		store:   cache.New(ttl, cleanupInterval),
		hub:     notify.NewHub(),
		logger:  logger.Named("StakingRepository"),
	}
}

func storeKey(walletID entity.WalletID, currencyID entity.CurrencyID) string {
	return string(walletID) + "|" + string(currencyID)
}

// Watch signals each time a balance of currencies held by walletID is stored.
// The channel closes when ctx is done.
func (r *Repository) Watch(ctx context.Context, walletID entity.WalletID, currencies []entity.Currency) <-chan struct{} {
	keys := make([]string, len(currencies))
	for i, c := range currencies {
		keys[i] = storeKey(walletID, c.ID)
	}
	return r.hub.Watch(ctx, notify.KeySet(keys...))
}

// FetchSingle returns the cached yield balance of currency, fetching it when absent.
func (r *Repository) FetchSingle(ctx context.Context, walletID entity.WalletID, currency entity.Currency) (entity.YieldBalance, error) {
	if r.client == nil {
		return entity.YieldBalance{}, ErrStakingUnavailable
	}
	key := storeKey(walletID, currency.ID)
	if v, ok := r.store.Get(key); ok {
		return v.(entity.YieldBalance), nil
	}
	return r.fetch(ctx, walletID, currency)
}

// FetchYieldBalances loads the balances of the staking-capable currencies, dropping
// cached ones first when refresh is set.
func (r *Repository) FetchYieldBalances(ctx context.Context, walletID entity.WalletID, currencies []entity.Currency, refresh bool) error {
	if r.client == nil {
		return ErrStakingUnavailable
	}

	g, gCtx := errgroup.WithContext(ctx)
	errs := make([]error, len(currencies))
	for i, currency := range currencies {
		i, currency := i, currency
		if !currency.IsStakingSupported {
			continue
		}
		key := storeKey(walletID, currency.ID)
		if !refresh {
			if _, ok := r.store.Get(key); ok {
				continue
			}
		}
		g.Go(func() error {
			_, errs[i] = r.fetch(gCtx, walletID, currency)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

func (r *Repository) fetch(ctx context.Context, walletID entity.WalletID, currency entity.Currency) (entity.YieldBalance, error) {
	key := storeKey(walletID, currency.ID)
	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		address, ok := r.wallets.Address(walletID, currency.Network.ID)
		if !ok {
			return nil, fmt.Errorf("wallet %s has no address on %s", walletID, currency.Network.ID)
		}

		start := time.Now()
		resp, err := r.client.GetYieldBalance(ctx, string(currency.Network.ID), address, currency.ContractAddress)
		if err != nil {
			metrics.SourceFetchDuration.WithLabelValues("staking", "error").Observe(time.Since(start).Seconds())
			return nil, fmt.Errorf("yield balance of %s: %w", currency.ID, err)
		}
		metrics.SourceFetchDuration.WithLabelValues("staking", "ok").Observe(time.Since(start).Seconds())

		balance, err := toYieldBalance(currency.ID, resp)
		if err != nil {
			return nil, fmt.Errorf("yield balance of %s: %w", currency.ID, err)
		}
		r.store.SetDefault(key, balance)
		r.hub.Notify(key)
		r.logger.Debug("Yield balance updated", zap.String("currency", string(currency.ID)), zap.String("staked", balance.Staked.String()))
		return balance, nil
	})
	if err != nil {
		return entity.YieldBalance{}, err
	}
	return v.(entity.YieldBalance), nil
}

func toYieldBalance(currencyID entity.CurrencyID, resp BalanceResponse) (entity.YieldBalance, error) {
	staked, err := parseAmount(resp.Staked)
	if err != nil {
		return entity.YieldBalance{}, fmt.Errorf("staked amount: %w", err)
	}
	rewards, err := parseAmount(resp.Rewards)
	if err != nil {
		return entity.YieldBalance{}, fmt.Errorf("rewards amount: %w", err)
	}
	return entity.YieldBalance{
		CurrencyID: currencyID,
		Staked:     staked,
		Rewards:    rewards,
		Validator:  resp.Validator,
		IsActive:   resp.Active,
	}, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

var _ port.StakingSource = (*Repository)(nil)
