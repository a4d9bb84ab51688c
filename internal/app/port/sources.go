package port

import (
	"context"

	"currency_status/internal/domain/entity"
	"currency_status/internal/pkg/flow"
)

// NetworkStatusSource produces the on-chain state of the networks of a wallet.
type NetworkStatusSource interface {
	// Subscribe emits the statuses of the requested networks every time one of them changes.
	// With refresh set, cached statuses are re-fetched first. The channel closes when ctx is done.
	Subscribe(ctx context.Context, walletID entity.WalletID, networks []entity.Network, refresh bool) <-chan flow.Result[[]entity.NetworkStatus]

	// FetchNetworkStatuses updates the stored statuses; active subscriptions see the new values.
	FetchNetworkStatuses(ctx context.Context, walletID entity.WalletID, networks []entity.Network, refresh bool) error
}

// QuoteSource produces fiat quotes for listed currencies.
type QuoteSource interface {
	// Subscribe emits the known quotes of the requested raw ids every time one of them changes.
	Subscribe(ctx context.Context, rawIDs []string, refresh bool) <-chan flow.Result[[]entity.Quote]

	// FetchQuotes updates the stored quotes; active subscriptions see the new values.
	FetchQuotes(ctx context.Context, rawIDs []string, refresh bool) error
}

// StakingSource provides staking positions.
type StakingSource interface {
	// FetchSingle returns the yield balance of one currency.
	FetchSingle(ctx context.Context, walletID entity.WalletID, currency entity.Currency) (entity.YieldBalance, error)

	// FetchYieldBalances refreshes the stored yield balances of the given currencies.
	FetchYieldBalances(ctx context.Context, walletID entity.WalletID, currencies []entity.Currency, refresh bool) error

	// Watch signals changes of the stored yield balances of currencies. The channel
	// closes when ctx is done.
	Watch(ctx context.Context, walletID entity.WalletID, currencies []entity.Currency) <-chan struct{}
}

// CurrenciesSource lists the currencies a user added to a wallet.
type CurrenciesSource interface {
	Get(ctx context.Context, walletID entity.WalletID, refresh bool) ([]entity.Currency, error)
}

// TokenListSortingStore persists the grouping and sorting preference of a wallet.
type TokenListSortingStore interface {
	Get(ctx context.Context, walletID entity.WalletID) (entity.TokenListSorting, error)
	Set(ctx context.Context, walletID entity.WalletID, sorting entity.TokenListSorting) error
}
