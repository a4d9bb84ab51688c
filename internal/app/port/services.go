package port

import (
	"context"

	"currency_status/internal/domain/entity"
	"currency_status/internal/pkg/flow"
)

// TokenListService exposes the token list of a wallet and the user operations on it.
type TokenListService interface {
	// GetTokenList streams the token list of a wallet until ctx is done.
	GetTokenList(ctx context.Context, walletID entity.WalletID) (<-chan flow.Result[entity.TokenList], error)

	// FetchTokenList re-fetches every source of the wallet's currencies.
	FetchTokenList(ctx context.Context, walletID entity.WalletID) error

	// ToggleGrouping returns the list with network grouping switched.
	ToggleGrouping(ctx context.Context, list entity.TokenList) (entity.TokenList, error)

	// ToggleSorting returns the list with balance sorting switched.
	ToggleSorting(ctx context.Context, list entity.TokenList) (entity.TokenList, error)

	// ApplySorting persists the grouping and sorting of list for the wallet.
	ApplySorting(ctx context.Context, walletID entity.WalletID, list entity.TokenList) error
}

// CurrencyStatusService exposes the status of a single currency.
type CurrencyStatusService interface {
	// GetCurrencyStatus streams the status of one currency of a wallet until ctx is done.
	GetCurrencyStatus(ctx context.Context, walletID entity.WalletID, currencyID entity.CurrencyID) (<-chan flow.Result[entity.CryptoCurrencyStatus], error)
}
