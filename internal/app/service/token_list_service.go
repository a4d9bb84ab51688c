package service

import (
	"context"
	"errors"
	"fmt"

	"currency_status/internal/app/operator"
	"currency_status/internal/app/port"
	"currency_status/internal/domain/entity"
	"currency_status/internal/pkg/flow"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// tokenListServiceImpl implements port.TokenListService.
type tokenListServiceImpl struct {
	loader        *CurrenciesLoader
	statuses      *operator.CurrenciesStatusOperator
	builder       *operator.TokenListBuilder
	networkSource port.NetworkStatusSource
	quoteSource   port.QuoteSource
	stakingSource port.StakingSource
	sortingStore  port.TokenListSortingStore
	logger        *zap.Logger
}

// NewTokenListService creates a new instance of tokenListServiceImpl.
func NewTokenListService(
	loader *CurrenciesLoader,
	statuses *operator.CurrenciesStatusOperator,
	builder *operator.TokenListBuilder,
	networkSource port.NetworkStatusSource,
	quoteSource port.QuoteSource,
	stakingSource port.StakingSource,
	sortingStore port.TokenListSortingStore,
	logger *zap.Logger,
) port.TokenListService {
	return &tokenListServiceImpl{
		loader:        loader,
		statuses:      statuses,
		builder:       builder,
		networkSource: networkSource,
		quoteSource:   quoteSource,
		stakingSource: stakingSource,
		sortingStore:  sortingStore,
		logger:        logger.Named("TokenListService"),
	}
}

// GetTokenList streams the token list of walletID, rebuilt on every status update.
func (s *tokenListServiceImpl) GetTokenList(ctx context.Context, walletID entity.WalletID) (<-chan flow.Result[entity.TokenList], error) {
	currencies, err := s.loader.Load(ctx, walletID, false)
	if err != nil {
		return nil, err
	}
	if len(currencies) == 0 {
		s.logger.Debug("Wallet has no currencies", zap.String("wallet", string(walletID)))
		return flow.Just(flow.Ok(entity.TokenList{Kind: entity.TokenListEmpty})), nil
	}

	statuses, err := s.statuses.Subscribe(ctx, walletID, currencies)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to statuses of wallet %s: %w", walletID, err)
	}

	return flow.Map(ctx, statuses, func(emission operator.StatusesEmission) flow.Result[entity.TokenList] {
		list, err := s.buildTokenList(ctx, walletID, emission)
		if err != nil {
			return flow.Fail[entity.TokenList](err)
		}
		return flow.Ok(list)
	}), nil
}

func (s *tokenListServiceImpl) buildTokenList(ctx context.Context, walletID entity.WalletID, emission operator.StatusesEmission) (entity.TokenList, error) {
	statuses := make([]entity.CryptoCurrencyStatus, 0, len(emission))
	var errs []error
	for _, r := range emission {
		if r.Err != nil {
			errs = append(errs, r.Err)
			continue
		}
		statuses = append(statuses, r.Value)
	}
	if len(errs) > 0 {
		s.logger.Debug("Token list emission has failed statuses",
			zap.String("wallet", string(walletID)),
			zap.Int("failed", len(errs)))
		return entity.TokenList{}, entity.NewDataError(errors.Join(errs...))
	}

	sorting, err := s.sortingStore.Get(ctx, walletID)
	if err != nil {
		return entity.TokenList{}, entity.NewDataError(fmt.Errorf("failed to read sorting of wallet %s: %w", walletID, err))
	}
	return s.builder.Build(statuses, sorting.IsGrouped, sorting.IsSortedByBalance)
}

// FetchTokenList re-fetches every source of the wallet. Active token list
// streams receive the refreshed data.
func (s *tokenListServiceImpl) FetchTokenList(ctx context.Context, walletID entity.WalletID) error {
	currencies, err := s.loader.Load(ctx, walletID, true)
	if err != nil {
		return err
	}
	if len(currencies) == 0 {
		return entity.ErrEmptyTokens
	}
	s.statuses.Invalidate(walletID, currencies)

	networks := operator.NetworksOf(currencies)
	rawIDs := operator.RawIDsOf(currencies)
	var staking []entity.Currency
	for _, c := range currencies {
		if c.IsStakingSupported {
			staking = append(staking, c)
		}
	}

	s.logger.Debug("Refreshing token list",
		zap.String("wallet", string(walletID)),
		zap.Int("networks", len(networks)),
		zap.Int("quotes", len(rawIDs)),
		zap.Int("staking", len(staking)))

	var networkErr error
	var g errgroup.Group
	g.Go(func() error {
		networkErr = s.networkSource.FetchNetworkStatuses(ctx, walletID, networks, true)
		return nil
	})
	if len(rawIDs) > 0 {
		g.Go(func() error {
			if err := s.quoteSource.FetchQuotes(ctx, rawIDs, true); err != nil {
				s.logger.Warn("Failed to refresh quotes", zap.String("wallet", string(walletID)), zap.Error(err))
			}
			return nil
		})
	}
	if len(staking) > 0 {
		g.Go(func() error {
			if err := s.stakingSource.FetchYieldBalances(ctx, walletID, staking, true); err != nil {
				s.logger.Warn("Failed to refresh yield balances", zap.String("wallet", string(walletID)), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	if networkErr != nil {
		return entity.NewDataError(fmt.Errorf("failed to refresh network statuses: %w", networkErr))
	}
	return nil
}

// ToggleGrouping rebuilds list with network grouping switched.
func (s *tokenListServiceImpl) ToggleGrouping(_ context.Context, list entity.TokenList) (entity.TokenList, error) {
	if err := checkToggleable(list); err != nil {
		return entity.TokenList{}, err
	}
	return s.builder.Build(list.Flatten(), !list.IsGrouped(), list.IsSortedByBalance())
}

// ToggleSorting rebuilds list with balance sorting switched.
func (s *tokenListServiceImpl) ToggleSorting(_ context.Context, list entity.TokenList) (entity.TokenList, error) {
	if err := checkToggleable(list); err != nil {
		return entity.TokenList{}, err
	}
	return s.builder.Build(list.Flatten(), list.IsGrouped(), !list.IsSortedByBalance())
}

// ApplySorting stores the grouping and sorting of list as the wallet preference.
func (s *tokenListServiceImpl) ApplySorting(ctx context.Context, walletID entity.WalletID, list entity.TokenList) error {
	if list.Kind == entity.TokenListEmpty {
		return entity.ErrTokenListIsEmpty
	}
	sorting := entity.TokenListSorting{
		IsGrouped:         list.IsGrouped(),
		IsSortedByBalance: list.IsSortedByBalance(),
	}
	if err := s.sortingStore.Set(ctx, walletID, sorting); err != nil {
		return entity.NewDataError(fmt.Errorf("failed to store sorting of wallet %s: %w", walletID, err))
	}
	s.logger.Info("Applied token list sorting",
		zap.String("wallet", string(walletID)),
		zap.Bool("grouped", sorting.IsGrouped),
		zap.Bool("sortedByBalance", sorting.IsSortedByBalance))
	return nil
}

func checkToggleable(list entity.TokenList) error {
	if list.Kind == entity.TokenListEmpty {
		return entity.ErrTokenListIsEmpty
	}
	if list.TotalFiatBalance.Kind == entity.TotalFiatBalanceLoading {
		return entity.ErrTokenListIsLoading
	}
	return nil
}
