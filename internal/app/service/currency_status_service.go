package service

import (
	"context"
	"fmt"

	"currency_status/internal/app/operator"
	"currency_status/internal/app/port"
	"currency_status/internal/domain/entity"
	"currency_status/internal/pkg/flow"

	"go.uber.org/zap"
)

// currencyStatusServiceImpl implements port.CurrencyStatusService.
type currencyStatusServiceImpl struct {
	loader   *CurrenciesLoader
	statuses *operator.CurrenciesStatusOperator
	logger   *zap.Logger
}

// NewCurrencyStatusService creates a new instance of currencyStatusServiceImpl.
// It reads the wallet's whole currency list so that it shares sources with the token list.
func NewCurrencyStatusService(loader *CurrenciesLoader, statuses *operator.CurrenciesStatusOperator, logger *zap.Logger) port.CurrencyStatusService {
	return &currencyStatusServiceImpl{
		loader:   loader,
		statuses: statuses,
		logger:   logger.Named("CurrencyStatusService"),
	}
}

// GetCurrencyStatus streams the status of currencyID in walletID.
func (s *currencyStatusServiceImpl) GetCurrencyStatus(ctx context.Context, walletID entity.WalletID, currencyID entity.CurrencyID) (<-chan flow.Result[entity.CryptoCurrencyStatus], error) {
	currencies, err := s.loader.Load(ctx, walletID, false)
	if err != nil {
		return nil, err
	}

	index := -1
	for i, c := range currencies {
		if c.ID == currencyID {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, &entity.CurrencyNotFoundError{CurrencyID: currencyID}
	}

	statuses, err := s.statuses.Subscribe(ctx, walletID, currencies)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to status of %s: %w", currencyID, err)
	}
	s.logger.Debug("Subscribed to currency status",
		zap.String("wallet", string(walletID)),
		zap.String("currency", string(currencyID)))

	return flow.Map(ctx, statuses, func(emission operator.StatusesEmission) flow.Result[entity.CryptoCurrencyStatus] {
		return emission[index]
	}), nil
}
