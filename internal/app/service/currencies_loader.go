package service

import (
	"context"
	"strconv"

	"currency_status/internal/app/port"
	"currency_status/internal/domain/entity"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// CurrenciesLoader deduplicates concurrent currency loads of the same wallet.
type CurrenciesLoader struct {
	source port.CurrenciesSource
	group  singleflight.Group
	logger *zap.Logger
}

// NewCurrenciesLoader creates a CurrenciesLoader reading from source.
func NewCurrenciesLoader(source port.CurrenciesSource, logger *zap.Logger) *CurrenciesLoader {
	return &CurrenciesLoader{
		source: source,
		logger: logger.Named("CurrenciesLoader"),
	}
}

// Load returns the currencies of walletID. Callers arriving while a load of the
// same wallet is in flight share its result. The shared load outlives the caller
// that started it; each caller stops waiting when its own ctx is done.
func (l *CurrenciesLoader) Load(ctx context.Context, walletID entity.WalletID, refresh bool) ([]entity.Currency, error) {
	key := string(walletID) + "|" + strconv.FormatBool(refresh)
	loadCtx := context.WithoutCancel(ctx)
	ch := l.group.DoChan(key, func() (interface{}, error) {
		return l.source.Get(loadCtx, walletID, refresh)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.Err != nil {
		l.logger.Warn("Failed to load currencies", zap.String("wallet", string(walletID)), zap.Error(res.Err))
		return nil, entity.NewDataError(res.Err)
	}
	if res.Shared {
		l.logger.Debug("Shared in-flight currencies load", zap.String("wallet", string(walletID)))
	}
	return res.Val.([]entity.Currency), nil
}
