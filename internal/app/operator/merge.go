// Package operator derives currency statuses and token lists from raw source data.
package operator

import (
	"fmt"

	"currency_status/internal/domain/entity"
	"currency_status/internal/pkg/metrics"

	"go.uber.org/zap"
)

// CurrencyStatusSources is one snapshot of the inputs of a single currency.
// Quote and YieldBalance are nil when the source has no data.
type CurrencyStatusSources struct {
	NetworkStatus    entity.NetworkStatus
	NetworkStatusErr error

	Quote    *entity.Quote
	QuoteErr error

	YieldBalance    *entity.YieldBalance
	YieldBalanceErr error
}

// MergeOperator folds the sources of a currency into its status.
type MergeOperator struct {
	logger *zap.Logger
}

// NewMergeOperator creates a MergeOperator.
func NewMergeOperator(logger *zap.Logger) *MergeOperator {
	return &MergeOperator{logger: logger.Named("MergeOperator")}
}

// Merge computes the status of currency. A network failure is returned as a
// DataError; a quote failure only degrades the result.
func (o *MergeOperator) Merge(currency entity.Currency, sources CurrencyStatusSources) (entity.CryptoCurrencyStatus, error) {
	if sources.NetworkStatusErr != nil {
		metrics.MergeFailures.WithLabelValues("network").Inc()
		return entity.CryptoCurrencyStatus{}, entity.NewDataError(
			fmt.Errorf("network status of %s: %w", currency.Network.ID, sources.NetworkStatusErr))
	}

	status := entity.CryptoCurrencyStatus{Currency: currency}
	network := sources.NetworkStatus.Value

	switch network.Kind {
	case entity.NetworkStatusLoading:
		status.Value = entity.Status{Kind: entity.StatusLoading}
		return status, nil
	case entity.NetworkStatusMissedDerivation:
		status.Value = entity.Status{Kind: entity.StatusMissedDerivation}
		return status, nil
	case entity.NetworkStatusUnreachable:
		status.Value = entity.Status{Kind: entity.StatusUnreachable}
		return status, nil
	case entity.NetworkStatusNoAccount:
		status.Value = entity.Status{Kind: entity.StatusNoAccount, NetworkAddress: network.Address}
		return status, nil
	case entity.NetworkStatusVerified:
	default:
		return entity.CryptoCurrencyStatus{}, fmt.Errorf("unknown network status kind %d", network.Kind)
	}

	amount, ok := network.Amounts[currency.ID]
	if !ok {
		metrics.MergeFailures.WithLabelValues("amount_not_found").Inc()
		return entity.CryptoCurrencyStatus{}, &entity.AmountNotFoundError{CurrencyID: currency.ID}
	}

	quote := sources.Quote
	if sources.QuoteErr != nil {
		o.logger.Debug("quoteRetrievingFailed",
			zap.String("currency", string(currency.ID)),
			zap.Error(sources.QuoteErr))
		quote = nil
	}

	value := entity.Status{
		Amount:         amount,
		HasPendingTx:   network.HasPendingTx,
		NetworkAddress: network.Address,
	}

	if quote != nil {
		fiatAmount := amount.Mul(quote.FiatRate)
		if fiatAmount.IsNegative() {
			metrics.MergeFailures.WithLabelValues("negative_fiat").Inc()
			return entity.CryptoCurrencyStatus{}, &entity.NegativeFiatAmountError{CurrencyID: currency.ID}
		}
		rate, change := quote.FiatRate, quote.PriceChange
		value.FiatAmount = &fiatAmount
		value.FiatRate = &rate
		value.PriceChange = &change
	}

	switch {
	case currency.IsCustom:
		value.Kind = entity.StatusCustom
	case quote == nil:
		status.Value = entity.Status{Kind: entity.StatusLoading}
		return status, nil
	default:
		value.Kind = entity.StatusLoaded
	}

	if currency.IsStakingSupported {
		if sources.YieldBalanceErr != nil {
			o.logger.Debug("Yield balance unavailable",
				zap.String("currency", string(currency.ID)),
				zap.Error(sources.YieldBalanceErr))
		} else if sources.YieldBalance != nil {
			yb := *sources.YieldBalance
			value.YieldBalance = &yb
		}
	}

	status.Value = value
	return status, nil
}
