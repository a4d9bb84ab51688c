package operator

import (
	"currency_status/internal/domain/entity"

	"github.com/shopspring/decimal"
)

// TotalFiatBalance sums the fiat amounts of statuses.
// A Loading member makes the total Loading; otherwise an Unreachable or
// MissedDerivation member makes it Failed.
func TotalFiatBalance(statuses []entity.CryptoCurrencyStatus) entity.TotalFiatBalance {
	total := decimal.Zero
	fullySummarized := true
	failed := false

	for _, s := range statuses {
		switch s.Value.Kind {
		case entity.StatusLoading:
			return entity.TotalFiatBalance{Kind: entity.TotalFiatBalanceLoading}
		case entity.StatusUnreachable, entity.StatusMissedDerivation:
			failed = true
		case entity.StatusNoAccount:
			fullySummarized = false
		case entity.StatusLoaded, entity.StatusCustom:
			if s.Value.FiatAmount == nil {
				fullySummarized = false
				continue
			}
			total = total.Add(*s.Value.FiatAmount)
		}
	}

	if failed {
		return entity.TotalFiatBalance{Kind: entity.TotalFiatBalanceFailed}
	}
	return entity.TotalFiatBalance{
		Kind:              entity.TotalFiatBalanceLoaded,
		Amount:            total,
		IsFullySummarized: fullySummarized,
	}
}
