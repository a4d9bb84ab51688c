package operator

import (
	"sort"

	"currency_status/internal/app/port"
	"currency_status/internal/domain/entity"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TokenListBuilder folds a set of currency statuses into a TokenList.
type TokenListBuilder struct {
	networks port.NetworkProvider
	logger   *zap.Logger
}

// NewTokenListBuilder creates a TokenListBuilder resolving group networks through networks.
func NewTokenListBuilder(networks port.NetworkProvider, logger *zap.Logger) *TokenListBuilder {
	return &TokenListBuilder{
		networks: networks,
		logger:   logger.Named("TokenListBuilder"),
	}
}

// Build creates the token list of statuses. Entries are reordered by balance
// only when none of the entries involved is still loading: a group with a
// loading member keeps both its position and its member order.
func (b *TokenListBuilder) Build(statuses []entity.CryptoCurrencyStatus, groupByNetwork, sortByBalance bool) (entity.TokenList, error) {
	if len(statuses) == 0 {
		return entity.TokenList{Kind: entity.TokenListEmpty}, nil
	}

	sortType := entity.SortTypeNone
	if sortByBalance {
		sortType = entity.SortTypeBalance
	}
	total := TotalFiatBalance(statuses)

	if !groupByNetwork {
		list := make([]entity.CryptoCurrencyStatus, len(statuses))
		copy(list, statuses)
		if sortByBalance && !anyLoading(list) {
			sortStatusesByBalance(list)
		}
		return entity.TokenList{
			Kind:             entity.TokenListUngrouped,
			SortType:         sortType,
			TotalFiatBalance: total,
			Statuses:         list,
		}, nil
	}

	groups, err := b.group(statuses)
	if err != nil {
		return entity.TokenList{}, err
	}

	if sortByBalance {
		var resolved []int
		for i := range groups {
			if anyLoading(groups[i].Statuses) {
				continue
			}
			sortStatusesByBalance(groups[i].Statuses)
			resolved = append(resolved, i)
		}
		if len(resolved) < len(groups) {
			b.logger.Debug("Loading groups keep their position",
				zap.Int("groups", len(groups)),
				zap.Int("resolved", len(resolved)))
		}
		sortGroupSlotsByBalance(groups, resolved)
	}

	return entity.TokenList{
		Kind:             entity.TokenListGroupedByNetwork,
		SortType:         sortType,
		TotalFiatBalance: total,
		Groups:           groups,
	}, nil
}

// group partitions statuses by network in order of first appearance.
func (b *TokenListBuilder) group(statuses []entity.CryptoCurrencyStatus) ([]entity.NetworkGroup, error) {
	index := make(map[entity.NetworkID]int)
	var groups []entity.NetworkGroup

	for _, s := range statuses {
		id := s.Currency.Network.ID
		i, ok := index[id]
		if !ok {
			network, found := b.networks.GetNetwork(id)
			if !found {
				return nil, &entity.NetworkNotFoundError{NetworkID: id}
			}
			i = len(groups)
			index[id] = i
			groups = append(groups, entity.NetworkGroup{Network: network})
		}
		groups[i].Statuses = append(groups[i].Statuses, s)
	}
	return groups, nil
}

func anyLoading(statuses []entity.CryptoCurrencyStatus) bool {
	for _, s := range statuses {
		if s.Value.IsLoading() {
			return true
		}
	}
	return false
}

// sortStatusesByBalance orders by descending fiat amount; unknown amounts go last.
func sortStatusesByBalance(statuses []entity.CryptoCurrencyStatus) {
	sort.SliceStable(statuses, func(i, j int) bool {
		return fiatGreater(statuses[i].FiatAmountOrNil(), statuses[j].FiatAmountOrNil())
	})
}

// sortGroupSlotsByBalance orders the groups at slots by descending fiat sum.
// Groups at other positions do not move.
func sortGroupSlotsByBalance(groups []entity.NetworkGroup, slots []int) {
	if len(slots) < 2 {
		return
	}
	picked := make([]entity.NetworkGroup, len(slots))
	sums := make([]decimal.Decimal, len(slots))
	for k, i := range slots {
		picked[k] = groups[i]
		sums[k] = groupSum(groups[i])
	}
	order := make([]int, len(slots))
	for k := range order {
		order[k] = k
	}
	sort.SliceStable(order, func(a, b int) bool {
		return sums[order[a]].GreaterThan(sums[order[b]])
	})
	for k, i := range slots {
		groups[i] = picked[order[k]]
	}
}

func groupSum(g entity.NetworkGroup) decimal.Decimal {
	sum := decimal.Zero
	for _, s := range g.Statuses {
		if amount := s.FiatAmountOrNil(); amount != nil {
			sum = sum.Add(*amount)
		}
	}
	return sum
}

func fiatGreater(a, b *decimal.Decimal) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return a.GreaterThan(*b)
	}
}
