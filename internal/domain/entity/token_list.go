package entity

import "github.com/shopspring/decimal"

// SortType is the ordering applied to a token list.
type SortType int

const (
	SortTypeNone SortType = iota
	SortTypeBalance
)

func (t SortType) String() string {
	if t == SortTypeBalance {
		return "balance"
	}
	return "none"
}

func (t SortType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// TotalFiatBalanceKind enumerates the states of a wallet total.
type TotalFiatBalanceKind int

const (
	TotalFiatBalanceLoading TotalFiatBalanceKind = iota
	TotalFiatBalanceFailed
	TotalFiatBalanceLoaded
)

func (k TotalFiatBalanceKind) String() string {
	switch k {
	case TotalFiatBalanceLoading:
		return "loading"
	case TotalFiatBalanceFailed:
		return "failed"
	case TotalFiatBalanceLoaded:
		return "loaded"
	default:
		return "unknown"
	}
}

func (k TotalFiatBalanceKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// TotalFiatBalance is the fiat sum of a token list. When IsFullySummarized is
// false the amount is a lower bound.
type TotalFiatBalance struct {
	Kind              TotalFiatBalanceKind `json:"kind"`
	Amount            decimal.Decimal      `json:"amount"`
	IsFullySummarized bool                 `json:"isFullySummarized"`
}

// NetworkGroup holds the statuses of one network inside a grouped token list.
type NetworkGroup struct {
	Network  Network                `json:"network"`
	Statuses []CryptoCurrencyStatus `json:"statuses"`
}

// TokenListKind enumerates the shapes of a token list.
type TokenListKind int

const (
	TokenListEmpty TokenListKind = iota
	TokenListUngrouped
	TokenListGroupedByNetwork
)

func (k TokenListKind) String() string {
	switch k {
	case TokenListEmpty:
		return "empty"
	case TokenListUngrouped:
		return "ungrouped"
	case TokenListGroupedByNetwork:
		return "grouped_by_network"
	default:
		return "unknown"
	}
}

func (k TokenListKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// TokenList is the aggregate view of all currency statuses in a wallet.
// Statuses is set for Ungrouped lists, Groups for GroupedByNetwork lists.
type TokenList struct {
	Kind             TokenListKind          `json:"kind"`
	SortType         SortType               `json:"sortType"`
	TotalFiatBalance TotalFiatBalance       `json:"totalFiatBalance"`
	Statuses         []CryptoCurrencyStatus `json:"statuses,omitempty"`
	Groups           []NetworkGroup         `json:"groups,omitempty"`
}

// IsGrouped reports whether the list is grouped by network.
func (l TokenList) IsGrouped() bool {
	return l.Kind == TokenListGroupedByNetwork
}

// IsSortedByBalance reports whether the list is sorted by fiat balance.
func (l TokenList) IsSortedByBalance() bool {
	return l.SortType == SortTypeBalance
}

// Flatten returns all statuses of the list in display order.
func (l TokenList) Flatten() []CryptoCurrencyStatus {
	switch l.Kind {
	case TokenListUngrouped:
		out := make([]CryptoCurrencyStatus, len(l.Statuses))
		copy(out, l.Statuses)
		return out
	case TokenListGroupedByNetwork:
		var out []CryptoCurrencyStatus
		for _, g := range l.Groups {
			out = append(out, g.Statuses...)
		}
		return out
	default:
		return nil
	}
}

// TokenListSorting is the per-wallet grouping and sorting preference.
type TokenListSorting struct {
	IsGrouped         bool `json:"isGrouped" yaml:"grouped"`
	IsSortedByBalance bool `json:"isSortedByBalance" yaml:"sortedByBalance"`
}
